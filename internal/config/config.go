package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all service configuration, populated from the environment.
type Config struct {
	// ProjectID identifies the Firestore project the pipeline writes to.
	ProjectID string `env:"GOOGLE_CLOUD_PROJECT,required"`

	Feed   FeedConfig   `env:",prefix=FEED_"`
	Server ServerConfig `env:",prefix=SERVER_"`
	Jobs   JobsConfig   `env:",prefix=JOB_"`
}

// FeedConfig configures the affiliate network API client.
type FeedConfig struct {
	BaseURL           string        `env:"BASE_URL,default=https://api.awin.com"`
	AccessToken       string        `env:"ACCESS_TOKEN,required"`
	PublisherID       string        `env:"PUBLISHER_ID,required"`
	PageSize          int           `env:"PAGE_SIZE,default=200"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND,default=2"`
	Timeout           time.Duration `env:"TIMEOUT,default=30s"`
	MaxRetries        int           `env:"MAX_RETRIES,default=3"`
}

// ServerConfig configures the admin HTTP server exposed by `syncd serve`.
type ServerConfig struct {
	Port         string        `env:"PORT,default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
}

// JobsConfig holds the scheduling intervals for each pipeline job and the
// shared per-run wall-clock budget.
type JobsConfig struct {
	BrandSyncInterval     time.Duration `env:"BRAND_SYNC_INTERVAL,default=1h"`
	PromotionSyncInterval time.Duration `env:"PROMOTION_SYNC_INTERVAL,default=5h"`
	CountUpdateInterval   time.Duration `env:"COUNT_UPDATE_INTERVAL,default=5h"`
	CacheRefreshInterval  time.Duration `env:"CACHE_REFRESH_INTERVAL,default=6h"`
	SearchIndexInterval   time.Duration `env:"SEARCH_INDEX_INTERVAL,default=6h"`
	RunTimeout            time.Duration `env:"RUN_TIMEOUT,default=9m"`
}

// Load populates Config from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if cfg.Feed.PageSize <= 0 {
		return nil, fmt.Errorf("invalid FEED_PAGE_SIZE %d: must be positive", cfg.Feed.PageSize)
	}
	return &cfg, nil
}
