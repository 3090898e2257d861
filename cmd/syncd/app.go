package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dealgrab/dealgrab-sync/internal/cache"
	"github.com/dealgrab/dealgrab-sync/internal/config"
	"github.com/dealgrab/dealgrab-sync/internal/extract"
	"github.com/dealgrab/dealgrab-sync/internal/feed"
	"github.com/dealgrab/dealgrab-sync/internal/metrics"
	"github.com/dealgrab/dealgrab-sync/internal/scheduler"
	"github.com/dealgrab/dealgrab-sync/internal/search"
	"github.com/dealgrab/dealgrab-sync/internal/storage"
	"github.com/dealgrab/dealgrab-sync/internal/sync"
	"github.com/dealgrab/dealgrab-sync/internal/validator"
)

// Job names, used on the command line and the trigger endpoint alike.
const (
	jobSyncBrands     = "sync-brands"
	jobSyncPromotions = "sync-promotions"
	jobSweepExpired   = "sweep-expired"
	jobUpdateCounts   = "update-counts"
	jobRefreshCaches  = "refresh-caches"
	jobSearchIndex    = "build-search-index"
)

// app wires the pipeline components together.
type app struct {
	cfg   *config.Config
	store *storage.Client
	log   *slog.Logger

	brandSyncer  *sync.BrandSyncer
	reconciler   *sync.Reconciler
	sweeper      *sync.Sweeper
	countUpdater *sync.CountUpdater
	cacheBuilder *cache.Builder
	indexer      *search.Indexer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := storage.New(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}

	log := slog.Default()
	feedClient := feed.New(cfg.Feed)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	return &app{
		cfg:          cfg,
		store:        store,
		log:          log,
		brandSyncer:  sync.NewBrandSyncer(feedClient, store, log),
		reconciler:   sync.NewReconciler(feedClient, store, validator.New(), extract.NewLabeler(rnd), log),
		sweeper:      sync.NewSweeper(store, log),
		countUpdater: sync.NewCountUpdater(store, log),
		cacheBuilder: cache.NewBuilder(store, rnd, log),
		indexer:      search.NewIndexer(store, log),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("Failed to close Firestore client", "error", err)
	}
}

func (a *app) syncBrands(ctx context.Context) error {
	report, err := a.brandSyncer.Run(ctx)
	metrics.CountWrites("brands", report.Created, report.Failed)
	return err
}

// syncPromotions reconciles the feed, then sweeps expired promotions in the
// same run so a stale feed entry never outlives its expiry by a full
// interval. Sweep failures are logged, not propagated; the reconcile itself
// succeeded.
func (a *app) syncPromotions(ctx context.Context) error {
	report, err := a.reconciler.Run(ctx)
	metrics.CountWrites("promotions", report.Added+report.Deleted, report.Failed)
	if err != nil {
		return err
	}
	if swept, err := a.sweeper.Run(ctx); err != nil {
		a.log.Error("Post-sync expiry sweep failed", "error", err)
	} else {
		metrics.CountWrites("sweeps", swept, 0)
	}
	return nil
}

func (a *app) sweepExpired(ctx context.Context) error {
	swept, err := a.sweeper.Run(ctx)
	metrics.CountWrites("sweeps", swept, 0)
	return err
}

func (a *app) updateCounts(ctx context.Context) error {
	report, err := a.countUpdater.Run(ctx)
	metrics.CountWrites("counts", report.Brands+report.Categories, report.Failed)
	return err
}

// jobs returns the full schedule for the daemon.
func (a *app) jobs() []scheduler.Job {
	timeout := a.cfg.Jobs.RunTimeout
	return []scheduler.Job{
		{Name: jobSyncBrands, Interval: a.cfg.Jobs.BrandSyncInterval, Timeout: timeout, Run: a.syncBrands},
		{Name: jobSyncPromotions, Interval: a.cfg.Jobs.PromotionSyncInterval, Timeout: timeout, Run: a.syncPromotions},
		{Name: jobUpdateCounts, Interval: a.cfg.Jobs.CountUpdateInterval, Timeout: timeout, Run: a.updateCounts},
		{Name: jobRefreshCaches, Interval: a.cfg.Jobs.CacheRefreshInterval, Timeout: timeout, Run: a.cacheBuilder.RefreshAll},
		{Name: jobSearchIndex, Interval: a.cfg.Jobs.SearchIndexInterval, Timeout: timeout, Run: a.indexer.Build},
	}
}

// runOnce executes a single named job with the configured run timeout, for
// the one-shot commands.
func (a *app) runOnce(ctx context.Context, name string) error {
	var run func(context.Context) error
	switch name {
	case jobSyncBrands:
		run = a.syncBrands
	case jobSyncPromotions:
		run = a.syncPromotions
	case jobSweepExpired:
		run = a.sweepExpired
	case jobUpdateCounts:
		run = a.updateCounts
	case jobRefreshCaches:
		run = a.cacheBuilder.RefreshAll
	case jobSearchIndex:
		run = a.indexer.Build
	default:
		return fmt.Errorf("unknown job %q", name)
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Jobs.RunTimeout)
	defer cancel()
	return run(runCtx)
}
