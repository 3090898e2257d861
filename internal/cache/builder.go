// Package cache pre-computes the storefront page snapshots. Each refresh
// rebuilds its snapshot from live queries and overwrites the singleton cache
// document in full, so readers never see a partially updated page.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dealgrab/dealgrab-sync/internal/models"
	"github.com/dealgrab/dealgrab-sync/internal/storage"
)

const (
	cacheVersion = 1

	homepageCategoryLimit = 8
	featuredBrandLimit    = 50
	trendingPoolSize      = 30
	trendingDealCount     = 20
	popularSearchLimit    = 10
	footerBrandLimit      = 15

	dealsPageSize   = 48
	pageFilterLimit = 20

	categoryTrendingLimit = 12
	categoryTrendingPool  = 200
)

// Store is the storage surface the cache builder needs.
type Store interface {
	TopCategories(ctx context.Context, limit int) ([]models.Category, error)
	ActiveCategoriesWithDeals(ctx context.Context) ([]models.Category, error)
	FeaturedBrands(ctx context.Context, limit int) ([]models.Brand, error)
	TopBrands(ctx context.Context, limit int) ([]models.Brand, error)
	ActiveBrandsByName(ctx context.Context) ([]models.Brand, error)
	TrendingPool(ctx context.Context, now time.Time, limit int) ([]models.Promotion, error)
	ActiveDeals(ctx context.Context, now time.Time, limit int) ([]models.Promotion, error)
	CountActiveDeals(ctx context.Context, now time.Time) (int, error)
	PopularSearches(ctx context.Context, limit int) ([]string, error)

	SetHomepageCache(ctx context.Context, cache models.HomepageCache) error
	SetDealsPageCache(ctx context.Context, cache models.DealsPageCache) error
	SetBrandsPageCache(ctx context.Context, cache models.BrandsPageCache) error
	SetCategoriesPageCache(ctx context.Context, cache models.CategoriesPageCache) error
}

// Builder rebuilds the page caches.
type Builder struct {
	store Store
	log   *slog.Logger
	rnd   *rand.Rand
	now   func() time.Time
}

func NewBuilder(store Store, rnd *rand.Rand, log *slog.Logger) *Builder {
	return &Builder{
		store: store,
		log:   log,
		rnd:   rnd,
		now:   time.Now,
	}
}

// RefreshAll rebuilds every page cache. Pages are independent; a failure in
// one does not stop the others, and the first error is returned.
func (b *Builder) RefreshAll(ctx context.Context) error {
	var firstErr error
	for _, page := range []struct {
		name    string
		refresh func(context.Context) error
	}{
		{"homepage", b.RefreshHomepage},
		{"deals", b.RefreshDealsPage},
		{"brands", b.RefreshBrandsPage},
		{"categories", b.RefreshCategoriesPage},
	} {
		if err := page.refresh(ctx); err != nil {
			b.log.Error("Cache refresh failed", "page", page.name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RefreshHomepage rebuilds the landing page snapshot. Trending deals come from
// the soonest-expiring pool, trimmed and shuffled for brand variety.
func (b *Builder) RefreshHomepage(ctx context.Context) error {
	now := b.now()

	categories := make([]models.Category, 0)
	featured := make([]models.Brand, 0)
	pool := make([]models.Promotion, 0)
	searches := make([]string, 0)
	footer := make([]models.Brand, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return collect(gctx, &categories, func(ctx context.Context) ([]models.Category, error) {
			return b.store.TopCategories(ctx, homepageCategoryLimit)
		})
	})
	g.Go(func() error {
		return collect(gctx, &featured, func(ctx context.Context) ([]models.Brand, error) {
			return b.store.FeaturedBrands(ctx, featuredBrandLimit)
		})
	})
	g.Go(func() error {
		return collect(gctx, &pool, func(ctx context.Context) ([]models.Promotion, error) {
			return b.store.TrendingPool(ctx, now, trendingPoolSize)
		})
	})
	g.Go(func() error {
		return collect(gctx, &searches, func(ctx context.Context) ([]string, error) {
			return b.store.PopularSearches(ctx, popularSearchLimit)
		})
	})
	g.Go(func() error {
		return collect(gctx, &footer, func(ctx context.Context) ([]models.Brand, error) {
			return b.store.TopBrands(ctx, footerBrandLimit)
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to build homepage cache: %w", err)
	}

	trending := pool
	if len(trending) > trendingDealCount {
		trending = trending[:trendingDealCount]
	}
	trending = shuffleAvoidConsecutiveBrands(trending, b.rnd)

	cache := models.HomepageCache{
		Categories:      categories,
		FeaturedBrands:  featured,
		TrendingDeals:   trending,
		PopularSearches: searches,
		FooterBrands:    footer,
		LastUpdated:     now,
		Version:         cacheVersion,
	}
	if err := b.store.SetHomepageCache(ctx, cache); err != nil {
		return err
	}

	b.log.Info("Homepage cache refreshed",
		"categories", len(categories),
		"featuredBrands", len(featured),
		"trendingDeals", len(trending))
	return nil
}

// RefreshDealsPage rebuilds the deals directory snapshot: the first page of
// live deals plus the filters and total the page chrome needs.
func (b *Builder) RefreshDealsPage(ctx context.Context) error {
	now := b.now()

	deals := make([]models.Promotion, 0)
	categories := make([]models.Category, 0)
	brands := make([]models.Brand, 0)
	var total int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return collect(gctx, &deals, func(ctx context.Context) ([]models.Promotion, error) {
			return b.store.ActiveDeals(ctx, now, dealsPageSize)
		})
	})
	g.Go(func() error {
		return collect(gctx, &categories, func(ctx context.Context) ([]models.Category, error) {
			return b.store.TopCategories(ctx, pageFilterLimit)
		})
	})
	g.Go(func() error {
		return collect(gctx, &brands, func(ctx context.Context) ([]models.Brand, error) {
			return b.store.TopBrands(ctx, pageFilterLimit)
		})
	})
	g.Go(func() error {
		n, err := b.store.CountActiveDeals(gctx, now)
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to build deals page cache: %w", err)
	}

	cache := models.DealsPageCache{
		InitialDeals: deals,
		TotalCount:   total,
		Categories:   categories,
		Brands:       brands,
		LastUpdated:  now,
		Version:      cacheVersion,
	}
	if err := b.store.SetDealsPageCache(ctx, cache); err != nil {
		return err
	}

	b.log.Info("Deals page cache refreshed", "initialDeals", len(deals), "totalCount", total)
	return nil
}

// RefreshBrandsPage rebuilds the brand directory snapshot.
func (b *Builder) RefreshBrandsPage(ctx context.Context) error {
	now := b.now()

	all := make([]models.Brand, 0)
	footer := make([]models.Brand, 0)
	categories := make([]models.Category, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return collect(gctx, &all, b.store.ActiveBrandsByName)
	})
	g.Go(func() error {
		return collect(gctx, &footer, func(ctx context.Context) ([]models.Brand, error) {
			return b.store.TopBrands(ctx, footerBrandLimit)
		})
	})
	g.Go(func() error {
		return collect(gctx, &categories, func(ctx context.Context) ([]models.Category, error) {
			return b.store.TopCategories(ctx, pageFilterLimit)
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to build brands page cache: %w", err)
	}

	cache := models.BrandsPageCache{
		AllBrands:    all,
		FooterBrands: footer,
		Categories:   categories,
		LastUpdated:  now,
		Version:      cacheVersion,
	}
	if err := b.store.SetBrandsPageCache(ctx, cache); err != nil {
		return err
	}

	b.log.Info("Brands page cache refreshed", "brands", len(all))
	return nil
}

// RefreshCategoriesPage rebuilds the category directory snapshot. Its trending
// strip shows one deal per brand, nearest expiry first.
func (b *Builder) RefreshCategoriesPage(ctx context.Context) error {
	now := b.now()

	categories := make([]models.Category, 0)
	featured := make([]models.Brand, 0)
	footer := make([]models.Brand, 0)
	pool := make([]models.Promotion, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return collect(gctx, &categories, b.store.ActiveCategoriesWithDeals)
	})
	g.Go(func() error {
		return collect(gctx, &featured, func(ctx context.Context) ([]models.Brand, error) {
			return b.store.FeaturedBrands(ctx, featuredBrandLimit)
		})
	})
	g.Go(func() error {
		return collect(gctx, &footer, func(ctx context.Context) ([]models.Brand, error) {
			return b.store.TopBrands(ctx, footerBrandLimit)
		})
	})
	g.Go(func() error {
		return collect(gctx, &pool, func(ctx context.Context) ([]models.Promotion, error) {
			return b.store.TrendingPool(ctx, now, categoryTrendingPool)
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to build categories page cache: %w", err)
	}

	cache := models.CategoriesPageCache{
		Categories:     categories,
		FeaturedBrands: featured,
		FooterBrands:   footer,
		TrendingDeals:  distinctBrandDeals(pool, categoryTrendingLimit),
		LastUpdated:    now,
		Version:        cacheVersion,
	}
	if err := b.store.SetCategoriesPageCache(ctx, cache); err != nil {
		return err
	}

	b.log.Info("Categories page cache refreshed", "categories", len(categories))
	return nil
}

// collect runs a query and replaces *dst with its result, keeping the empty
// slice when the query matches nothing so the stored cache holds arrays, not
// nulls.
func collect[T any](ctx context.Context, dst *[]T, query func(context.Context) ([]T, error)) error {
	items, err := query(ctx)
	if err != nil {
		return err
	}
	if items != nil {
		*dst = items
	}
	return nil
}

var _ Store = (*storage.Client)(nil)
