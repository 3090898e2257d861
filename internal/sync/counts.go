package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CountUpdater recomputes the denormalized activeDeals and dealCount
// aggregates from a single pass over the live deal set. Brands and categories
// with no live deals are written too, so stale non-zero counts decay.
type CountUpdater struct {
	store CountStore
	log   *slog.Logger
	now   func() time.Time
}

func NewCountUpdater(store CountStore, log *slog.Logger) *CountUpdater {
	return &CountUpdater{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// CountReport summarizes one count update run.
type CountReport struct {
	Brands     int
	Categories int
	Failed     int
}

// Run counts live deals per brand and per category and writes every aggregate
// back, zeros included.
func (u *CountUpdater) Run(ctx context.Context) (CountReport, error) {
	var report CountReport
	now := u.now()

	deals, err := u.store.ListActivePromotions(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active promotions: %w", err)
	}

	// Deals carry the brand snapshot's exact name, so matching is exact.
	byBrand := make(map[string]int)
	byCategory := make(map[string]int)
	for _, d := range deals {
		if !d.ExpiresAt.After(now) {
			continue
		}
		byBrand[d.Brand]++
		byCategory[d.Category]++
	}

	brands, err := u.store.ListBrands(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list brands: %w", err)
	}
	brandCounts := make(map[string]int, len(brands))
	for _, b := range brands {
		brandCounts[b.DocID] = byBrand[b.Name]
	}

	categories, err := u.store.ListCategories(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list categories: %w", err)
	}
	categoryCounts := make(map[string]int, len(categories))
	for _, c := range categories {
		categoryCounts[c.DocID] = byCategory[c.Name]
	}

	brandBulk, err := u.store.UpdateBrandDealCounts(ctx, brandCounts, now)
	if err != nil {
		return report, fmt.Errorf("failed to update brand counts: %w", err)
	}
	report.Brands = brandBulk.Succeeded
	report.Failed += brandBulk.Failed

	categoryBulk, err := u.store.UpdateCategoryDealCounts(ctx, categoryCounts, now)
	if err != nil {
		return report, fmt.Errorf("failed to update category counts: %w", err)
	}
	report.Categories = categoryBulk.Succeeded
	report.Failed += categoryBulk.Failed

	if report.Failed > 0 {
		u.log.Warn("Some count writes failed", "failed", report.Failed)
	}
	u.log.Info("Count update complete",
		"deals", len(deals),
		"brands", report.Brands,
		"categories", report.Categories)
	return report, nil
}
