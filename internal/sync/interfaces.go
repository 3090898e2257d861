// Package sync reconciles the affiliate feed against the document store: it
// creates brands for new programmes, diffs the promotion set, deactivates
// expired promotions and recomputes per-brand and per-category deal counts.
package sync

import (
	"context"
	"time"

	"github.com/dealgrab/dealgrab-sync/internal/feed"
	"github.com/dealgrab/dealgrab-sync/internal/models"
	"github.com/dealgrab/dealgrab-sync/internal/storage"
)

// Feed fetches programmes and promotions from the affiliate network.
type Feed interface {
	FetchProgrammes(ctx context.Context) ([]feed.Programme, error)
	FetchPromotions(ctx context.Context) ([]feed.Promotion, error)
}

// BrandStore is the storage surface the brand syncer needs.
type BrandStore interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	CreateBrands(ctx context.Context, brands []models.Brand) (storage.BulkReport, error)
}

// PromotionStore is the storage surface the promotion reconciler needs.
type PromotionStore interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	ApplyPromotionDiff(ctx context.Context, creates []models.Promotion, deleteIDs []string) (storage.BulkReport, error)
}

// SweepStore is the storage surface the expiry sweeper needs.
type SweepStore interface {
	ExpiredActivePromotionIDs(ctx context.Context, now time.Time) ([]string, error)
	DeactivatePromotions(ctx context.Context, ids []string, now time.Time) (storage.BulkReport, error)
}

// CountStore is the storage surface the count updater needs.
type CountStore interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListActivePromotions(ctx context.Context) ([]models.Promotion, error)
	UpdateBrandDealCounts(ctx context.Context, counts map[string]int, now time.Time) (storage.BulkReport, error)
	UpdateCategoryDealCounts(ctx context.Context, counts map[string]int, now time.Time) (storage.BulkReport, error)
}
