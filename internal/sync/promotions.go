package sync

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/dealgrab/dealgrab-sync/internal/extract"
	"github.com/dealgrab/dealgrab-sync/internal/feed"
	"github.com/dealgrab/dealgrab-sync/internal/models"
	"github.com/dealgrab/dealgrab-sync/internal/validator"
)

const (
	defaultCategory = "General"
	// Promotions with no end date stay live this long before the sweeper
	// retires them.
	defaultLifetime = 30 * 24 * time.Hour
)

// Feed statuses that map to a live promotion. Anything else is inactive.
var activeStatusRe = regexp.MustCompile(`(?i)(active|expiringsoon)`)

// Reconciler diffs the fetched promotion set against the deals collection.
// Existing documents are never rewritten, stale documents are deleted unless
// an admin added them by hand.
type Reconciler struct {
	feed     Feed
	store    PromotionStore
	validate *validator.Validator
	labeler  extract.Labeler
	log      *slog.Logger
	now      func() time.Time
}

func NewReconciler(f Feed, store PromotionStore, v *validator.Validator, labeler extract.Labeler, log *slog.Logger) *Reconciler {
	return &Reconciler{
		feed:     f,
		store:    store,
		validate: v,
		labeler:  labeler,
		log:      log,
		now:      time.Now,
	}
}

// ReconcileReport summarizes one promotion sync run. Updated stays zero:
// existing documents are skipped wholesale, never merged.
type ReconcileReport struct {
	Fetched int
	Added   int
	Updated int
	Skipped int
	Deleted int
	Invalid int
	Failed  int
}

// Run fetches the full promotion feed and applies the resulting diff: create
// what is new, keep what exists, delete what the feed no longer carries.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	promos, err := r.feed.FetchPromotions(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to fetch promotions: %w", err)
	}
	report.Fetched = len(promos)

	existing, err := r.store.ListPromotions(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list promotions: %w", err)
	}
	existingByID := make(map[string]models.Promotion, len(existing))
	for _, p := range existing {
		existingByID[p.PromotionID] = p
	}

	brands, err := r.store.ListBrands(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list brands: %w", err)
	}
	brandsByName := make(map[string]models.Brand, len(brands))
	for _, b := range brands {
		brandsByName[b.Name] = b
	}

	now := r.now()
	seen := make(map[string]bool, len(promos))
	var creates []models.Promotion
	for _, p := range promos {
		if p.PromotionID == "" {
			r.log.Warn("Skipping promotion without an id", "title", p.Title)
			report.Skipped++
			continue
		}
		if p.Advertiser.Name == "" {
			r.log.Warn("Skipping promotion without an advertiser name", "promotionId", p.PromotionID)
			report.Skipped++
			continue
		}
		seen[p.PromotionID] = true

		if _, ok := existingByID[p.PromotionID]; ok {
			report.Skipped++
			continue
		}

		promo := r.build(p, brandsByName, now)
		if err := r.validate.ValidateStruct(promo); err != nil {
			r.log.Warn("Skipping invalid promotion", "promotionId", p.PromotionID, "error", err)
			report.Invalid++
			continue
		}
		creates = append(creates, promo)
	}

	var deleteIDs []string
	for id, p := range existingByID {
		if seen[id] || p.ManuallyAdded {
			continue
		}
		deleteIDs = append(deleteIDs, id)
	}

	bulk, err := r.store.ApplyPromotionDiff(ctx, creates, deleteIDs)
	if err != nil {
		return report, fmt.Errorf("failed to apply promotion diff: %w", err)
	}
	report.Failed = bulk.Failed
	report.Added = len(creates)
	report.Deleted = len(deleteIDs)
	if bulk.Failed > 0 {
		r.log.Warn("Some promotion writes failed", "failed", bulk.Failed)
	}

	r.log.Info("Promotion sync complete",
		"fetched", report.Fetched,
		"added", report.Added,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"deleted", report.Deleted,
		"invalid", report.Invalid)
	return report, nil
}

// build assembles a storable promotion from a feed record, resolving the brand
// snapshot and deriving the display fields.
func (r *Reconciler) build(p feed.Promotion, brandsByName map[string]models.Brand, now time.Time) models.Promotion {
	brand, ok := brandsByName[p.Advertiser.Name]
	if !ok {
		// The programme hasn't been synced yet. Embed a minimal snapshot so
		// the deal renders; the brand syncer will create the real document.
		brand = models.Brand{
			ProgrammeID: p.Advertiser.ID,
			Name:        p.Advertiser.Name,
			Logo:        p.Advertiser.LogoURL,
			Status:      models.StatusActive,
			Source:      feedSource,
		}
	}

	category := brand.PrimarySector()
	if category == "" {
		category = defaultCategory
	}

	status := models.StatusInactive
	if activeStatusRe.MatchString(p.Status) {
		status = models.StatusActive
	}

	startsAt := p.StartDate
	if startsAt.IsZero() {
		startsAt = now
	}
	expiresAt := p.EndDate
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultLifetime)
	}

	return models.Promotion{
		PromotionID:  p.PromotionID,
		Title:        p.Title,
		Description:  p.Description,
		Brand:        brand.Name,
		BrandDetails: brand,
		Category:     category,
		Discount:     extract.Discount(p.Title, p.Description),
		Code:         extract.Code(p.Voucher.Code, p.Title, p.Description),
		Label:        r.labeler.Label(p.Type, p.Voucher.Code, p.Title, p.Description),
		Link:         p.URLTracking,
		Terms:        p.Terms,
		Status:       status,
		StartsAt:     startsAt,
		ExpiresAt:    expiresAt,
		Source:       feedSource,
		Joined:       p.Advertiser.Joined,
		RawData:      p.Raw,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
