package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dealgrab/dealgrab-sync/internal/models"
)

const feedSource = "awin"

// BrandSyncer mirrors the joined affiliate programmes into the brands
// collection. Known programmes are never touched, so admin edits to a brand
// document survive every sync.
type BrandSyncer struct {
	feed  Feed
	store BrandStore
	log   *slog.Logger
	now   func() time.Time
}

func NewBrandSyncer(f Feed, store BrandStore, log *slog.Logger) *BrandSyncer {
	return &BrandSyncer{
		feed:  f,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// brandStatus lowercases the feed's programme status. A programme with no
// status is not trusted to be live.
func brandStatus(feedStatus string) string {
	if feedStatus == "" {
		return models.StatusInactive
	}
	return strings.ToLower(feedStatus)
}

// BrandReport summarizes one brand sync run.
type BrandReport struct {
	Fetched int
	Created int
	Skipped int
	Failed  int
}

// Run fetches all joined programmes and creates a brand document for each one
// not seen before.
func (s *BrandSyncer) Run(ctx context.Context) (BrandReport, error) {
	var report BrandReport

	programmes, err := s.feed.FetchProgrammes(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to fetch programmes: %w", err)
	}
	report.Fetched = len(programmes)

	existing, err := s.store.ListBrands(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list brands: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, b := range existing {
		known[b.ProgrammeID] = true
	}

	now := s.now()
	var creates []models.Brand
	for _, p := range programmes {
		if p.ID == "" {
			s.log.Warn("Skipping programme without an id", "name", p.Name)
			report.Skipped++
			continue
		}
		if known[p.ID] {
			s.log.Debug("Brand already exists, skipping", "programmeId", p.ID, "name", p.Name)
			report.Skipped++
			continue
		}
		creates = append(creates, models.Brand{
			ProgrammeID: p.ID,
			Name:        p.Name,
			Description: p.Description,
			Logo:        p.LogoURL,
			Status:      brandStatus(p.Status),
			ActiveDeals: 0,
			Source:      feedSource,
			RawData:     p.Raw,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if len(creates) == 0 {
		s.log.Info("Brand sync complete, nothing new", "fetched", report.Fetched)
		return report, nil
	}

	bulk, err := s.store.CreateBrands(ctx, creates)
	if err != nil {
		return report, fmt.Errorf("failed to create brands: %w", err)
	}
	report.Created = bulk.Succeeded
	report.Failed = bulk.Failed

	s.log.Info("Brand sync complete",
		"fetched", report.Fetched,
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}
