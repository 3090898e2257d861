package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweeper retires promotions whose expiry has passed but whose status is still
// active. Runs are idempotent; an already-deactivated promotion never matches
// the query again.
type Sweeper struct {
	store SweepStore
	log   *slog.Logger
	now   func() time.Time
}

func NewSweeper(store SweepStore, log *slog.Logger) *Sweeper {
	return &Sweeper{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Run deactivates every expired promotion and reports how many were swept.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.ExpiredActivePromotionIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired promotions: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info("Expiry sweep complete, nothing expired")
		return 0, nil
	}

	report, err := s.store.DeactivatePromotions(ctx, ids, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate promotions: %w", err)
	}
	if report.Failed > 0 {
		s.log.Warn("Some deactivations failed", "failed", report.Failed)
	}

	s.log.Info("Expiry sweep complete", "swept", report.Succeeded)
	return report.Succeeded, nil
}
