// Package performance records equity snapshots and derives return metrics.
package performance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
	"ai-trader/internal/store"
)

// Snapshotter periodically records each portfolio's equity and updates
// its daily return metrics from the equity curve.
type Snapshotter struct {
	store    store.Store
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewSnapshotter creates a snapshotter that runs every interval.
func NewSnapshotter(st store.Store, logger zerolog.Logger, interval time.Duration) *Snapshotter {
	return &Snapshotter{
		store:    st,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run records snapshots on the configured interval until ctx is
// canceled. The first pass runs immediately.
func (s *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.snapshotAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.snapshotAll(ctx)
		}
	}
}

func (s *Snapshotter) snapshotAll(ctx context.Context) {
	portfolios, err := s.store.ListPortfolios(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Listing portfolios for snapshot failed")
		return
	}

	for i := range portfolios {
		// ListPortfolios omits positions; the versioned write in
		// Snapshot rewrites them, so each portfolio needs a full load.
		p, err := s.store.GetPortfolio(ctx, portfolios[i].ID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("portfolio_id", portfolios[i].ID).
				Msg("Loading portfolio for snapshot failed")
			continue
		}
		if err := s.Snapshot(ctx, p); err != nil {
			s.logger.Warn().Err(err).
				Str("portfolio_id", p.ID).
				Msg("Snapshot failed")
		}
	}
}

// Snapshot records one equity point for the portfolio and refreshes its
// daily return against the last snapshot taken before the start of the
// current day.
func (s *Snapshotter) Snapshot(ctx context.Context, p *models.Portfolio) error {
	now := s.now()

	snap := &models.EquitySnapshot{
		PortfolioID: p.ID,
		Equity:      p.Equity,
		CashBalance: p.CashBalance,
		TakenAt:     now,
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return err
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	prev, err := s.store.LatestSnapshotBefore(ctx, p.ID, startOfDay)
	if err != nil {
		return err
	}
	if prev == nil {
		return nil // no history yet, daily return stays zero
	}

	p.Performance.DailyReturn = p.Equity - prev.Equity
	if prev.Equity != 0 {
		p.Performance.DailyReturnPercent = p.Performance.DailyReturn / prev.Equity * 100
	}

	err = s.store.SavePortfolio(ctx, p, p.Version)
	if apperrors.Is(err, apperrors.ErrConcurrencyConflict) {
		// A settlement got there first; the next pass catches up.
		s.logger.Debug().Str("portfolio_id", p.ID).Msg("Snapshot skipped, portfolio changed")
		return nil
	}
	return err
}
