package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Sweeper expires live offers whose deadline has passed.
type Sweeper struct {
	Service     *Service
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
}

// SweepReport counts the outcome of one sweep.
type SweepReport struct {
	Due     int `json:"due"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunOnce expires one batch of due offers. An offer that a user moved
// first is skipped; other per-offer failures are logged and counted.
func (s Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	logger := ResolveLogger(s.Logger)
	limit := s.BatchSize
	if limit <= 0 {
		limit = types.DefaultSweepBatch
	}
	workers := s.Concurrency
	if workers <= 0 {
		workers = 4
	}

	due, err := s.Service.store.ListExpiredLiveOffers(ctx, s.Service.Now(), limit)
	if err != nil {
		logger.ErrorContext(ctx, "expiry sweep list failed",
			"event", "sweep_list_failed",
			"module", "broker",
			"layer", "worker",
			"error", err.Error(),
		)
		return SweepReport{}, err
	}

	var expired, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)
	for _, e := range due {
		g.Go(func() error {
			_, err := s.Service.ExpireOffer(ctx, e)
			switch {
			case err == nil:
				expired.Add(1)
			case errors.Is(err, types.ErrConflict), errors.Is(err, types.ErrInvalidTransition):
				skipped.Add(1)
			default:
				failed.Add(1)
				logger.ErrorContext(ctx, "offer expiry failed",
					"event", "sweep_expire_failed",
					"module", "broker",
					"layer", "worker",
					"thread_id", e.ThreadID,
					"offer_id", e.OfferID,
					"error", err.Error(),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := SweepReport{
		Due:     len(due),
		Expired: int(expired.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	logger.InfoContext(ctx, "expiry sweep finished",
		"event", "sweep_finished",
		"module", "broker",
		"layer", "worker",
		"due", report.Due,
		"expired", report.Expired,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, ctx.Err()
}

// Run sweeps every interval until ctx is done.
func (s Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = types.DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			ResolveLogger(s.Logger).WarnContext(ctx, "expiry sweep failed",
				"event", "sweep_failed",
				"module", "broker",
				"layer", "worker",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
