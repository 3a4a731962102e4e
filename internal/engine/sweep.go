package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Sweep executes several independent simulation runs over the same event
// stream in parallel, one variant per config. Each run owns an isolated
// ledger and tier table, so variants share nothing mutable; only the input
// events are shared, and they are read-only.
type Sweep struct {
	logger      *slog.Logger
	concurrency int
}

// NewSweep creates a Sweep. Concurrency caps the number of simultaneous
// runs; zero or negative means no cap.
func NewSweep(concurrency int, logger *slog.Logger) *Sweep {
	return &Sweep{
		logger:      logger.With(slog.String("component", "sweep")),
		concurrency: concurrency,
	}
}

// Run executes all variants and returns their results keyed by run id. It
// fails fast: the first fatal run error cancels the remaining runs.
func (s *Sweep) Run(ctx context.Context, configs []Config, events []Event) (map[string]*Result, error) {
	results := make(map[string]*Result, len(configs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	for _, cfg := range configs {
		g.Go(func() error {
			eng, err := New(cfg, s.logger)
			if err != nil {
				return fmt.Errorf("sweep: variant %s: %w", cfg.RunID, err)
			}

			res, err := eng.Run(gctx, events)
			if err != nil {
				return fmt.Errorf("sweep: variant %s: %w", cfg.RunID, err)
			}

			mu.Lock()
			results[cfg.RunID] = res
			mu.Unlock()

			s.logger.Info("variant complete",
				slog.String("run_id", cfg.RunID),
				slog.String("profile", cfg.Profile.Name),
				slog.Float64("final_balance", res.Final.CurrentBalance),
				slog.Float64("roi", res.Metrics.ROI),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
