// Package engine runs sequential wagering simulations: it feeds proposed
// bets through Kelly sizing and risk adjustment, applies resolutions to the
// bankroll ledger, and retunes tier parameters at checkpoints via the
// feedback loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stakesim/stakesim/internal/domain"
	"github.com/stakesim/stakesim/internal/feedback"
	"github.com/stakesim/stakesim/internal/kelly"
	"github.com/stakesim/stakesim/internal/ledger"
	"github.com/stakesim/stakesim/internal/metrics"
	"github.com/stakesim/stakesim/internal/risk"
	"github.com/stakesim/stakesim/internal/tiers"
)

// Event is one element of the simulation input stream: either a proposed
// bet or a resolution for an earlier bet. Exactly one field is set. Events
// must already be ordered by simulated time.
type Event struct {
	Bet        *domain.BetRecord
	Resolution *domain.ResolutionEvent
}

// Config holds the per-run parameters of a simulation.
type Config struct {
	RunID           string
	Profile         tiers.Profile
	StartingBalance float64
	MinWager        float64
	// SituationalModifier is threaded through to the risk sizer; zero
	// disables it.
	SituationalModifier float64
	// CheckpointEvery is the number of resolutions between tier table
	// recomputes. Zero disables checkpointing mid-run (a final recompute
	// still happens when the run finishes).
	CheckpointEvery int
	// Annualization is the Sharpe annualization factor; zero uses the
	// default.
	Annualization float64
	// SeedTable optionally carries a tier table from a previous run.
	SeedTable *domain.TierTable
}

// Result is the outcome of one completed run.
type Result struct {
	RunID      string
	Profile    string
	StartedAt  time.Time
	FinishedAt time.Time

	Final       domain.BankrollSnapshot
	Metrics     domain.MetricsSnapshot
	TierTable   domain.TierTable
	Transitions []domain.TierTransition

	BetsSeen int
	Placed   int
	Skipped  int
	Rejected int // malformed records dropped
	Pending  int
	Dropped  int // duplicate/orphan resolutions dropped
}

// Summary converts the result to a run summary for archival.
func (r *Result) Summary() domain.RunSummary {
	return domain.RunSummary{
		RunID:      r.RunID,
		Profile:    r.Profile,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Metrics:    r.Metrics,
	}
}

// Engine wires the core components for one simulation run. It is
// single-threaded by design: bets process in timestamp order, and all
// balance mutation funnels through the ledger.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	sizer *risk.Sizer
	book  *ledger.Ledger
	loop  *feedback.Loop
	agg   *metrics.Aggregator

	sinceCheckpoint int
	transitions     []domain.TierTransition

	betsSeen int
	placed   int
	skipped  int
	rejected int
	dropped  int
}

// New constructs an Engine from the run config. The tier table starts from
// cfg.SeedTable when set, otherwise from the profile's fallback entry alone.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	classifier, err := tiers.NewClassifier(cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if cfg.StartingBalance <= 0 {
		return nil, fmt.Errorf("engine: starting balance %.2f must be positive", cfg.StartingBalance)
	}

	logger = logger.With(slog.String("run_id", cfg.RunID))

	table := domain.NewTierTable(classifier.Fallback())
	if cfg.SeedTable != nil {
		table = *cfg.SeedTable
	}

	sizer := risk.NewSizer(risk.SizerConfig{
		MinWager:            cfg.MinWager,
		SituationalModifier: cfg.SituationalModifier,
	}, table, logger)

	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "engine")),
		sizer:  sizer,
		book:   ledger.New(cfg.StartingBalance, logger),
		loop:   feedback.NewLoop(classifier, logger),
		agg:    metrics.NewAggregator(cfg.Annualization),
	}, nil
}

// ProcessBet runs one proposed bet through sizing and placement. Malformed
// records are rejected individually: the returned error describes the
// record, and the stream continues.
func (e *Engine) ProcessBet(rec domain.BetRecord) (domain.SizedBet, error) {
	e.betsSeen++

	if !rec.Side.Valid() {
		e.rejected++
		return domain.SizedBet{}, fmt.Errorf("engine: bet %s (category %s): unknown side %q", rec.ID, rec.Category, rec.Side)
	}

	raw, err := kelly.FractionForRecord(rec)
	if err != nil {
		e.rejected++
		return domain.SizedBet{}, err
	}

	sized := e.sizer.SizeBet(rec, raw, e.book.Balance())
	if sized.Decision.Skipped() {
		e.skipped++
		e.logger.Debug("bet skipped",
			slog.String("bet_id", rec.ID),
			slog.String("category", rec.Category),
			slog.String("reason", string(sized.Decision)),
			slog.Float64("raw_kelly", raw),
		)
		return sized, nil
	}

	if err := e.book.Place(sized); err != nil {
		e.rejected++
		return domain.SizedBet{}, fmt.Errorf("engine: place bet %s: %w", rec.ID, err)
	}
	e.placed++
	return sized, nil
}

// ProcessResolution applies one resolution event. Duplicate and orphan
// resolutions are logged and dropped; a ledger invariant violation is
// returned as fatal.
func (e *Engine) ProcessResolution(ev domain.ResolutionEvent) error {
	entry, err := e.book.Resolve(ev)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateResolution), errors.Is(err, domain.ErrOrphanResolution):
		e.dropped++
		e.logger.Warn("resolution dropped",
			slog.String("bet_id", ev.BetID),
			slog.String("error", err.Error()),
		)
		return nil
	default:
		// Only the conservation invariant reaches here; it halts the run.
		return err
	}

	e.logger.Debug("bet resolved",
		slog.String("bet_id", entry.BetID),
		slog.String("outcome", string(entry.Outcome)),
		slog.Float64("profit", entry.ProfitAndLoss),
		slog.Float64("balance", entry.RunningBalance),
	)

	if e.cfg.CheckpointEvery > 0 {
		e.sinceCheckpoint++
		if e.sinceCheckpoint >= e.cfg.CheckpointEvery {
			e.checkpoint()
			e.sinceCheckpoint = 0
		}
	}
	return nil
}

// checkpoint recomputes the tier table from a point-in-time snapshot of the
// full resolved history and swaps it into the sizer.
func (e *Engine) checkpoint() {
	snap := e.book.Snapshot()
	table, transitions := e.loop.Recompute(snap.History, e.sizer.Table())
	e.sizer.SwapTable(table)
	e.transitions = append(e.transitions, transitions...)

	e.logger.Info("checkpoint recompute",
		slog.Int("resolved", snap.Resolved()),
		slog.Int("categories", len(table.Entries)),
		slog.Int("transitions", len(transitions)),
	)
}

// Run consumes the whole event stream sequentially and returns the run
// result. Per-record failures are logged and isolated; the only errors that
// abort a run are context cancellation and ledger corruption.
func (e *Engine) Run(ctx context.Context, events []Event) (*Result, error) {
	started := time.Now().UTC()

	for i, ev := range events {
		if i%256 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		switch {
		case ev.Bet != nil:
			if _, err := e.ProcessBet(*ev.Bet); err != nil {
				e.logger.Warn("bet rejected", slog.String("error", err.Error()))
			}
		case ev.Resolution != nil:
			if err := e.ProcessResolution(*ev.Resolution); err != nil {
				return nil, fmt.Errorf("engine: run %s: %w", e.cfg.RunID, err)
			}
		}
	}

	// Final recompute so the returned table reflects the complete history.
	e.checkpoint()

	final := e.book.Snapshot()
	res := &Result{
		RunID:       e.cfg.RunID,
		Profile:     e.cfg.Profile.Name,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Final:       final,
		Metrics:     e.agg.Compute(final),
		TierTable:   e.sizer.Table(),
		Transitions: e.transitions,
		BetsSeen:    e.betsSeen,
		Placed:      e.placed,
		Skipped:     e.skipped,
		Rejected:    e.rejected,
		Pending:     e.book.PendingCount(),
		Dropped:     e.dropped,
	}

	e.logger.Info("run complete",
		slog.Int("bets_seen", res.BetsSeen),
		slog.Int("placed", res.Placed),
		slog.Int("skipped", res.Skipped),
		slog.Int("rejected", res.Rejected),
		slog.Int("pending", res.Pending),
		slog.Float64("final_balance", final.CurrentBalance),
	)
	return res, nil
}
