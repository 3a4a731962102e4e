package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stakesim/stakesim/internal/domain"
	"github.com/stakesim/stakesim/internal/engine"
	"github.com/stakesim/stakesim/internal/tiers"
)

// SimulateMode runs one simulation over the configured event stream,
// archives the result, and persists the final tier table for future runs.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulate mode",
		slog.String("input", a.cfg.Simulation.InputPath),
		slog.String("profile", a.cfg.Tiers.Profile),
	)

	events, err := a.loadEvents()
	if err != nil {
		return err
	}

	if a.cfg.Simulation.ResetTierTable && deps.TierCache != nil {
		if err := deps.TierCache.Invalidate(ctx, a.cfg.Simulation.TierTableKey); err != nil {
			return fmt.Errorf("simulate mode: reset tier table: %w", err)
		}
		a.logger.InfoContext(ctx, "tier table reset",
			slog.String("key", a.cfg.Simulation.TierTableKey),
		)
	}

	cfg := a.runConfig(uuid.NewString(), a.cfg.Tiers.Profile)
	cfg.SeedTable = a.seedTable(ctx, deps)

	eng, err := engine.New(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("simulate mode: %w", err)
	}

	res, err := eng.Run(ctx, events)
	if err != nil {
		return fmt.Errorf("simulate mode: %w", err)
	}

	if err := a.archiveRun(ctx, deps, res); err != nil {
		return fmt.Errorf("simulate mode: %w", err)
	}

	if deps.TierCache != nil {
		if err := deps.TierCache.Set(ctx, a.cfg.Simulation.TierTableKey, res.TierTable); err != nil {
			a.logger.WarnContext(ctx, "simulate mode: persist tier table failed",
				slog.String("error", err.Error()),
			)
		}
	}

	a.logResult(ctx, res)
	return nil
}

// SweepMode runs one simulation per configured profile variant over the
// same event stream, in parallel, and archives every result.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	profiles := a.cfg.SweepProfiles()
	a.logger.InfoContext(ctx, "starting sweep mode",
		slog.String("input", a.cfg.Simulation.InputPath),
		slog.Any("profiles", profiles),
		slog.Int("concurrency", a.cfg.Sweep.Concurrency),
	)

	events, err := a.loadEvents()
	if err != nil {
		return err
	}

	configs := make([]engine.Config, 0, len(profiles))
	for _, name := range profiles {
		configs = append(configs, a.runConfig(name+"-"+uuid.NewString(), name))
	}

	sweep := engine.NewSweep(a.cfg.Sweep.Concurrency, a.logger)
	results, err := sweep.Run(ctx, configs, events)
	if err != nil {
		return fmt.Errorf("sweep mode: %w", err)
	}

	for _, res := range results {
		if err := a.archiveRun(ctx, deps, res); err != nil {
			return fmt.Errorf("sweep mode: %w", err)
		}
		a.logResult(ctx, res)
	}
	return nil
}

// ReportMode reads the archive. With report.run_id set it shows that run's
// summary and archived ledger (optionally filtered by category); otherwise
// it lists recently archived runs with their headline metrics.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	if deps.RunStore == nil {
		return fmt.Errorf("report mode requires postgres.enabled")
	}

	if a.cfg.Report.RunID != "" {
		return a.reportRun(ctx, deps, a.cfg.Report.RunID)
	}

	runs, err := deps.RunStore.ListRecent(ctx, a.cfg.Report.Limit)
	if err != nil {
		return fmt.Errorf("report mode: %w", err)
	}
	if len(runs) == 0 {
		a.logger.InfoContext(ctx, "no archived runs found")
		return nil
	}

	for _, run := range runs {
		a.logRunSummary(ctx, run)
	}
	return nil
}

// reportRun shows one archived run: its summary plus the archived ledger
// entries, filtered by report.category when set.
func (a *App) reportRun(ctx context.Context, deps *Dependencies, runID string) error {
	run, err := deps.RunStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("report mode: run %s is not archived", runID)
		}
		return fmt.Errorf("report mode: %w", err)
	}
	a.logRunSummary(ctx, run)

	if deps.LedgerStore == nil {
		return nil
	}

	opts := domain.ListOpts{Limit: a.cfg.Report.Limit}
	var entries []domain.LedgerEntry
	if category := a.cfg.Report.Category; category != "" {
		entries, err = deps.LedgerStore.ListByCategory(ctx, runID, category, opts)
	} else {
		entries, err = deps.LedgerStore.ListByRun(ctx, runID, opts)
	}
	if err != nil {
		return fmt.Errorf("report mode: list ledger %s: %w", runID, err)
	}

	for _, e := range entries {
		a.logger.InfoContext(ctx, "ledger entry",
			slog.String("bet_id", e.BetID),
			slog.Time("timestamp", e.Timestamp),
			slog.Float64("stake", e.Stake),
			slog.Float64("odds", e.DecimalOdds),
			slog.String("result", string(e.Outcome)),
			slog.Float64("profit", e.ProfitAndLoss),
			slog.String("category", e.Category),
			slog.Float64("running_balance", e.RunningBalance),
		)
	}
	return nil
}

func (a *App) logRunSummary(ctx context.Context, run domain.RunSummary) {
	a.logger.InfoContext(ctx, "archived run",
		slog.String("run_id", run.RunID),
		slog.String("profile", run.Profile),
		slog.Time("finished_at", run.FinishedAt),
		slog.Int("total_bets", run.Metrics.TotalBets),
		slog.Float64("win_rate", run.Metrics.WinRate),
		slog.Float64("roi", run.Metrics.ROI),
		slog.Float64("max_drawdown", run.Metrics.MaxDrawdown),
		slog.Float64("final_balance", run.Metrics.FinalBalance),
	)
}

func (a *App) loadEvents() ([]engine.Event, error) {
	if a.cfg.Simulation.InputPath == "" {
		return nil, fmt.Errorf("simulation.input_path is required for this mode")
	}
	events, err := engine.LoadEvents(a.cfg.Simulation.InputPath)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event stream %s is empty", a.cfg.Simulation.InputPath)
	}
	return events, nil
}

func (a *App) runConfig(runID, profileName string) engine.Config {
	cfg := engine.Config{
		RunID:               runID,
		StartingBalance:     a.cfg.Simulation.StartingBalance,
		MinWager:            a.cfg.Simulation.MinWager,
		SituationalModifier: a.cfg.Simulation.SituationalModifier,
		CheckpointEvery:     a.cfg.Simulation.CheckpointEvery,
		Annualization:       a.cfg.Simulation.Annualization,
	}
	if profileName == a.cfg.Tiers.Profile {
		// The configured profile carries any per-tier overrides.
		cfg.Profile = a.cfg.TierProfile()
	} else {
		cfg.Profile = tiers.ProfileByName(profileName)
	}
	return cfg
}

// seedTable loads the persisted tier table when seeding is enabled. A cache
// miss just means a cold start.
func (a *App) seedTable(ctx context.Context, deps *Dependencies) *domain.TierTable {
	if !a.cfg.Simulation.SeedTierTable || deps.TierCache == nil {
		return nil
	}

	table, err := deps.TierCache.Get(ctx, a.cfg.Simulation.TierTableKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.WarnContext(ctx, "seed tier table load failed",
				slog.String("key", a.cfg.Simulation.TierTableKey),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	a.logger.InfoContext(ctx, "seeded tier table from cache",
		slog.String("key", a.cfg.Simulation.TierTableKey),
		slog.Int("categories", len(table.Entries)),
	)
	return &table
}

// archiveRun persists the run to whichever backends are wired: the run
// summary and resolved ledger to Postgres, the CSV and metrics artifacts to
// object storage. Backends that are not wired are skipped.
func (a *App) archiveRun(ctx context.Context, deps *Dependencies, res *engine.Result) error {
	summary := res.Summary()

	if deps.RunStore != nil {
		if err := deps.RunStore.Insert(ctx, summary); err != nil {
			return fmt.Errorf("archive run %s: %w", res.RunID, err)
		}
	}
	if deps.LedgerStore != nil {
		if err := deps.LedgerStore.InsertBatch(ctx, res.RunID, res.Final.History); err != nil {
			return fmt.Errorf("archive ledger %s: %w", res.RunID, err)
		}
	}

	if deps.Exporter != nil {
		if err := deps.Exporter.ExportLedger(ctx, res.RunID, res.Final); err != nil {
			return fmt.Errorf("export ledger %s: %w", res.RunID, err)
		}
		if err := deps.Exporter.ExportMetrics(ctx, summary); err != nil {
			return fmt.Errorf("export metrics %s: %w", res.RunID, err)
		}
	}
	return nil
}

func (a *App) logResult(ctx context.Context, res *engine.Result) {
	a.logger.InfoContext(ctx, "run result",
		slog.String("run_id", res.RunID),
		slog.String("profile", res.Profile),
		slog.Int("bets_seen", res.BetsSeen),
		slog.Int("placed", res.Placed),
		slog.Int("skipped", res.Skipped),
		slog.Int("rejected", res.Rejected),
		slog.Int("pending", res.Pending),
		slog.Int("transitions", len(res.Transitions)),
		slog.Float64("final_balance", res.Metrics.FinalBalance),
		slog.Float64("win_rate", res.Metrics.WinRate),
		slog.Float64("roi", res.Metrics.ROI),
		slog.Float64("max_drawdown", res.Metrics.MaxDrawdown),
	)
}
