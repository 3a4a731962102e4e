package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stakesim/stakesim/internal/config"
	"github.com/stakesim/stakesim/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunStore struct {
	runs map[string]domain.RunSummary
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[string]domain.RunSummary)}
}

func (s *fakeRunStore) Insert(_ context.Context, run domain.RunSummary) error {
	s.runs[run.RunID] = run
	return nil
}

func (s *fakeRunStore) GetByID(_ context.Context, runID string) (domain.RunSummary, error) {
	run, ok := s.runs[runID]
	if !ok {
		return domain.RunSummary{}, domain.ErrNotFound
	}
	return run, nil
}

func (s *fakeRunStore) ListRecent(_ context.Context, limit int) ([]domain.RunSummary, error) {
	var out []domain.RunSummary
	for _, run := range s.runs {
		out = append(out, run)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeLedgerStore struct {
	entries  map[string][]domain.LedgerEntry
	lastList string // "run" or "category"
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{entries: make(map[string][]domain.LedgerEntry)}
}

func (s *fakeLedgerStore) InsertBatch(_ context.Context, runID string, entries []domain.LedgerEntry) error {
	seen := make(map[string]bool, len(s.entries[runID]))
	for _, e := range s.entries[runID] {
		seen[e.BetID] = true
	}
	for _, e := range entries {
		if seen[e.BetID] {
			continue
		}
		s.entries[runID] = append(s.entries[runID], e)
	}
	return nil
}

func (s *fakeLedgerStore) ListByRun(_ context.Context, runID string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	s.lastList = "run"
	entries := s.entries[runID]
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

func (s *fakeLedgerStore) ListByCategory(_ context.Context, runID, category string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	s.lastList = "category"
	var out []domain.LedgerEntry
	for _, e := range s.entries[runID] {
		if e.Category != category {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

type fakeTierCache struct {
	tables        map[string]domain.TierTable
	invalidations int
}

func newFakeTierCache() *fakeTierCache {
	return &fakeTierCache{tables: make(map[string]domain.TierTable)}
}

func (c *fakeTierCache) Set(_ context.Context, key string, table domain.TierTable) error {
	c.tables[key] = table
	return nil
}

func (c *fakeTierCache) Get(_ context.Context, key string) (domain.TierTable, error) {
	table, ok := c.tables[key]
	if !ok {
		return domain.TierTable{}, domain.ErrNotFound
	}
	return table, nil
}

func (c *fakeTierCache) Invalidate(_ context.Context, key string) error {
	c.invalidations++
	delete(c.tables, key)
	return nil
}

func writeEvents(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(&cfg, discardLogger())
}

func TestSimulateModeArchivesRun(t *testing.T) {
	path := writeEvents(t,
		`{"type":"bet","bet":{"id":"b1","category":"player_points","line":25.5,"side":"over","decimal_odds":1.91,"win_probability":0.65,"timestamp":"2026-03-01T12:00:00Z"}}`,
		`{"type":"resolution","resolution":{"bet_id":"b1","realized_value":31}}`,
	)

	runs := newFakeRunStore()
	entries := newFakeLedgerStore()
	cache := newFakeTierCache()
	a := testApp(t, func(cfg *config.Config) {
		cfg.Simulation.InputPath = path
	})

	deps := &Dependencies{RunStore: runs, LedgerStore: entries, TierCache: cache}
	if err := a.SimulateMode(context.Background(), deps); err != nil {
		t.Fatalf("SimulateMode: %v", err)
	}

	if len(runs.runs) != 1 {
		t.Fatalf("archived %d runs, want 1", len(runs.runs))
	}
	var runID string
	for id := range runs.runs {
		runID = id
	}
	if got := len(entries.entries[runID]); got != 1 {
		t.Errorf("archived %d ledger entries, want 1", got)
	}
	if _, ok := cache.tables["default"]; !ok {
		t.Error("tier table was not persisted under the default key")
	}
}

func TestSimulateModeResetInvalidatesTierTable(t *testing.T) {
	path := writeEvents(t,
		`{"type":"bet","bet":{"id":"b1","category":"player_points","line":25.5,"side":"over","decimal_odds":1.91,"win_probability":0.65,"timestamp":"2026-03-01T12:00:00Z"}}`,
		`{"type":"resolution","resolution":{"bet_id":"b1","realized_value":31}}`,
	)

	cache := newFakeTierCache()
	stale := domain.NewTierTable(domain.TierParams{Tier: domain.TierHigh, Divisor: 1, MaxExposurePct: 1})
	cache.tables["default"] = stale

	a := testApp(t, func(cfg *config.Config) {
		cfg.Simulation.InputPath = path
		cfg.Simulation.SeedTierTable = true
		cfg.Simulation.ResetTierTable = true
	})

	deps := &Dependencies{TierCache: cache}
	if err := a.SimulateMode(context.Background(), deps); err != nil {
		t.Fatalf("SimulateMode: %v", err)
	}

	if cache.invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", cache.invalidations)
	}
	// The stale table was dropped before seeding; the run persisted a
	// fresh one computed from its own history.
	saved, ok := cache.tables["default"]
	if !ok {
		t.Fatal("no tier table persisted after the run")
	}
	if saved.Default.Tier == domain.TierHigh && saved.Default.Divisor == 1 {
		t.Error("persisted table still carries the stale pre-reset entry")
	}
}

func TestReportModeRunDetail(t *testing.T) {
	runs := newFakeRunStore()
	runs.runs["run-x"] = domain.RunSummary{RunID: "run-x", Profile: "production"}

	entries := newFakeLedgerStore()
	entries.entries["run-x"] = []domain.LedgerEntry{
		{BetID: "b1", Category: "player_points", Outcome: domain.OutcomeWin},
		{BetID: "b2", Category: "rebounds", Outcome: domain.OutcomeLoss},
	}

	a := testApp(t, func(cfg *config.Config) {
		cfg.Mode = "report"
		cfg.Report.RunID = "run-x"
	})
	deps := &Dependencies{RunStore: runs, LedgerStore: entries}

	if err := a.ReportMode(context.Background(), deps); err != nil {
		t.Fatalf("ReportMode: %v", err)
	}
	if entries.lastList != "run" {
		t.Errorf("last list call = %q, want run", entries.lastList)
	}
}

func TestReportModeRunDetailByCategory(t *testing.T) {
	runs := newFakeRunStore()
	runs.runs["run-x"] = domain.RunSummary{RunID: "run-x", Profile: "production"}

	entries := newFakeLedgerStore()
	entries.entries["run-x"] = []domain.LedgerEntry{
		{BetID: "b1", Category: "player_points", Outcome: domain.OutcomeWin},
		{BetID: "b2", Category: "rebounds", Outcome: domain.OutcomeLoss},
	}

	a := testApp(t, func(cfg *config.Config) {
		cfg.Mode = "report"
		cfg.Report.RunID = "run-x"
		cfg.Report.Category = "rebounds"
	})
	deps := &Dependencies{RunStore: runs, LedgerStore: entries}

	if err := a.ReportMode(context.Background(), deps); err != nil {
		t.Fatalf("ReportMode: %v", err)
	}
	if entries.lastList != "category" {
		t.Errorf("last list call = %q, want category", entries.lastList)
	}
}

func TestReportModeUnknownRun(t *testing.T) {
	a := testApp(t, func(cfg *config.Config) {
		cfg.Mode = "report"
		cfg.Report.RunID = "missing"
	})
	deps := &Dependencies{RunStore: newFakeRunStore()}

	err := a.ReportMode(context.Background(), deps)
	if err == nil || !strings.Contains(err.Error(), "not archived") {
		t.Fatalf("err = %v, want not-archived error", err)
	}
}
