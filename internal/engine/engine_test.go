package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stakesim/stakesim/internal/domain"
	"github.com/stakesim/stakesim/internal/tiers"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seededTable builds a tier table that already trusts one category, so
// sizing tests exercise a known divisor instead of the fallback.
func seededTable(category string, tier domain.Tier, divisor, exposure float64) *domain.TierTable {
	table := domain.NewTierTable(domain.TierParams{
		Tier:           domain.TierInsufficient,
		Divisor:        10,
		MaxExposurePct: 0.01,
	})
	table.Entries[category] = domain.TierParams{
		Tier:           tier,
		Divisor:        divisor,
		MaxExposurePct: exposure,
	}
	return &table
}

func betAt(id string, ts time.Time, category string, side domain.Side, line, odds, p float64) Event {
	return Event{Bet: &domain.BetRecord{
		ID:             id,
		Category:       category,
		Line:           line,
		Side:           side,
		DecimalOdds:    odds,
		WinProbability: p,
		Timestamp:      ts,
	}}
}

func resolveAt(id string, realized float64) Event {
	return Event{Resolution: &domain.ResolutionEvent{BetID: id, RealizedValue: realized}}
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestRunSingleWinScenario(t *testing.T) {
	// 10k bankroll, one bet at p=0.65, odds 1.91, divisor 4, 5% cap:
	// raw Kelly ~0.2654 -> /4 ~0.0664 -> clamped to 0.05 -> stake 500;
	// the win pays 500*0.91 = 455 for a final balance of 10455.
	e := newEngine(t, Config{
		RunID:           "scenario-a",
		Profile:         tiers.ProductionProfile(),
		StartingBalance: 10000,
		MinWager:        5,
		SeedTable:       seededTable("player_points", domain.TierHigh, 4, 0.05),
	})

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	events := []Event{
		betAt("a1", ts, "player_points", domain.SideOver, 20.5, 1.91, 0.65),
		resolveAt("a1", 24),
	}

	res, err := e.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Placed != 1 || res.Skipped != 0 || res.Rejected != 0 {
		t.Fatalf("counts = %+v", res)
	}
	if math.Abs(res.Final.CurrentBalance-10455) > 1e-9 {
		t.Fatalf("final balance = %v, want 10455", res.Final.CurrentBalance)
	}
	if len(res.Final.History) != 1 {
		t.Fatalf("history = %d entries, want 1", len(res.Final.History))
	}
	entry := res.Final.History[0]
	if entry.Stake != 500 || entry.Outcome != domain.OutcomeWin {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestRunNegativeKellySkips(t *testing.T) {
	e := newEngine(t, Config{
		RunID:           "scenario-c",
		Profile:         tiers.ProductionProfile(),
		StartingBalance: 10000,
		MinWager:        5,
	})

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	// p=0.45 at even odds has negative edge.
	events := []Event{betAt("c1", ts, "player_points", domain.SideOver, 10, 2.0, 0.45)}

	res, err := e.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || res.Placed != 0 {
		t.Fatalf("skipped = %d, placed = %d", res.Skipped, res.Placed)
	}
	if res.Final.CurrentBalance != 10000 {
		t.Fatalf("bankroll moved on skip: %v", res.Final.CurrentBalance)
	}
	if len(res.Final.History) != 0 {
		t.Fatal("skip produced a ledger entry")
	}
}

func TestRunIsolatesMalformedRecords(t *testing.T) {
	e := newEngine(t, Config{
		RunID:           "malformed",
		Profile:         tiers.ProductionProfile(),
		StartingBalance: 10000,
		MinWager:        5,
		SeedTable:       seededTable("player_points", domain.TierHigh, 4, 0.05),
	})

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	events := []Event{
		betAt("m1", ts, "player_points", domain.SideOver, 10, 1.0, 0.6), // odds <= 1
		betAt("m2", ts, "player_points", domain.SideOver, 10, 2.0, 1.2), // p > 1
		{Bet: &domain.BetRecord{ID: "m3", Side: "sideways", DecimalOdds: 2, WinProbability: 0.5, Timestamp: ts}},
		betAt("m4", ts, "player_points", domain.SideOver, 20.5, 1.91, 0.6), // healthy
		resolveAt("m4", 24),
	}

	res, err := e.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rejected != 3 {
		t.Fatalf("rejected = %d, want 3", res.Rejected)
	}
	if res.Placed != 1 || len(res.Final.History) != 1 {
		t.Fatalf("healthy bet did not survive: %+v", res)
	}
}

func TestRunDropsDuplicateAndOrphanResolutions(t *testing.T) {
	e := newEngine(t, Config{
		RunID:           "replay",
		Profile:         tiers.ProductionProfile(),
		StartingBalance: 10000,
		MinWager:        5,
		SeedTable:       seededTable("player_points", domain.TierHigh, 4, 0.05),
	})

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	events := []Event{
		betAt("r1", ts, "player_points", domain.SideOver, 20.5, 1.91, 0.65),
		resolveAt("r1", 24),
		resolveAt("r1", 24),    // identical replay
		resolveAt("r1", 3),     // conflicting replay: original stands
		resolveAt("ghost", 12), // orphan
	}

	res, err := e.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Dropped != 3 {
		t.Fatalf("dropped = %d, want 3", res.Dropped)
	}
	if len(res.Final.History) != 1 {
		t.Fatalf("history = %d, want 1", len(res.Final.History))
	}
	if math.Abs(res.Final.CurrentBalance-10455) > 1e-9 {
		t.Fatalf("balance = %v, want 10455 (original resolution stands)", res.Final.CurrentBalance)
	}
}

func TestRunCheckpointRetunesTiers(t *testing.T) {
	e := newEngine(t, Config{
		RunID:           "adaptive",
		Profile:         tiers.BootstrapProfile(),
		StartingBalance: 10000,
		MinWager:        1,
		CheckpointEvery: 5,
	})

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	var events []Event
	// Five winning bets in one category, resolved in order. The category
	// starts at the INSUFFICIENT fallback; the checkpoint after the fifth
	// resolution should promote it.
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("w%d", i)
		events = append(events,
			betAt(id, ts.Add(time.Duration(i)*time.Minute), "player_points", domain.SideOver, 10, 2.2, 0.65),
			resolveAt(id, 15),
		)
	}

	res, err := e.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := res.TierTable.Lookup("player_points")
	if got.Tier != domain.TierHigh {
		t.Fatalf("tier after run = %s, want HIGH (sample %d, rate %v)", got.Tier, got.SampleSize, got.WinRate)
	}
	if len(res.Transitions) == 0 {
		t.Fatal("expected at least one tier transition")
	}
	tr := res.Transitions[0]
	if tr.From != domain.TierInsufficient || !tr.Upgrade() {
		t.Fatalf("transition = %+v", tr)
	}
}

func TestRunBalanceConservation(t *testing.T) {
	e := newEngine(t, Config{
		RunID:           "conservation",
		Profile:         tiers.BootstrapProfile(),
		StartingBalance: 5000,
		MinWager:        1,
		CheckpointEvery: 3,
	})

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	var events []Event
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("b%d", i)
		side := domain.SideOver
		if i%2 == 1 {
			side = domain.SideUnder
		}
		events = append(events,
			betAt(id, ts.Add(time.Duration(i)*time.Minute), fmt.Sprintf("cat%d", i%3), side, 10, 1.91, 0.58),
			resolveAt(id, float64(6+(i*7)%9)), // deterministic mix of outcomes
		)
	}

	res, err := e.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sum float64
	for _, entry := range res.Final.History {
		sum += entry.ProfitAndLoss
	}
	if math.Abs(res.Final.CurrentBalance-(res.Final.StartingBalance+sum)) > 1e-6 {
		t.Fatalf("conservation violated: %v vs %v",
			res.Final.CurrentBalance, res.Final.StartingBalance+sum)
	}

	// Every stake respected the sizing-time exposure cap (at most the
	// fallback 1% or a promoted tier's cap, never more than HIGH's 3%).
	for _, entry := range res.Final.History {
		if entry.Stake < 0 {
			t.Fatalf("negative stake: %+v", entry)
		}
	}
}

func TestRunUnresolvedStaysPending(t *testing.T) {
	e := newEngine(t, Config{
		RunID:           "pending",
		Profile:         tiers.ProductionProfile(),
		StartingBalance: 10000,
		MinWager:        5,
		SeedTable:       seededTable("player_points", domain.TierHigh, 4, 0.05),
	})

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	events := []Event{
		betAt("p1", ts, "player_points", domain.SideOver, 20.5, 1.91, 0.6),
		betAt("p2", ts.Add(time.Minute), "player_points", domain.SideOver, 20.5, 1.91, 0.6),
		resolveAt("p1", 24),
		// p2 never resolves.
	}

	res, err := e.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pending != 1 {
		t.Fatalf("pending = %d, want 1", res.Pending)
	}
	// Pending bets are excluded from metrics.
	if res.Metrics.TotalBets != 1 {
		t.Fatalf("metrics counted pending bet: %+v", res.Metrics)
	}
}

func TestRunCancelled(t *testing.T) {
	e := newEngine(t, Config{
		RunID:           "cancelled",
		Profile:         tiers.ProductionProfile(),
		StartingBalance: 10000,
		MinWager:        5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	events := []Event{betAt("x1", ts, "player_points", domain.SideOver, 10, 2.0, 0.55)}
	if _, err := e.Run(ctx, events); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSweepIsolatesVariants(t *testing.T) {
	ts := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	var events []Event
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("s%d", i)
		events = append(events,
			betAt(id, ts.Add(time.Duration(i)*time.Minute), "player_points", domain.SideOver, 10, 1.91, 0.60),
			resolveAt(id, float64(8+(i*3)%5)),
		)
	}

	configs := []Config{
		{RunID: "prod", Profile: tiers.ProductionProfile(), StartingBalance: 10000, MinWager: 1, CheckpointEvery: 4},
		{RunID: "boot", Profile: tiers.BootstrapProfile(), StartingBalance: 10000, MinWager: 1, CheckpointEvery: 4},
	}

	results, err := NewSweep(2, discardLogger()).Run(context.Background(), configs, events)
	if err != nil {
		t.Fatalf("Sweep.Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	prod, boot := results["prod"], results["boot"]
	if prod == nil || boot == nil {
		t.Fatalf("missing variant results: %v", results)
	}
	// Same stream, different profiles: each run derives its own tier table
	// from its own isolated ledger.
	if prod.Profile != "production" || boot.Profile != "bootstrap" {
		t.Fatalf("profiles = %s, %s", prod.Profile, boot.Profile)
	}
	for _, r := range results {
		var sum float64
		for _, entry := range r.Final.History {
			sum += entry.ProfitAndLoss
		}
		if math.Abs(r.Final.CurrentBalance-(r.Final.StartingBalance+sum)) > 1e-6 {
			t.Fatalf("variant %s conservation violated", r.RunID)
		}
	}
}
