package feedback

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stakesim/stakesim/internal/domain"
	"github.com/stakesim/stakesim/internal/tiers"
)

func newLoop(t *testing.T, profile tiers.Profile) *Loop {
	t.Helper()
	c, err := tiers.NewClassifier(profile)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return NewLoop(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func entries(category string, wins, losses, pushes int) []domain.LedgerEntry {
	var out []domain.LedgerEntry
	for i := 0; i < wins; i++ {
		out = append(out, domain.LedgerEntry{Category: category, Outcome: domain.OutcomeWin})
	}
	for i := 0; i < losses; i++ {
		out = append(out, domain.LedgerEntry{Category: category, Outcome: domain.OutcomeLoss})
	}
	for i := 0; i < pushes; i++ {
		out = append(out, domain.LedgerEntry{Category: category, Outcome: domain.OutcomePush})
	}
	return out
}

func TestRecomputeClassifiesCategories(t *testing.T) {
	loop := newLoop(t, tiers.BootstrapProfile())
	prev := domain.NewTierTable(domain.TierParams{Tier: domain.TierInsufficient, Divisor: 10, MaxExposurePct: 0.01})

	history := append(entries("player_points", 4, 1, 0), entries("rebounds", 1, 2, 0)...)
	table, transitions := loop.Recompute(history, prev)

	pp := table.Lookup("player_points")
	if pp.Tier != domain.TierHigh {
		t.Fatalf("player_points tier = %s, want HIGH", pp.Tier)
	}
	if pp.SampleSize != 5 || pp.WinRate != 0.8 {
		t.Fatalf("player_points sample = %+v", pp)
	}

	rb := table.Lookup("rebounds")
	if rb.Tier != domain.TierLow {
		t.Fatalf("rebounds tier = %s, want LOW", rb.Tier)
	}

	if len(transitions) != 2 {
		t.Fatalf("transitions = %+v, want 2", transitions)
	}
	for _, tr := range transitions {
		if tr.From != domain.TierInsufficient || !tr.Upgrade() {
			t.Fatalf("unexpected transition %+v", tr)
		}
	}
}

func TestRecomputeNoTransitionStillUpdates(t *testing.T) {
	loop := newLoop(t, tiers.BootstrapProfile())

	history := entries("player_points", 4, 1, 0)
	first, _ := loop.Recompute(history, domain.NewTierTable(loop.classifier.Fallback()))

	// Same tier, deeper sample: no transition, but the entry refreshes.
	history = append(history, entries("player_points", 2, 0, 0)...)
	second, transitions := loop.Recompute(history, first)

	if len(transitions) != 0 {
		t.Fatalf("transitions = %+v, want none", transitions)
	}
	got := second.Lookup("player_points")
	if got.SampleSize != 7 {
		t.Fatalf("sample size = %d, want 7", got.SampleSize)
	}
	if got.Tier != domain.TierHigh {
		t.Fatalf("tier = %s, want HIGH", got.Tier)
	}
}

func TestRecomputeDowngrade(t *testing.T) {
	loop := newLoop(t, tiers.BootstrapProfile())

	history := entries("assists", 4, 1, 0)
	table, _ := loop.Recompute(history, domain.NewTierTable(loop.classifier.Fallback()))

	// A losing streak drags the rate below the HIGH bar.
	history = append(history, entries("assists", 0, 4, 0)...)
	table, transitions := loop.Recompute(history, table)

	got := table.Lookup("assists")
	if got.Tier == domain.TierHigh {
		t.Fatalf("tier stayed HIGH after losing streak: %+v", got)
	}
	if len(transitions) != 1 || transitions[0].Upgrade() {
		t.Fatalf("transitions = %+v, want one downgrade", transitions)
	}
}

func TestRecomputePushesCountTowardSampleOnly(t *testing.T) {
	loop := newLoop(t, tiers.BootstrapProfile())

	// 2 wins, 1 loss, 2 pushes: sample size 5, win rate 2/3.
	history := entries("rebounds", 2, 1, 2)
	table, _ := loop.Recompute(history, domain.NewTierTable(loop.classifier.Fallback()))

	got := table.Lookup("rebounds")
	if got.SampleSize != 5 {
		t.Fatalf("sample size = %d, want 5", got.SampleSize)
	}
	if got.WinRate != 2.0/3.0 {
		t.Fatalf("win rate = %v, want 2/3", got.WinRate)
	}
	// 5 bets at 0.667 clears the bootstrap HIGH bar (4 bets, 0.60).
	if got.Tier != domain.TierHigh {
		t.Fatalf("tier = %s, want HIGH", got.Tier)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	loop := newLoop(t, tiers.ProductionProfile())
	prev := domain.NewTierTable(loop.classifier.Fallback())
	history := append(entries("a", 25, 10, 1), entries("b", 3, 9, 0)...)

	t1, tr1 := loop.Recompute(history, prev)
	t2, tr2 := loop.Recompute(history, prev)

	if len(t1.Entries) != len(t2.Entries) {
		t.Fatalf("entry counts differ: %d vs %d", len(t1.Entries), len(t2.Entries))
	}
	for cat, p1 := range t1.Entries {
		if p2 := t2.Entries[cat]; p1 != p2 {
			t.Fatalf("category %s differs: %+v vs %+v", cat, p1, p2)
		}
	}
	if len(tr1) != len(tr2) {
		t.Fatalf("transition counts differ: %d vs %d", len(tr1), len(tr2))
	}
}
