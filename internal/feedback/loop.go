// Package feedback implements the adaptive loop that recomputes the tier
// table from accumulated ledger history at checkpoints.
package feedback

import (
	"log/slog"
	"sort"

	"github.com/stakesim/stakesim/internal/domain"
	"github.com/stakesim/stakesim/internal/tiers"
)

// Loop recomputes tier classifications from resolved history. Recompute is
// a pure function of its snapshot, so a checkpoint that fails downstream
// (persistence, say) can simply be retried.
type Loop struct {
	classifier *tiers.Classifier
	logger     *slog.Logger
}

// NewLoop creates a feedback Loop using the given classifier.
func NewLoop(classifier *tiers.Classifier, logger *slog.Logger) *Loop {
	return &Loop{
		classifier: classifier,
		logger:     logger.With(slog.String("component", "feedback")),
	}
}

// Recompute groups resolved entries by category, classifies each category's
// (sample size, win rate), and builds a fresh tier table. It returns the
// table together with the list of tier transitions relative to prev, for
// observability; an empty transition list never blocks the new table.
func (l *Loop) Recompute(history []domain.LedgerEntry, prev domain.TierTable) (domain.TierTable, []domain.TierTransition) {
	type tally struct {
		wins, losses, pushes int
	}
	tallies := make(map[string]*tally)
	for _, e := range history {
		t, ok := tallies[e.Category]
		if !ok {
			t = &tally{}
			tallies[e.Category] = t
		}
		switch e.Outcome {
		case domain.OutcomeWin:
			t.wins++
		case domain.OutcomeLoss:
			t.losses++
		case domain.OutcomePush:
			t.pushes++
		}
	}

	table := domain.NewTierTable(l.classifier.Fallback())

	categories := make([]string, 0, len(tallies))
	for cat := range tallies {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var transitions []domain.TierTransition
	for _, cat := range categories {
		t := tallies[cat]
		sampleSize := t.wins + t.losses + t.pushes
		winRate := 0.0
		if decided := t.wins + t.losses; decided > 0 {
			winRate = float64(t.wins) / float64(decided)
		}

		params := l.classifier.Params(sampleSize, winRate)
		table.Entries[cat] = params

		before := prev.Lookup(cat).Tier
		if before != params.Tier {
			tr := domain.TierTransition{Category: cat, From: before, To: params.Tier}
			transitions = append(transitions, tr)
			l.logger.Info("tier transition",
				slog.String("category", cat),
				slog.String("from", string(tr.From)),
				slog.String("to", string(tr.To)),
				slog.Bool("upgrade", tr.Upgrade()),
				slog.Int("sample_size", sampleSize),
				slog.Float64("win_rate", winRate),
			)
		}
	}

	return table, transitions
}
