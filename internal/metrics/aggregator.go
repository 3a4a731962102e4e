// Package metrics derives backtest performance statistics from an immutable
// ledger snapshot. All functions here are pure: identical histories yield
// identical snapshots.
package metrics

import (
	"math"
	"time"

	"github.com/stakesim/stakesim/internal/domain"
)

// DefaultAnnualization is the factor applied inside the Sharpe ratio
// (sqrt(252), the trading-day convention).
const DefaultAnnualization = 252

// Aggregator computes metrics snapshots from ledger history.
type Aggregator struct {
	annualization float64
}

// NewAggregator creates an Aggregator. A non-positive annualization factor
// falls back to the default.
func NewAggregator(annualization float64) *Aggregator {
	if annualization <= 0 {
		annualization = DefaultAnnualization
	}
	return &Aggregator{annualization: annualization}
}

// Compute derives the full metrics snapshot, including per-category and
// per-tier breakdowns, from the given bankroll snapshot.
func (a *Aggregator) Compute(snap domain.BankrollSnapshot) domain.MetricsSnapshot {
	headline := a.group(snap.History, snap.StartingBalance)

	out := domain.MetricsSnapshot{
		GeneratedAt:     time.Now().UTC(),
		StartingBalance: snap.StartingBalance,
		FinalBalance:    snap.CurrentBalance,
		TotalBets:       headline.Bets,
		Wins:            headline.Wins,
		Losses:          headline.Losses,
		Pushes:          headline.Pushes,
		WinRate:         headline.WinRate,
		TotalStaked:     headline.TotalStaked,
		TotalProfit:     headline.TotalProfit,
		ROI:             headline.ROI,
		MaxDrawdown:     headline.MaxDrawdown,
		SharpeRatio:     headline.SharpeRatio,
		ByCategory:      make(map[string]domain.GroupMetrics),
		ByTier:          make(map[domain.Tier]domain.GroupMetrics),
	}

	byCategory := make(map[string][]domain.LedgerEntry)
	byTier := make(map[domain.Tier][]domain.LedgerEntry)
	for _, e := range snap.History {
		byCategory[e.Category] = append(byCategory[e.Category], e)
		byTier[e.Tier] = append(byTier[e.Tier], e)
	}
	for cat, entries := range byCategory {
		out.ByCategory[cat] = a.group(entries, snap.StartingBalance)
	}
	for tier, entries := range byTier {
		out.ByTier[tier] = a.group(entries, snap.StartingBalance)
	}

	return out
}

// group applies the four headline formulas to one (possibly filtered)
// subsequence of the ledger.
func (a *Aggregator) group(entries []domain.LedgerEntry, startingBalance float64) domain.GroupMetrics {
	g := domain.GroupMetrics{Bets: len(entries)}

	for _, e := range entries {
		switch e.Outcome {
		case domain.OutcomeWin:
			g.Wins++
		case domain.OutcomeLoss:
			g.Losses++
		case domain.OutcomePush:
			g.Pushes++
		}
		g.TotalStaked += e.Stake
		g.TotalProfit += e.ProfitAndLoss
	}

	g.WinRate = WinRate(g.Wins, g.Losses)
	g.ROI = ROI(g.TotalProfit, g.TotalStaked)
	g.MaxDrawdown = MaxDrawdown(balanceCurve(entries, startingBalance))
	g.SharpeRatio = Sharpe(perBetReturns(entries), a.annualization)
	return g
}

// WinRate is wins / (wins + losses); pushes are excluded from the
// denominator. Zero resolved decisions yield 0.
func WinRate(wins, losses int) float64 {
	decided := wins + losses
	if decided == 0 {
		return 0
	}
	return float64(wins) / float64(decided)
}

// ROI is total profit over total staked. Zero turnover yields 0.
func ROI(totalProfit, totalStaked float64) float64 {
	if totalStaked == 0 {
		return 0
	}
	return totalProfit / totalStaked
}

// MaxDrawdown computes the largest peak-to-trough decline over the balance
// curve, reported as a positive magnitude (0.12 = a 12% decline).
func MaxDrawdown(balances []float64) float64 {
	if len(balances) == 0 {
		return 0
	}

	runningMax := balances[0]
	worst := 0.0
	for _, b := range balances {
		if b > runningMax {
			runningMax = b
		}
		if runningMax > 0 {
			if dd := (runningMax - b) / runningMax; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Sharpe computes mean(returns) / stdev(returns) * sqrt(annualization) over
// the per-bet returns. With fewer than two returns, or zero standard
// deviation, the ratio is undefined and NaN is returned as the sentinel;
// callers treat it as a warning, never an error.
func Sharpe(returns []float64, annualization float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(returns)-1))
	if stdev == 0 {
		return math.NaN()
	}

	return mean / stdev * math.Sqrt(annualization)
}

// balanceCurve rebuilds the bankroll trajectory for a subsequence. For the
// full history this matches the recorded running balances; for a filtered
// subsequence it replays only that group's profit against the starting
// balance, so a group's drawdown reflects its own contribution.
func balanceCurve(entries []domain.LedgerEntry, startingBalance float64) []float64 {
	curve := make([]float64, 0, len(entries)+1)
	curve = append(curve, startingBalance)
	balance := startingBalance
	for _, e := range entries {
		balance += e.ProfitAndLoss
		curve = append(curve, balance)
	}
	return curve
}

// perBetReturns maps each entry to profit relative to its stake. Pushes
// contribute a zero return; zero-stake entries are guarded although the
// ledger never records them.
func perBetReturns(entries []domain.LedgerEntry) []float64 {
	returns := make([]float64, 0, len(entries))
	for _, e := range entries {
		if e.Stake == 0 {
			continue
		}
		returns = append(returns, e.ProfitAndLoss/e.Stake)
	}
	return returns
}
