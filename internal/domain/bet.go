// Package domain defines the core types and store interfaces for the
// wagering simulation engine: bet records, sized bets, the bankroll ledger,
// tier tables, and metrics snapshots.
package domain

import "time"

// Side is the direction of a proposed bet relative to its line.
type Side string

const (
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool {
	return s == SideOver || s == SideUnder
}

// BetRecord is a proposed bet produced by an external signal feed. It is
// immutable once created; the engine never mutates the fields it receives.
type BetRecord struct {
	ID             string    `json:"id"`
	Category       string    `json:"category"` // opaque situational label, e.g. a per-bet grouping
	PredictedValue float64   `json:"predicted_value"`
	Line           float64   `json:"line"`
	Side           Side      `json:"side"`
	DecimalOdds    float64   `json:"decimal_odds"`
	WinProbability float64   `json:"win_probability"` // estimate in [0,1]
	Timestamp      time.Time `json:"timestamp"`
}

// SizingDecision describes what the risk adjuster decided to do with a bet.
type SizingDecision string

const (
	// DecisionStake means a positive stake was committed.
	DecisionStake SizingDecision = "stake"
	// DecisionSkipNoEdge means the raw Kelly fraction was zero or negative.
	DecisionSkipNoEdge SizingDecision = "skip_no_edge"
	// DecisionSkipMinWager means the clamped stake fell below the minimum
	// wager floor.
	DecisionSkipMinWager SizingDecision = "skip_min_wager"
)

// Skipped reports whether the decision resulted in no stake.
func (d SizingDecision) Skipped() bool {
	return d != DecisionStake
}

// SizedBet is a BetRecord after risk adjustment. Produced by the risk
// adjuster and consumed by the ledger.
type SizedBet struct {
	Record BetRecord

	RawKellyFraction float64
	DivisorApplied   float64
	Tier             Tier
	StakeAmount      float64
	StakePctBankroll float64
	Decision         SizingDecision
}

// ResolutionEvent reports the realized value for a previously placed bet.
// Events arrive asynchronously and are matched to pending bets by BetID.
type ResolutionEvent struct {
	BetID         string  `json:"bet_id"`
	RealizedValue float64 `json:"realized_value"`
}
