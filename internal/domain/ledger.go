package domain

import "time"

// Outcome is the settled result of a resolved bet.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomePush Outcome = "PUSH"
)

// LedgerEntry records one resolved bet. Entries are append-only: they are
// created exactly once when a bet resolves and never mutated afterwards.
// Corrections require a new compensating entry.
type LedgerEntry struct {
	BetID          string
	Timestamp      time.Time
	Stake          float64
	DecimalOdds    float64
	Outcome        Outcome
	ProfitAndLoss  float64
	Category       string
	Tier           Tier
	RunningBalance float64
}

// BankrollSnapshot is a point-in-time copy of the ledger state, safe to read
// while resolutions continue to arrive. History is ordered by resolution
// time and shares no storage with the live ledger.
type BankrollSnapshot struct {
	StartingBalance float64
	CurrentBalance  float64
	History         []LedgerEntry
}

// Resolved returns the number of entries in the snapshot.
func (s BankrollSnapshot) Resolved() int {
	return len(s.History)
}
