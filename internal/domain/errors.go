package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidOdds and ErrInvalidProbability mark malformed bet records.
	// A malformed record is rejected on its own; it never halts the stream.
	ErrInvalidOdds        = errors.New("invalid odds")
	ErrInvalidProbability = errors.New("invalid probability")

	// ErrDuplicateResolution and ErrOrphanResolution mark resolution events
	// that are logged and dropped.
	ErrDuplicateResolution = errors.New("duplicate resolution")
	ErrOrphanResolution    = errors.New("orphan resolution")

	// ErrSkippedBet rejects placement of a bet the sizer decided to skip.
	ErrSkippedBet = errors.New("bet skipped at sizing")
	// ErrDuplicateBet rejects placement of a bet id already known to the
	// ledger.
	ErrDuplicateBet = errors.New("duplicate bet id")

	// ErrLedgerCorrupt indicates a balance-conservation violation. This is
	// a core bug, not bad input, and halts the run.
	ErrLedgerCorrupt = errors.New("ledger corrupt")
)

// InvalidOddsError reports a bet record whose decimal odds cannot price a
// bet (decimal odds must exceed 1).
type InvalidOddsError struct {
	BetID       string
	Category    string
	DecimalOdds float64
}

func (e *InvalidOddsError) Error() string {
	return fmt.Sprintf("invalid odds %.4f for bet %s (category %s): decimal odds must be > 1",
		e.DecimalOdds, e.BetID, e.Category)
}

func (e *InvalidOddsError) Unwrap() error { return ErrInvalidOdds }

// InvalidProbabilityError reports a bet record whose win-probability
// estimate falls outside [0, 1].
type InvalidProbabilityError struct {
	BetID       string
	Category    string
	Probability float64
}

func (e *InvalidProbabilityError) Error() string {
	return fmt.Sprintf("invalid win probability %.4f for bet %s (category %s): must be in [0,1]",
		e.Probability, e.BetID, e.Category)
}

func (e *InvalidProbabilityError) Unwrap() error { return ErrInvalidProbability }

// DuplicateResolutionError reports a resolution for a bet that already
// resolved. The original entry stands; replays are dropped.
type DuplicateResolutionError struct {
	BetID string
}

func (e *DuplicateResolutionError) Error() string {
	return fmt.Sprintf("bet %s already resolved", e.BetID)
}

func (e *DuplicateResolutionError) Unwrap() error { return ErrDuplicateResolution }

// OrphanResolutionError reports a resolution that matches no pending bet.
type OrphanResolutionError struct {
	BetID string
}

func (e *OrphanResolutionError) Error() string {
	return fmt.Sprintf("no pending bet for resolution %s", e.BetID)
}

func (e *OrphanResolutionError) Unwrap() error { return ErrOrphanResolution }

// LedgerCorruptError reports the balances involved in a conservation
// violation.
type LedgerCorruptError struct {
	Expected float64
	Actual   float64
}

func (e *LedgerCorruptError) Error() string {
	return fmt.Sprintf("ledger corrupt: balance %.4f does not match starting balance plus profit %.4f",
		e.Actual, e.Expected)
}

func (e *LedgerCorruptError) Unwrap() error { return ErrLedgerCorrupt }
