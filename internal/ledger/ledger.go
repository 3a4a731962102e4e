// Package ledger implements the bankroll ledger: a single-writer state
// machine that commits stakes, applies resolution events, and records an
// append-only history of resolved bets.
package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/stakesim/stakesim/internal/domain"
)

// pendingBet is a committed stake awaiting its resolution event.
type pendingBet struct {
	sized    domain.SizedBet
	placedAt time.Time
}

// Ledger owns the bankroll. All mutation goes through Resolve under the
// mutex, so concurrent resolution events serialize at this single ownership
// point and the running balance cannot corrupt.
type Ledger struct {
	logger *slog.Logger

	mu              sync.Mutex
	startingBalance float64
	currentBalance  float64
	pending         map[string]pendingBet
	resolved        map[string]struct{}
	history         []domain.LedgerEntry
}

// New creates a Ledger with the given starting balance.
func New(startingBalance float64, logger *slog.Logger) *Ledger {
	return &Ledger{
		logger:          logger.With(slog.String("component", "ledger")),
		startingBalance: startingBalance,
		currentBalance:  startingBalance,
		pending:         make(map[string]pendingBet),
		resolved:        make(map[string]struct{}),
	}
}

// Place commits a sized bet as PENDING. Skipped bets are rejected here;
// they never enter the ledger, so they can never produce a zero-stake
// entry. Placing does not move the balance: profit and loss apply only at
// resolution.
func (l *Ledger) Place(sized domain.SizedBet) error {
	if sized.Decision.Skipped() {
		return fmt.Errorf("ledger: place %s: %w", sized.Record.ID, domain.ErrSkippedBet)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.pending[sized.Record.ID]; ok {
		return fmt.Errorf("ledger: place %s: %w", sized.Record.ID, domain.ErrDuplicateBet)
	}
	if _, ok := l.resolved[sized.Record.ID]; ok {
		return fmt.Errorf("ledger: place %s: %w", sized.Record.ID, domain.ErrDuplicateBet)
	}

	l.pending[sized.Record.ID] = pendingBet{sized: sized, placedAt: time.Now()}
	return nil
}

// Resolve applies a resolution event to its pending bet: it settles the
// outcome against the line, appends exactly one immutable ledger entry, and
// moves the balance by the realized profit. This is the only mutation path
// for the balance.
//
// A bet id that already resolved returns DuplicateResolutionError and the
// original entry stands; an unknown id returns OrphanResolutionError. Both
// are drop-and-log conditions for callers, not run-fatal. A balance
// conservation violation returns LedgerCorruptError, which is fatal.
func (l *Ledger) Resolve(ev domain.ResolutionEvent) (domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.resolved[ev.BetID]; ok {
		return domain.LedgerEntry{}, &domain.DuplicateResolutionError{BetID: ev.BetID}
	}
	p, ok := l.pending[ev.BetID]
	if !ok {
		return domain.LedgerEntry{}, &domain.OrphanResolutionError{BetID: ev.BetID}
	}

	rec := p.sized.Record
	outcome := settle(rec.Side, ev.RealizedValue, rec.Line)

	var profit float64
	switch outcome {
	case domain.OutcomeWin:
		profit = p.sized.StakeAmount * (rec.DecimalOdds - 1)
	case domain.OutcomeLoss:
		profit = -p.sized.StakeAmount
	case domain.OutcomePush:
		profit = 0
	}

	l.currentBalance += profit
	delete(l.pending, ev.BetID)
	l.resolved[ev.BetID] = struct{}{}

	entry := domain.LedgerEntry{
		BetID:          rec.ID,
		Timestamp:      rec.Timestamp,
		Stake:          p.sized.StakeAmount,
		DecimalOdds:    rec.DecimalOdds,
		Outcome:        outcome,
		ProfitAndLoss:  profit,
		Category:       rec.Category,
		Tier:           p.sized.Tier,
		RunningBalance: l.currentBalance,
	}
	l.history = append(l.history, entry)

	if err := l.checkInvariantLocked(); err != nil {
		return entry, err
	}
	return entry, nil
}

// settle decides the outcome of a resolved bet against its line. Landing
// exactly on the line is a push for either side.
func settle(side domain.Side, realized, line float64) domain.Outcome {
	switch {
	case realized == line:
		return domain.OutcomePush
	case side == domain.SideOver && realized > line:
		return domain.OutcomeWin
	case side == domain.SideUnder && realized < line:
		return domain.OutcomeWin
	default:
		return domain.OutcomeLoss
	}
}

// checkInvariantLocked verifies current == starting + sum(profit), with the
// profit side recomputed from the appended history so the balance
// accumulator is checked against an independent source. A violation means a
// core bug, so it surfaces as LedgerCorruptError.
func (l *Ledger) checkInvariantLocked() error {
	var profitSum float64
	for _, e := range l.history {
		profitSum += e.ProfitAndLoss
	}
	expected := l.startingBalance + profitSum
	if math.Abs(l.currentBalance-expected) > 1e-6 {
		l.logger.Error("balance conservation violated",
			slog.Float64("expected", expected),
			slog.Float64("actual", l.currentBalance),
		)
		return &domain.LedgerCorruptError{Expected: expected, Actual: l.currentBalance}
	}
	return nil
}

// Balance returns the current bankroll balance.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentBalance
}

// PendingCount returns the number of bets awaiting resolution. Pending
// bets are excluded from history and therefore from all derived metrics.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Snapshot returns a point-in-time copy of the ledger state. The returned
// history is a fresh slice, safe to hand to the metrics aggregator or the
// feedback loop while resolutions keep arriving.
func (l *Ledger) Snapshot() domain.BankrollSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := make([]domain.LedgerEntry, len(l.history))
	copy(history, l.history)

	return domain.BankrollSnapshot{
		StartingBalance: l.startingBalance,
		CurrentBalance:  l.currentBalance,
		History:         history,
	}
}
