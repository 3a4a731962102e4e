// Package risk implements the risk adjuster that converts a raw Kelly
// fraction into a concrete stake, bounded by tier divisors, exposure caps,
// and the global minimum-wager floor.
package risk

import (
	"log/slog"
	"sync"

	"github.com/stakesim/stakesim/internal/domain"
)

// SizerConfig holds the tunable parameters for stake sizing.
type SizerConfig struct {
	// MinWager is the global floor below which a bet is skipped rather than
	// placed with a token stake.
	MinWager float64

	// SituationalModifier is an optional multiplicative adjustment applied
	// to the divided Kelly fraction before clamping. Zero means disabled
	// (treated as 1). It never turns a no-edge skip into a stake.
	SituationalModifier float64
}

// Sizer sizes bets against the current tier table. The tier table is
// swapped atomically by the feedback loop between checkpoints, so reads and
// swaps are guarded.
type Sizer struct {
	cfg    SizerConfig
	logger *slog.Logger

	mu    sync.RWMutex
	table domain.TierTable
}

// NewSizer creates a Sizer with the given initial tier table.
func NewSizer(cfg SizerConfig, table domain.TierTable, logger *slog.Logger) *Sizer {
	return &Sizer{
		cfg:    cfg,
		table:  table,
		logger: logger.With(slog.String("component", "risk_sizer")),
	}
}

// Table returns the tier table currently in effect.
func (s *Sizer) Table() domain.TierTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// SwapTable installs a new tier table for all subsequent sizing decisions.
func (s *Sizer) SwapTable(table domain.TierTable) {
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()
}

// SizeBet converts a raw Kelly fraction into a SizedBet against the current
// bankroll balance:
//
//	lookup tier (default fallback for unknown categories)
//	-> divide the fraction by the tier divisor
//	-> apply the situational modifier, if configured
//	-> multiply by the current balance
//	-> clamp to balance * max_exposure_pct
//	-> skip entirely below the minimum-wager floor
//
// A zero or negative raw fraction always skips, regardless of the modifier.
func (s *Sizer) SizeBet(rec domain.BetRecord, rawKelly, currentBalance float64) domain.SizedBet {
	params := s.Table().Lookup(rec.Category)

	sized := domain.SizedBet{
		Record:           rec,
		RawKellyFraction: rawKelly,
		DivisorApplied:   params.Divisor,
		Tier:             params.Tier,
	}

	if rawKelly <= 0 {
		sized.Decision = domain.DecisionSkipNoEdge
		return sized
	}

	fraction := rawKelly / params.Divisor
	if s.cfg.SituationalModifier > 0 {
		fraction *= s.cfg.SituationalModifier
	}

	stake := fraction * currentBalance
	if maxStake := currentBalance * params.MaxExposurePct; stake > maxStake {
		stake = maxStake
	}

	if stake < s.cfg.MinWager {
		s.logger.Debug("stake below minimum wager, skipping",
			slog.String("bet_id", rec.ID),
			slog.String("category", rec.Category),
			slog.Float64("stake", stake),
			slog.Float64("min_wager", s.cfg.MinWager),
		)
		sized.Decision = domain.DecisionSkipMinWager
		return sized
	}

	sized.Decision = domain.DecisionStake
	sized.StakeAmount = stake
	if currentBalance > 0 {
		sized.StakePctBankroll = stake / currentBalance
	}
	return sized
}
