package domain

import (
	"encoding/json"
	"math"
	"time"
)

// MetricsSnapshot is derived on demand from a ledger snapshot. It is never a
// source of truth; recomputing from the same history yields the same values.
//
// MaxDrawdown is reported as a positive magnitude (0.12 means a 12%
// peak-to-trough decline). SharpeRatio is NaN when fewer than two bets
// resolved or per-bet returns have zero variance.
type MetricsSnapshot struct {
	GeneratedAt time.Time

	StartingBalance float64
	FinalBalance    float64

	TotalBets   int
	Wins        int
	Losses      int
	Pushes      int
	WinRate     float64 // pushes excluded
	TotalStaked float64
	TotalProfit float64
	ROI         float64
	MaxDrawdown float64
	SharpeRatio float64

	ByCategory map[string]GroupMetrics
	ByTier     map[Tier]GroupMetrics
}

// GroupMetrics are the same headline figures computed over a filtered
// subsequence of the ledger (one category or one tier).
type GroupMetrics struct {
	Bets        int
	Wins        int
	Losses      int
	Pushes      int
	WinRate     float64
	TotalStaked float64
	TotalProfit float64
	ROI         float64
	MaxDrawdown float64
	SharpeRatio float64
}

// JSON encodes the NaN Sharpe sentinel as null, since encoding/json rejects
// NaN outright.

type metricsSnapshotJSON struct {
	GeneratedAt     time.Time               `json:"generated_at"`
	StartingBalance float64                 `json:"starting_balance"`
	FinalBalance    float64                 `json:"final_balance"`
	TotalBets       int                     `json:"total_bets"`
	Wins            int                     `json:"wins"`
	Losses          int                     `json:"losses"`
	Pushes          int                     `json:"pushes"`
	WinRate         float64                 `json:"win_rate"`
	TotalStaked     float64                 `json:"total_staked"`
	TotalProfit     float64                 `json:"total_profit"`
	ROI             float64                 `json:"roi"`
	MaxDrawdown     float64                 `json:"max_drawdown"`
	SharpeRatio     *float64                `json:"sharpe_ratio"`
	ByCategory      map[string]GroupMetrics `json:"by_category,omitempty"`
	ByTier          map[Tier]GroupMetrics   `json:"by_tier,omitempty"`
}

type groupMetricsJSON struct {
	Bets        int      `json:"bets"`
	Wins        int      `json:"wins"`
	Losses      int      `json:"losses"`
	Pushes      int      `json:"pushes"`
	WinRate     float64  `json:"win_rate"`
	TotalStaked float64  `json:"total_staked"`
	TotalProfit float64  `json:"total_profit"`
	ROI         float64  `json:"roi"`
	MaxDrawdown float64  `json:"max_drawdown"`
	SharpeRatio *float64 `json:"sharpe_ratio"`
}

func sharpeToJSON(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func sharpeFromJSON(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// MarshalJSON implements json.Marshaler.
func (m MetricsSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsSnapshotJSON{
		GeneratedAt:     m.GeneratedAt,
		StartingBalance: m.StartingBalance,
		FinalBalance:    m.FinalBalance,
		TotalBets:       m.TotalBets,
		Wins:            m.Wins,
		Losses:          m.Losses,
		Pushes:          m.Pushes,
		WinRate:         m.WinRate,
		TotalStaked:     m.TotalStaked,
		TotalProfit:     m.TotalProfit,
		ROI:             m.ROI,
		MaxDrawdown:     m.MaxDrawdown,
		SharpeRatio:     sharpeToJSON(m.SharpeRatio),
		ByCategory:      m.ByCategory,
		ByTier:          m.ByTier,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *MetricsSnapshot) UnmarshalJSON(data []byte) error {
	var raw metricsSnapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MetricsSnapshot{
		GeneratedAt:     raw.GeneratedAt,
		StartingBalance: raw.StartingBalance,
		FinalBalance:    raw.FinalBalance,
		TotalBets:       raw.TotalBets,
		Wins:            raw.Wins,
		Losses:          raw.Losses,
		Pushes:          raw.Pushes,
		WinRate:         raw.WinRate,
		TotalStaked:     raw.TotalStaked,
		TotalProfit:     raw.TotalProfit,
		ROI:             raw.ROI,
		MaxDrawdown:     raw.MaxDrawdown,
		SharpeRatio:     sharpeFromJSON(raw.SharpeRatio),
		ByCategory:      raw.ByCategory,
		ByTier:          raw.ByTier,
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (g GroupMetrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(groupMetricsJSON{
		Bets:        g.Bets,
		Wins:        g.Wins,
		Losses:      g.Losses,
		Pushes:      g.Pushes,
		WinRate:     g.WinRate,
		TotalStaked: g.TotalStaked,
		TotalProfit: g.TotalProfit,
		ROI:         g.ROI,
		MaxDrawdown: g.MaxDrawdown,
		SharpeRatio: sharpeToJSON(g.SharpeRatio),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *GroupMetrics) UnmarshalJSON(data []byte) error {
	var raw groupMetricsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = GroupMetrics{
		Bets:        raw.Bets,
		Wins:        raw.Wins,
		Losses:      raw.Losses,
		Pushes:      raw.Pushes,
		WinRate:     raw.WinRate,
		TotalStaked: raw.TotalStaked,
		TotalProfit: raw.TotalProfit,
		ROI:         raw.ROI,
		MaxDrawdown: raw.MaxDrawdown,
		SharpeRatio: sharpeFromJSON(raw.SharpeRatio),
	}
	return nil
}

// RunSummary describes one completed simulation run for archival.
type RunSummary struct {
	RunID      string          `json:"run_id"`
	Profile    string          `json:"profile"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Metrics    MetricsSnapshot `json:"metrics"`
}
