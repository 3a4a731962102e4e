package domain

// Tier is a discrete confidence bucket controlling staking aggressiveness.
type Tier string

const (
	TierHigh         Tier = "HIGH"
	TierMedium       Tier = "MEDIUM"
	TierLow          Tier = "LOW"
	TierInsufficient Tier = "INSUFFICIENT"
)

// TierParams are the risk parameters attached to one category's tier.
type TierParams struct {
	Tier           Tier    `json:"tier"`
	Divisor        float64 `json:"divisor"`
	MaxExposurePct float64 `json:"max_exposure_pct"`
	WinRate        float64 `json:"win_rate"` // 0-1 fraction
	SampleSize     int     `json:"sample_size"`
}

// TierTable maps categories to their current risk parameters. It always
// carries a default entry used for categories it has never seen; an unknown
// category is never an error. The table is replaced wholesale by the
// feedback loop and read by the risk adjuster, so a table value is treated
// as immutable once constructed.
type TierTable struct {
	Entries map[string]TierParams `json:"entries"`
	Default TierParams            `json:"default"`
}

// NewTierTable creates a table with the given fallback entry and no
// category-specific entries.
func NewTierTable(fallback TierParams) TierTable {
	return TierTable{
		Entries: make(map[string]TierParams),
		Default: fallback,
	}
}

// Lookup returns the parameters for a category, falling back to the default
// entry when the category is absent. This is the single fallback point for
// per-category risk parameters.
func (t TierTable) Lookup(category string) TierParams {
	if p, ok := t.Entries[category]; ok {
		return p
	}
	return t.Default
}

// TierTransition records a category moving between tiers during a feedback
// recompute, for observability.
type TierTransition struct {
	Category string
	From     Tier
	To       Tier
}

// Upgrade reports whether the transition moved to a more aggressive tier.
func (t TierTransition) Upgrade() bool {
	return tierRank(t.To) > tierRank(t.From)
}

func tierRank(t Tier) int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}
