package tiers

import "github.com/stakesim/stakesim/internal/domain"

// Built-in profile names.
const (
	ProfileProduction = "production"
	ProfileBootstrap  = "bootstrap"
)

// ProductionProfile returns the strict thresholds used once categories have
// accumulated real history.
func ProductionProfile() Profile {
	return Profile{
		Name:   ProfileProduction,
		High:   Threshold{MinBets: 30, MinWinRate: 0.70},
		Medium: Threshold{MinBets: 20, MinWinRate: 0.60},
		Low:    Threshold{MinBets: 20, MinWinRate: 0.50},
		Risk: map[domain.Tier]TierRisk{
			domain.TierHigh:         {Divisor: 3, MaxExposurePct: 0.05},
			domain.TierMedium:       {Divisor: 5, MaxExposurePct: 0.03},
			domain.TierLow:          {Divisor: 8, MaxExposurePct: 0.02},
			domain.TierInsufficient: {Divisor: 10, MaxExposurePct: 0.01},
		},
	}
}

// BootstrapProfile returns relaxed thresholds for fresh deployments with
// thin samples, so new categories are not permanently stuck at
// INSUFFICIENT.
func BootstrapProfile() Profile {
	return Profile{
		Name:   ProfileBootstrap,
		High:   Threshold{MinBets: 4, MinWinRate: 0.60},
		Medium: Threshold{MinBets: 3, MinWinRate: 0.50},
		Low:    Threshold{MinBets: 2, MinWinRate: 0.40},
		Risk: map[domain.Tier]TierRisk{
			domain.TierHigh:         {Divisor: 3, MaxExposurePct: 0.03},
			domain.TierMedium:       {Divisor: 5, MaxExposurePct: 0.02},
			domain.TierLow:          {Divisor: 8, MaxExposurePct: 0.015},
			domain.TierInsufficient: {Divisor: 10, MaxExposurePct: 0.01},
		},
	}
}

// ProfileByName returns a built-in profile, defaulting to production for
// unknown names.
func ProfileByName(name string) Profile {
	if name == ProfileBootstrap {
		return BootstrapProfile()
	}
	return ProductionProfile()
}
