// Package tiers implements the confidence tier classifier that maps a
// category's accumulated (sample size, win rate) to a discrete tier and the
// risk parameters attached to it.
package tiers

import (
	"fmt"

	"github.com/stakesim/stakesim/internal/domain"
)

// Threshold is the entry requirement for one tier. Win rates are 0-1
// fractions; values loaded from external sources must be converted at the
// boundary, never guessed here.
type Threshold struct {
	MinBets    int
	MinWinRate float64
}

// TierRisk is the staking behavior attached to one tier.
type TierRisk struct {
	Divisor        float64
	MaxExposurePct float64
}

// Profile bundles the thresholds and per-tier risk parameters for one
// operating mode. Strict "production" thresholds require deep samples;
// relaxed "bootstrap" thresholds let fresh categories earn a tier before
// they would otherwise sit at INSUFFICIENT forever.
type Profile struct {
	Name string

	High   Threshold
	Medium Threshold
	Low    Threshold

	Risk map[domain.Tier]TierRisk
}

// Validate checks that the profile is internally consistent: every tier has
// risk parameters, divisors are positive, exposure caps are in (0, 1], and
// win-rate thresholds are 0-1 fractions.
func (p Profile) Validate() error {
	for _, tier := range []domain.Tier{domain.TierHigh, domain.TierMedium, domain.TierLow, domain.TierInsufficient} {
		r, ok := p.Risk[tier]
		if !ok {
			return fmt.Errorf("tiers: profile %q missing risk params for %s", p.Name, tier)
		}
		if r.Divisor < 1 {
			return fmt.Errorf("tiers: profile %q tier %s divisor %.2f must be >= 1", p.Name, tier, r.Divisor)
		}
		if r.MaxExposurePct <= 0 || r.MaxExposurePct > 1 {
			return fmt.Errorf("tiers: profile %q tier %s max exposure %.4f must be in (0,1]", p.Name, tier, r.MaxExposurePct)
		}
	}
	for _, th := range []Threshold{p.High, p.Medium, p.Low} {
		if th.MinWinRate < 0 || th.MinWinRate > 1 {
			return fmt.Errorf("tiers: profile %q win-rate threshold %.4f must be a 0-1 fraction", p.Name, th.MinWinRate)
		}
	}
	return nil
}

// Classifier assigns tiers from accumulated category performance.
type Classifier struct {
	profile Profile
}

// NewClassifier creates a Classifier for the given profile.
func NewClassifier(profile Profile) (*Classifier, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{profile: profile}, nil
}

// Profile returns the profile the classifier was built with.
func (c *Classifier) Profile() Profile { return c.profile }

// Classify returns the highest tier whose requirements the category meets.
// HIGH and MEDIUM require both the sample-size and win-rate thresholds to
// pass at once; crossing only one leaves the tier unchanged. LOW requires
// only the minimum sample size. Everything else is INSUFFICIENT.
func (c *Classifier) Classify(sampleSize int, winRate float64) domain.Tier {
	switch {
	case sampleSize >= c.profile.High.MinBets && winRate >= c.profile.High.MinWinRate:
		return domain.TierHigh
	case sampleSize >= c.profile.Medium.MinBets && winRate >= c.profile.Medium.MinWinRate:
		return domain.TierMedium
	case sampleSize >= c.profile.Low.MinBets:
		return domain.TierLow
	default:
		return domain.TierInsufficient
	}
}

// Params builds the full tier parameters for a category given its
// accumulated sample.
func (c *Classifier) Params(sampleSize int, winRate float64) domain.TierParams {
	tier := c.Classify(sampleSize, winRate)
	risk := c.profile.Risk[tier]
	return domain.TierParams{
		Tier:           tier,
		Divisor:        risk.Divisor,
		MaxExposurePct: risk.MaxExposurePct,
		WinRate:        winRate,
		SampleSize:     sampleSize,
	}
}

// Fallback returns the most conservative parameters, used as the tier
// table's default entry. The system shrinks stakes for unknown categories;
// it never refuses to size a bet outright.
func (c *Classifier) Fallback() domain.TierParams {
	risk := c.profile.Risk[domain.TierInsufficient]
	return domain.TierParams{
		Tier:           domain.TierInsufficient,
		Divisor:        risk.Divisor,
		MaxExposurePct: risk.MaxExposurePct,
	}
}
