package tiers

import (
	"testing"

	"github.com/stakesim/stakesim/internal/domain"
)

func mustClassifier(t *testing.T, p Profile) *Classifier {
	t.Helper()
	c, err := NewClassifier(p)
	if err != nil {
		t.Fatalf("NewClassifier(%s): %v", p.Name, err)
	}
	return c
}

func TestClassifyProduction(t *testing.T) {
	c := mustClassifier(t, ProductionProfile())

	tests := []struct {
		name       string
		sampleSize int
		winRate    float64
		want       domain.Tier
	}{
		{"deep sample strong rate", 35, 0.72, domain.TierHigh},
		{"deep sample moderate rate", 35, 0.65, domain.TierMedium},
		{"deep sample weak rate", 25, 0.45, domain.TierLow},
		{"thin sample strong rate", 10, 0.90, domain.TierInsufficient},
		{"exactly at high bar", 30, 0.70, domain.TierHigh},
		// Crossing only one of HIGH's two thresholds never promotes to
		// HIGH; the sample lands wherever both bars are met.
		{"high rate bar only", 29, 0.75, domain.TierMedium},
		{"high sample bar only", 30, 0.59, domain.TierLow},
		{"empty", 0, 0, domain.TierInsufficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.sampleSize, tt.winRate); got != tt.want {
				t.Fatalf("Classify(%d, %v) = %s, want %s", tt.sampleSize, tt.winRate, got, tt.want)
			}
		})
	}
}

func TestClassifyBootstrapSampleGate(t *testing.T) {
	c := mustClassifier(t, BootstrapProfile())

	// 3 resolved bets at 2 wins: the 0.667 win rate alone would clear the
	// HIGH bar, but the 4-bet sample requirement does not, so MEDIUM is the
	// best the category can do.
	got := c.Classify(3, 2.0/3.0)
	if got != domain.TierMedium {
		t.Fatalf("Classify(3, 0.667) = %s, want MEDIUM", got)
	}

	// One more resolved bet at the same rate crosses both bars.
	if got := c.Classify(4, 2.0/3.0); got != domain.TierHigh {
		t.Fatalf("Classify(4, 0.667) = %s, want HIGH", got)
	}
}

func TestParamsCarriesSample(t *testing.T) {
	c := mustClassifier(t, ProductionProfile())
	p := c.Params(35, 0.72)
	if p.Tier != domain.TierHigh {
		t.Fatalf("tier = %s, want HIGH", p.Tier)
	}
	if p.Divisor != 3 || p.MaxExposurePct != 0.05 {
		t.Fatalf("risk params = %+v, want divisor 3, exposure 0.05", p)
	}
	if p.SampleSize != 35 || p.WinRate != 0.72 {
		t.Fatalf("sample fields not carried: %+v", p)
	}
}

func TestFallbackIsMostConservative(t *testing.T) {
	c := mustClassifier(t, ProductionProfile())
	fb := c.Fallback()
	if fb.Tier != domain.TierInsufficient {
		t.Fatalf("fallback tier = %s, want INSUFFICIENT", fb.Tier)
	}
	for tier, risk := range c.Profile().Risk {
		if risk.Divisor > fb.Divisor {
			t.Fatalf("tier %s divisor %v exceeds fallback %v", tier, risk.Divisor, fb.Divisor)
		}
		if risk.MaxExposurePct < fb.MaxExposurePct {
			t.Fatalf("tier %s exposure %v below fallback %v", tier, risk.MaxExposurePct, fb.MaxExposurePct)
		}
	}
}

func TestProfileValidate(t *testing.T) {
	p := ProductionProfile()
	p.High.MinWinRate = 70 // percentage instead of fraction
	if _, err := NewClassifier(p); err == nil {
		t.Fatal("expected validation error for percentage win rate")
	}

	p = ProductionProfile()
	delete(p.Risk, domain.TierLow)
	if _, err := NewClassifier(p); err == nil {
		t.Fatal("expected validation error for missing tier risk")
	}

	p = ProductionProfile()
	p.Risk[domain.TierHigh] = TierRisk{Divisor: 0.5, MaxExposurePct: 0.05}
	if _, err := NewClassifier(p); err == nil {
		t.Fatal("expected validation error for divisor below 1")
	}
}
