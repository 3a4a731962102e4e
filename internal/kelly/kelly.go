// Package kelly implements the Kelly-criterion stake fraction calculation.
package kelly

import "github.com/stakesim/stakesim/internal/domain"

// Fraction computes the raw Kelly fraction for a bet with the given win
// probability and decimal odds:
//
//	f* = (p*b - q) / b,  b = decimalOdds - 1,  q = 1 - p
//
// The result is signed: a negative fraction means the bet has no edge and
// should be skipped (the engine never shorts). It is the caller's job to
// clamp negatives to a zero stake.
//
// It returns InvalidOddsError when decimalOdds <= 1 and
// InvalidProbabilityError when winProbability is outside [0, 1].
func Fraction(winProbability, decimalOdds float64) (float64, error) {
	if decimalOdds <= 1 {
		return 0, &domain.InvalidOddsError{DecimalOdds: decimalOdds}
	}
	if winProbability < 0 || winProbability > 1 {
		return 0, &domain.InvalidProbabilityError{Probability: winProbability}
	}

	b := decimalOdds - 1
	q := 1 - winProbability
	return (winProbability*b - q) / b, nil
}

// FractionForRecord computes the raw Kelly fraction for a bet record,
// attaching the record's identifying fields to any validation error.
func FractionForRecord(rec domain.BetRecord) (float64, error) {
	f, err := Fraction(rec.WinProbability, rec.DecimalOdds)
	if err != nil {
		switch e := err.(type) {
		case *domain.InvalidOddsError:
			e.BetID = rec.ID
			e.Category = rec.Category
		case *domain.InvalidProbabilityError:
			e.BetID = rec.ID
			e.Category = rec.Category
		}
		return 0, err
	}
	return f, nil
}
