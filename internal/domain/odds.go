package domain

// odds.go: odds-to-probability math for the scoring pipeline.
//
// Everything here is a pure function of the quote. Malformed upstream data
// (zero or NaN odds, empty books) degrades to the neutral default instead of
// returning an error: this path sits in front of real money and must never
// take the pipeline down over a bad feed row. The Basis field keeps
// "computed neutral" distinguishable from "fell back to the default".

import "math"

// ProbBasis says how a Probability was produced.
type ProbBasis int

const (
	// BasisComputed means the numbers came from valid market prices.
	BasisComputed ProbBasis = iota
	// BasisDefault means the quote was malformed and the neutral fallback
	// was used. Confidence is always 0 in this case.
	BasisDefault
)

// Probability is the Odds Engine output for one quote.
type Probability struct {
	Pick       Side
	Implied    float64 // picked side's implied probability, vig included
	Fair       float64 // picked side's probability after de-vig
	Adjusted   float64 // fair probability after the point-spread adjustment
	Edge       float64 // adjusted minus implied
	Confidence float64 // 0-100
	Basis      ProbBasis
}

// Neutral is the fallback result for a quote that could not be scored.
func Neutral() Probability {
	return Probability{
		Pick:     SideYes,
		Implied:  0.5,
		Fair:     0.5,
		Adjusted: 0.5,
		Basis:    BasisDefault,
	}
}

// ImpliedFromMoneyline converts American odds to an implied probability.
// Returns 0.5 and false for a zero or non-finite input.
func ImpliedFromMoneyline(odds float64) (float64, bool) {
	if odds == 0 || math.IsNaN(odds) || math.IsInf(odds, 0) {
		return 0.5, false
	}
	if odds > 0 {
		return 100 / (odds + 100), true
	}
	return math.Abs(odds) / (math.Abs(odds) + 100), true
}

// ScoreQuote converts a two-sided quote into a fair probability, a pick, and
// a confidence score. probPerPoint is the linear spread-to-probability
// adjustment (empirically ~0.03 per point; configurable, not assumed
// calibrated outside the domain it was observed in).
func ScoreQuote(q MarketQuote, probPerPoint float64) Probability {
	pYes, pNo, ok := impliedPair(q)
	if !ok {
		return Neutral()
	}

	sum := pYes + pNo
	if sum <= 0 {
		return Neutral()
	}

	// Remove the venue margin: normalize the pair to sum to 1.
	fairYes := pYes / sum
	fairNo := pNo / sum

	pick := SideYes
	fair := fairYes
	implied := pYes
	if fairNo > fairYes {
		pick = SideNo
		fair = fairNo
		implied = pNo
	}

	// The line is quoted in the yes frame: negative means the yes side is
	// laying points. Mirror it before adjusting a no pick, so a yes-favoring
	// line always weakens the no side.
	line := q.CurrentLine
	if pick == SideNo {
		line = -line
	}
	adjusted := clamp01(fair - line*probPerPoint)

	return Probability{
		Pick:       pick,
		Implied:    implied,
		Fair:       fair,
		Adjusted:   adjusted,
		Edge:       adjusted - implied,
		Confidence: math.Min(100, 200*math.Abs(adjusted-0.5)),
		Basis:      BasisComputed,
	}
}

// impliedPair extracts the two implied probabilities from whichever price
// shape the quote carries.
func impliedPair(q MarketQuote) (pYes, pNo float64, ok bool) {
	if q.HasMoneyline() {
		var okYes, okNo bool
		pYes, okYes = ImpliedFromMoneyline(q.MoneylineYes)
		pNo, okNo = ImpliedFromMoneyline(q.MoneylineNo)
		return pYes, pNo, okYes && okNo
	}
	if q.HasBook() {
		if q.YesAsk > 100 || q.NoAsk > 100 {
			return 0.5, 0.5, false
		}
		return float64(q.YesAsk) / 100, float64(q.NoAsk) / 100, true
	}
	return 0.5, 0.5, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
