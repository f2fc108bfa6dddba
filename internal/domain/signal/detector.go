// Package signal holds the stateless market analyzers that adjust the Odds
// Engine's raw score. Each detector is a pure function of one snapshot: if a
// comparison over time is wanted, the caller supplies both the opening and
// the current value in a single call.
package signal

import "github.com/prognohq/alphabot/internal/domain"

// Contribution is what one detector adds to a decision: a multiplier applied
// to the base confidence and a human-readable rationale. A no-op detector
// returns Multiplier 1 and an empty rationale.
type Contribution struct {
	Multiplier float64
	Rationale  string
}

// Detector contributes a confidence adjustment for a market snapshot.
// Implementations degrade to a no-op contribution when their required
// inputs are absent from the quote or the context.
type Detector interface {
	Name() string
	Evaluate(q domain.MarketQuote, chaos domain.ChaosContext) Contribution
}

// Apply composes detectors left-to-right over a base confidence, collecting
// non-empty rationales. The result is clamped to [0, 100].
func Apply(base float64, q domain.MarketQuote, chaos domain.ChaosContext, detectors []Detector) (float64, []string) {
	confidence := base
	var rationale []string
	for _, d := range detectors {
		c := d.Evaluate(q, chaos)
		if c.Multiplier > 0 {
			confidence *= c.Multiplier
		}
		if c.Rationale != "" {
			rationale = append(rationale, c.Rationale)
		}
	}
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence, rationale
}
