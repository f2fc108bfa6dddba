package signal

import (
	"fmt"

	"github.com/prognohq/alphabot/internal/domain"
)

// Chaos contributor weights. Additive over a base volatility, clamped to 1.
// Monotonic: more contributors never lowers the index.
const (
	chaosBase         = 0.15
	chaosWeather      = 0.20 // scaled by impact severity
	chaosRivalry      = 0.15
	chaosShortWeek    = 0.10
	chaosNewStarter   = 0.25
	chaosPlayoff      = 0.12
	chaosTrapGame     = 0.18
	chaosDomeOutdoors = 0.15
)

// ChaosScorer measures how volatile a market's outcome is. The index widens
// the confidence interval rather than moving it: high chaos means the point
// estimate deserves less weight, not a different direction.
type ChaosScorer struct {
	penaltyWeight float64
}

// NewChaosScorer builds the scorer. penaltyWeight scales how hard the index
// discounts confidence; 0 falls back to 0.25.
func NewChaosScorer(penaltyWeight float64) *ChaosScorer {
	if penaltyWeight <= 0 {
		penaltyWeight = 0.25
	}
	return &ChaosScorer{penaltyWeight: penaltyWeight}
}

func (s *ChaosScorer) Name() string { return "chaos" }

// Score returns the chaos sensitivity index in [0, 1]. An empty context
// yields the neutral base.
func (s *ChaosScorer) Score(ctx domain.ChaosContext) float64 {
	v := chaosBase
	if ctx.WeatherImpact > 0 {
		w := ctx.WeatherImpact
		if w > 1 {
			w = 1
		}
		v += w * chaosWeather
	}
	if ctx.DivisionRivalry {
		v += chaosRivalry
	}
	if ctx.ShortWeek {
		v += chaosShortWeek
	}
	if ctx.NewStarter {
		v += chaosNewStarter
	}
	if ctx.PlayoffStakes {
		v += chaosPlayoff
	}
	if ctx.TrapGame {
		v += chaosTrapGame
	}
	if ctx.DomeTeamOutdoors {
		v += chaosDomeOutdoors
	}
	if v > 1 {
		v = 1
	}
	return v
}

// Evaluate implements Detector: confidence is discounted by the index.
func (s *ChaosScorer) Evaluate(_ domain.MarketQuote, ctx domain.ChaosContext) Contribution {
	csi := s.Score(ctx)
	c := Contribution{Multiplier: 1 - csi*s.penaltyWeight}
	if csi > 0.35 {
		c.Rationale = fmt.Sprintf("high chaos (%.0f%%): widen interval, reduce size", csi*100)
	} else if csi > 0.25 {
		c.Rationale = fmt.Sprintf("moderate chaos (%.0f%%)", csi*100)
	}
	return c
}
