package signal

import (
	"testing"

	"github.com/prognohq/alphabot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func defaultDetector() *LineMoveDetector {
	return NewLineMoveDetector(LineMoveConfig{})
}

func TestClassify_LineFreeze(t *testing.T) {
	// 85% public, line stuck at -3: the venue is holding against the crowd.
	state, conf := defaultDetector().Classify(-3, -3, 85)
	assert.Equal(t, LineFreeze, state)
	assert.Equal(t, 78.0, conf)
}

func TestClassify_ReverseLineMovement(t *testing.T) {
	// 85% public on yes, line moved -3 → +1, against the crowd.
	state, conf := defaultDetector().Classify(-3, 1, 85)
	assert.Equal(t, ReverseLineMovement, state)
	assert.Equal(t, 92.0, conf)
}

func TestClassify_StableWhenPublicBalanced(t *testing.T) {
	state, conf := defaultDetector().Classify(-3, 1, 55)
	assert.Equal(t, StableMarket, state)
	assert.Equal(t, 50.0, conf)
}

func TestClassify_StableWhenLineFollowsPublic(t *testing.T) {
	// Heavy public on yes and the line moved further negative with them.
	state, _ := defaultDetector().Classify(-3, -5, 85)
	assert.Equal(t, StableMarket, state)
}

func TestClassify_HeavyPublicOnNoSide(t *testing.T) {
	// 85% on no is 15% on yes; a negative move fades the no crowd.
	state, conf := defaultDetector().Classify(3, 1, 15)
	assert.Equal(t, ReverseLineMovement, state)
	assert.Equal(t, 92.0, conf)
}

func TestClassify_HalfPointMoveStillFrozen(t *testing.T) {
	state, _ := defaultDetector().Classify(-3, -2.5, 85)
	assert.Equal(t, LineFreeze, state)
}

func TestEvaluate_NoPublicDataIsNoOp(t *testing.T) {
	c := defaultDetector().Evaluate(domain.MarketQuote{OpeningLine: -3, CurrentLine: 1}, domain.ChaosContext{})
	assert.Equal(t, 1.0, c.Multiplier)
	assert.Empty(t, c.Rationale)
}

func TestEvaluate_FreezeBoostsConfidence(t *testing.T) {
	q := domain.MarketQuote{OpeningLine: -3, CurrentLine: -3, PublicMoneyPct: 85}
	c := defaultDetector().Evaluate(q, domain.ChaosContext{})
	assert.InDelta(t, 78.0/50.0, c.Multiplier, 1e-9)
	assert.Contains(t, c.Rationale, "line_freeze")
}

func TestApply_ComposesLeftToRight(t *testing.T) {
	q := domain.MarketQuote{OpeningLine: -3, CurrentLine: 1, PublicMoneyPct: 85}
	detectors := []Detector{defaultDetector(), NewChaosScorer(0.25)}
	conf, rationale := Apply(50, q, domain.ChaosContext{}, detectors)
	// 50 × (92/50) × (1 − 0.15×0.25) = 92 × 0.9625
	assert.InDelta(t, 88.55, conf, 0.01)
	assert.Len(t, rationale, 1)
}

func TestApply_ClampsAtHundred(t *testing.T) {
	q := domain.MarketQuote{OpeningLine: -3, CurrentLine: 1, PublicMoneyPct: 85}
	conf, _ := Apply(90, q, domain.ChaosContext{}, []Detector{defaultDetector()})
	assert.Equal(t, 100.0, conf)
}
