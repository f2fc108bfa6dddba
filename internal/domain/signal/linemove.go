package signal

import (
	"fmt"
	"math"

	"github.com/prognohq/alphabot/internal/domain"
)

// LineState classifies how the line has behaved against the public money.
type LineState int

const (
	// StableMarket is the default: no crowd-vs-line divergence.
	StableMarket LineState = iota
	// LineFreeze: heavy public money on one side but the line has not
	// moved; the venue is holding against the crowd.
	LineFreeze
	// ReverseLineMovement: heavy public money on one side and the line
	// moved against that side. Classic sharp-action signal.
	ReverseLineMovement
)

func (s LineState) String() string {
	switch s {
	case LineFreeze:
		return "line_freeze"
	case ReverseLineMovement:
		return "reverse_line_movement"
	default:
		return "stable"
	}
}

// LineMoveConfig carries the classifier's thresholds and per-state
// confidences. The defaults (70% / 0.5 points / 50-78-92) are observed
// values, not derived ones, which is why they live in config.
type LineMoveConfig struct {
	PublicMoneyThreshold float64 // % on one side that counts as "heavy"
	FreezeMaxLineMove    float64 // points of movement still counted as frozen
	StableConfidence     float64
	FreezeConfidence     float64
	ReverseConfidence    float64
}

// LineMoveDetector classifies line-freeze and reverse-line-movement states.
// Stateless; it compares the opening and current line supplied in the quote.
type LineMoveDetector struct {
	cfg LineMoveConfig
}

// NewLineMoveDetector builds the detector, filling zero config fields with
// the observed defaults.
func NewLineMoveDetector(cfg LineMoveConfig) *LineMoveDetector {
	if cfg.PublicMoneyThreshold <= 0 {
		cfg.PublicMoneyThreshold = 70
	}
	if cfg.FreezeMaxLineMove <= 0 {
		cfg.FreezeMaxLineMove = 0.5
	}
	if cfg.StableConfidence <= 0 {
		cfg.StableConfidence = 50
	}
	if cfg.FreezeConfidence <= 0 {
		cfg.FreezeConfidence = 78
	}
	if cfg.ReverseConfidence <= 0 {
		cfg.ReverseConfidence = 92
	}
	return &LineMoveDetector{cfg: cfg}
}

func (d *LineMoveDetector) Name() string { return "line_move" }

// Classify returns the state and its confidence for one snapshot.
// publicPct is the percentage of public money on the yes side.
func (d *LineMoveDetector) Classify(openingLine, currentLine, publicPct float64) (LineState, float64) {
	heavyYes := publicPct > d.cfg.PublicMoneyThreshold
	heavyNo := publicPct > 0 && publicPct < 100-d.cfg.PublicMoneyThreshold
	if !heavyYes && !heavyNo {
		return StableMarket, d.cfg.StableConfidence
	}

	move := currentLine - openingLine
	if math.Abs(move) <= d.cfg.FreezeMaxLineMove {
		return LineFreeze, d.cfg.FreezeConfidence
	}

	// Public money on yes pushes the line more negative; a positive move is
	// the venue moving against the crowd. Mirrored for the no side.
	movedAgainstPublic := (heavyYes && move > 0) || (heavyNo && move < 0)
	if movedAgainstPublic {
		return ReverseLineMovement, d.cfg.ReverseConfidence
	}
	return StableMarket, d.cfg.StableConfidence
}

// Evaluate implements Detector. The multiplier scales the base confidence by
// how far the state's confidence sits above the stable baseline.
func (d *LineMoveDetector) Evaluate(q domain.MarketQuote, _ domain.ChaosContext) Contribution {
	if q.PublicMoneyPct == 0 {
		return Contribution{Multiplier: 1}
	}

	state, conf := d.Classify(q.OpeningLine, q.CurrentLine, q.PublicMoneyPct)
	if state == StableMarket {
		return Contribution{Multiplier: 1}
	}
	return Contribution{
		Multiplier: conf / d.cfg.StableConfidence,
		Rationale: fmt.Sprintf("%s: %.0f%% public, line %+.1f → %+.1f",
			state, q.PublicMoneyPct, q.OpeningLine, q.CurrentLine),
	}
}
