package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Disposition is the final verdict on a scored market.
type Disposition string

const (
	DispositionAccepted Disposition = "accepted"
	DispositionRejected Disposition = "rejected"
)

// Rejection reasons name the specific gate that failed.
const (
	RejectSpendCap    = "spend"
	RejectEnvironment = "environment"
	RejectExposure    = "exposure"
	RejectStalePrice  = "stale_price"
	RejectVenue       = "venue"
	RejectTimedOut    = "timed_out"
	RejectNoEdge      = "no_edge"
	RejectMalformed   = "malformed_quote"
)

// Decision is the output of the scoring pipeline for one market in one
// cycle. A decision is produced exactly once per market per cycle and is
// never silently retried; the next cycle produces a new one.
type Decision struct {
	MarketID    string
	Side        Side
	FairProb    float64
	Confidence  float64 // 0-100 after detector composition
	Edge        float64
	Stake       decimal.Decimal
	Rationale   []string
	Disposition Disposition
	Reason      string // set when rejected, names the failing check
	WaitMS      int64  // spend rejections: time until the window frees up
	DecidedAt   time.Time
}

// Accepted reports whether the decision cleared every gate.
func (d Decision) Accepted() bool {
	return d.Disposition == DispositionAccepted
}

// Reject returns a copy of the decision marked rejected for the given reason.
func (d Decision) Reject(reason string) Decision {
	d.Disposition = DispositionRejected
	d.Reason = reason
	return d
}

// RejectedCandidate is a persisted mirror of a rejected decision, kept for
// retrospective analysis only. It never drives execution.
type RejectedCandidate struct {
	ID           int64
	MarketID     string
	Side         Side
	Reason       string
	Confidence   float64
	Edge         float64
	RejectedAt   time.Time
	WouldHaveWon *bool // back-filled at market settlement, nil until then
}
