package domain

import "time"

// Side is one of the two outcomes of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// MarketQuote is a venue-issued snapshot of a binary market. It is immutable
// once captured; a fresh snapshot is a new value, never an in-place update.
//
// Prices come in one of two shapes: a moneyline pair (American odds, sports
// books) or best bid/ask in integer cents (exchange order books). Zero means
// the field was absent from the upstream payload.
type MarketQuote struct {
	MarketID string
	YesLabel string // e.g. home team
	NoLabel  string // e.g. away team

	// Moneyline-style odds, when quoted that way.
	MoneylineYes float64
	MoneylineNo  float64

	// Exchange-style prices in cents (1-99), when quoted that way.
	YesBid int
	YesAsk int
	NoBid  int
	NoAsk  int

	// Line and crowd data for the signal detectors.
	OpeningLine    float64
	CurrentLine    float64
	PublicMoneyPct float64 // % of money on the yes side, 0 when unknown
	TicketPct      float64 // % of tickets on the yes side, 0 when unknown

	CapturedAt time.Time
}

// HasMoneyline reports whether the quote carries a two-sided moneyline.
func (q MarketQuote) HasMoneyline() bool {
	return q.MoneylineYes != 0 && q.MoneylineNo != 0
}

// HasBook reports whether the quote carries exchange-style ask prices.
func (q MarketQuote) HasBook() bool {
	return q.YesAsk > 0 && q.NoAsk > 0
}

// ChaosContext carries the volatility contributors available for a market.
// Every field is optional; a zero value contributes nothing.
type ChaosContext struct {
	Sport            string
	WeatherImpact    float64 // 0-1 severity, 0 when unknown
	DivisionRivalry  bool
	ShortWeek        bool
	NewStarter       bool // backup QB, new coach
	PlayoffStakes    bool
	TrapGame         bool
	DomeTeamOutdoors bool
}
