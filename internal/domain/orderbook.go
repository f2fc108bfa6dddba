package domain

// OrderBook is one side's resting orders for a market, prices in cents.
type OrderBook struct {
	MarketID string
	Yes      BookSide
	No       BookSide
}

// BookSide holds the best resting prices for one outcome.
type BookSide struct {
	Bids []BookLevel // ordered best (highest) first
	Asks []BookLevel // ordered best (lowest) first
}

// BookLevel is a price level in the book.
type BookLevel struct {
	PriceCents int
	Contracts  int
}

// BestBid returns the highest resting bid in cents, 0 when the side is empty.
func (s BookSide) BestBid() int {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].PriceCents
}

// BestAsk returns the lowest resting ask in cents, 0 when the side is empty.
func (s BookSide) BestAsk() int {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].PriceCents
}

// Spread returns ask minus bid in cents, 0 when either side is empty.
func (s BookSide) Spread() int {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// Midpoint returns the midpoint in cents, 0 when either side is empty.
func (s BookSide) Midpoint() float64 {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return float64(bid+ask) / 2
}

// SideBook returns the book side for the given outcome.
func (ob OrderBook) SideBook(side Side) BookSide {
	if side == SideYes {
		return ob.Yes
	}
	return ob.No
}
