package ports

// PriceSource is an independent view of a market's last traded or quoted
// price, used to cross-check the order book before submission.
type PriceSource interface {
	// LastPrice returns the source's current price in cents for the
	// market's yes side, and false when the source has no fresh data.
	LastPrice(marketID string) (int, bool)
}
