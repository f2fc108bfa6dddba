package domain

import "fmt"

// StalePriceError means the two independent price sources disagreed beyond
// tolerance. Submission is aborted; the caller may retry next cycle.
type StalePriceError struct {
	MarketID       string
	BookCents      int
	FeedCents      int
	ToleranceCents int
}

func (e *StalePriceError) Error() string {
	return fmt.Sprintf("stale price for %s: book %d¢ vs feed %d¢ (tolerance %d¢)",
		e.MarketID, e.BookCents, e.FeedCents, e.ToleranceCents)
}

// VenueError is a non-2xx response or transport failure from the exchange.
// Never auto-retried within a cycle.
type VenueError struct {
	Op     string
	Status int // 0 for transport failures
	Body   string
	Err    error
}

func (e *VenueError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("venue %s: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("venue %s: %v", e.Op, e.Err)
}

func (e *VenueError) Unwrap() error { return e.Err }

// TimedOutError means the venue-side state of an order is unknown. The
// market must be reconciled via the exposure check before a new order is
// allowed; the order is never assumed placed or failed.
type TimedOutError struct {
	MarketID string
	Op       string
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("venue %s for %s timed out, order state unknown", e.Op, e.MarketID)
}
