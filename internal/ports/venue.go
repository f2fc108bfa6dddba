package ports

import (
	"context"

	"github.com/prognohq/alphabot/internal/domain"
)

// BookProvider reads live order books from the venue.
type BookProvider interface {
	// FetchOrderBook returns the current book for one market.
	FetchOrderBook(ctx context.Context, marketID string) (domain.OrderBook, error)
}

// OrderRequest is a venue-facing order intent. Limit/maker only.
type OrderRequest struct {
	MarketID   string
	Side       domain.Side
	PriceCents int
	Contracts  int
}

// OrderAck is the venue's acknowledgement of a submitted order.
type OrderAck struct {
	OrderID  string
	MarketID string
	Status   string
}

// OrderSubmitter places maker limit orders on the venue.
type OrderSubmitter interface {
	// SubmitOrder places one limit order.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)

	// SubmitBatch places several limit orders as one logical unit, used
	// when enough tickers are ready in the same cycle to be worth saving
	// requests under the shared rate limiter.
	SubmitBatch(ctx context.Context, reqs []OrderRequest) ([]OrderAck, error)
}

// Settlement is the venue's resolution report for a market.
type Settlement struct {
	MarketID string
	Resolved bool
	Winner   domain.Side // meaningful only when Resolved
}

// SettlementProvider reads market resolution state.
type SettlementProvider interface {
	FetchSettlement(ctx context.Context, marketID string) (Settlement, error)
}
