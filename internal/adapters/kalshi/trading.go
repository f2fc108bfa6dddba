package kalshi

// trading.go: order submission against the venue.
//
// Implements ports.OrderSubmitter. All orders are limit (maker) orders.
// Submission never retries: a timed-out POST leaves the venue-side state
// unknown and the next cycle reconciles it through the exposure check.

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/prognohq/alphabot/internal/domain"
	"github.com/prognohq/alphabot/internal/ports"
)

const (
	ordersPath      = "/portfolio/orders"
	batchOrdersPath = "/portfolio/orders/batched"
)

// Trader implements ports.OrderSubmitter.
type Trader struct {
	client *Client
}

// NewTrader wraps a Client for order submission.
func NewTrader(client *Client) *Trader {
	return &Trader{client: client}
}

// SubmitOrder places one maker limit order.
func (t *Trader) SubmitOrder(ctx context.Context, req ports.OrderRequest) (ports.OrderAck, error) {
	body, err := buildOrder(req)
	if err != nil {
		return ports.OrderAck{}, fmt.Errorf("kalshi.SubmitOrder: %w", err)
	}

	var resp orderResponse
	if err := t.client.doOnce(ctx, ordersPath, body, &resp); err != nil {
		return ports.OrderAck{}, t.classify(err, req.MarketID, "submit")
	}
	return ports.OrderAck{
		OrderID:  resp.Order.OrderID,
		MarketID: resp.Order.Ticker,
		Status:   resp.Order.Status,
	}, nil
}

// SubmitBatch places several orders as one request. The venue treats the
// batch as independent orders; one bad leg does not roll back the others,
// so the caller gets per-leg acks in request order.
func (t *Trader) SubmitBatch(ctx context.Context, reqs []ports.OrderRequest) ([]ports.OrderAck, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	batch := batchOrderRequest{Orders: make([]orderRequest, 0, len(reqs))}
	for _, req := range reqs {
		body, err := buildOrder(req)
		if err != nil {
			return nil, fmt.Errorf("kalshi.SubmitBatch %s: %w", req.MarketID, err)
		}
		batch.Orders = append(batch.Orders, body)
	}

	var resp batchOrderResponse
	if err := t.client.doOnce(ctx, batchOrdersPath, batch, &resp); err != nil {
		return nil, t.classify(err, reqs[0].MarketID, "submit_batch")
	}

	acks := make([]ports.OrderAck, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		acks = append(acks, ports.OrderAck{
			OrderID:  o.Order.OrderID,
			MarketID: o.Order.Ticker,
			Status:   o.Order.Status,
		})
	}
	return acks, nil
}

// buildOrder validates and converts an order intent to the wire shape.
// Price and count must be strict integers inside the venue's bounds.
func buildOrder(req ports.OrderRequest) (orderRequest, error) {
	if req.PriceCents < 1 || req.PriceCents > 99 {
		return orderRequest{}, fmt.Errorf("price %d¢ outside 1-99", req.PriceCents)
	}
	if req.Contracts <= 0 {
		return orderRequest{}, fmt.Errorf("invalid contract count %d", req.Contracts)
	}

	body := orderRequest{
		Ticker:        req.MarketID,
		ClientOrderID: uuid.NewString(),
		Side:          string(req.Side),
		Action:        "buy",
		Count:         req.Contracts,
		Type:          "limit",
	}
	price := req.PriceCents
	if req.Side == domain.SideYes {
		body.YesPrice = &price
	} else {
		body.NoPrice = &price
	}
	return body, nil
}

// classify maps transport errors to the domain taxonomy.
func (t *Trader) classify(err error, marketID, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &domain.TimedOutError{MarketID: marketID, Op: op}
	}
	var ve *domain.VenueError
	if errors.As(err, &ve) {
		return ve
	}
	return &domain.VenueError{Op: op, Err: err}
}
