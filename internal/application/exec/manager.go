// Package exec turns admitted decisions into venue orders.
//
// Every order walks one state machine: Quoting → PriceVerified → Submitted
// → Confirmed | Rejected | TimedOut. A timed-out submission is terminal for
// the cycle; the next cycle re-evaluates the market from scratch instead of
// retrying a POST whose venue-side fate is unknown.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prognohq/alphabot/internal/domain"
	"github.com/prognohq/alphabot/internal/ports"
)

// State is a position in the order lifecycle.
type State string

const (
	StateQuoting       State = "quoting"
	StatePriceVerified State = "price_verified"
	StateSubmitted     State = "submitted"
	StateConfirmed     State = "confirmed"
	StateRejected      State = "rejected"
	StateTimedOut      State = "timed_out"
)

// Placement is one admitted decision handed to the manager.
type Placement struct {
	MarketID string
	Side     domain.Side
	Stake    decimal.Decimal
}

// Outcome is the terminal result for one placement.
type Outcome struct {
	Placement
	State      State
	PriceCents int
	Contracts  int
	Ack        ports.OrderAck
	Err        error
}

// Confirmed reports whether the venue accepted the order.
func (o Outcome) Confirmed() bool { return o.State == StateConfirmed }

// Config holds the execution knobs.
type Config struct {
	MakerTickOffset     int // cents above best bid
	MinSpreadCents      int // skip markets tighter than this
	BatchThreshold      int // batch at or above this many ready orders
	PriceToleranceCents int // max book/feed disagreement
	RequestTimeout      time.Duration
}

// Manager prices, verifies and submits maker orders.
type Manager struct {
	books     ports.BookProvider
	feed      ports.PriceSource
	submitter ports.OrderSubmitter
	cfg       Config
}

// NewManager wires the execution dependencies.
func NewManager(books ports.BookProvider, feed ports.PriceSource, submitter ports.OrderSubmitter, cfg Config) *Manager {
	if cfg.MakerTickOffset <= 0 {
		cfg.MakerTickOffset = 1
	}
	if cfg.MinSpreadCents <= 0 {
		cfg.MinSpreadCents = 2
	}
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = 3
	}
	if cfg.PriceToleranceCents <= 0 {
		cfg.PriceToleranceCents = 2
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Manager{books: books, feed: feed, submitter: submitter, cfg: cfg}
}

// Execute runs every placement through the lifecycle and returns one
// terminal outcome per placement, in input order.
func (m *Manager) Execute(ctx context.Context, placements []Placement) []Outcome {
	outcomes := make([]Outcome, len(placements))
	ready := make([]int, 0, len(placements))

	for i, p := range placements {
		outcomes[i] = m.prepare(ctx, p)
		if outcomes[i].State == StatePriceVerified {
			ready = append(ready, i)
		}
	}

	if len(ready) == 0 {
		return outcomes
	}

	if len(ready) >= m.cfg.BatchThreshold {
		m.submitBatch(ctx, outcomes, ready)
	} else {
		for _, i := range ready {
			m.submitOne(ctx, &outcomes[i])
		}
	}
	return outcomes
}

// prepare takes a placement through Quoting and PriceVerified.
func (m *Manager) prepare(ctx context.Context, p Placement) Outcome {
	out := Outcome{Placement: p, State: StateQuoting}

	book, err := m.books.FetchOrderBook(ctx, p.MarketID)
	if err != nil {
		out.State = StateRejected
		out.Err = fmt.Errorf("quote %s: %w", p.MarketID, err)
		return out
	}

	price, err := m.makerPrice(book, p.Side)
	if err != nil {
		out.State = StateRejected
		out.Err = err
		return out
	}
	out.PriceCents = price

	out.Contracts = domain.ContractsForStake(p.Stake, price)
	if out.Contracts <= 0 {
		out.State = StateRejected
		out.Err = fmt.Errorf("stake %s buys no contracts at %d¢", p.Stake, price)
		return out
	}

	if err := m.verifyPrice(book, p.Side); err != nil {
		out.State = StateRejected
		out.Err = err
		return out
	}

	out.State = StatePriceVerified
	return out
}

// makerPrice computes one tick above the best bid, clamped to the venue's
// printable range. Markets tighter than the minimum spread are skipped:
// there is no room to rest inside them.
func (m *Manager) makerPrice(book domain.OrderBook, side domain.Side) (int, error) {
	sb := book.SideBook(side)
	bid, ask := sb.BestBid(), sb.BestAsk()
	if bid <= 0 || ask <= 0 {
		return 0, fmt.Errorf("market %s: empty %s book", book.MarketID, side)
	}
	if ask-bid < m.cfg.MinSpreadCents {
		return 0, fmt.Errorf("market %s: spread %d¢ below minimum %d¢",
			book.MarketID, ask-bid, m.cfg.MinSpreadCents)
	}

	price := bid + m.cfg.MakerTickOffset
	if price >= ask {
		price = ask - 1 // stay maker
	}
	if price < 1 {
		price = 1
	}
	if price > 99 {
		price = 99
	}
	return price, nil
}

// verifyPrice cross-checks the book against the streaming source. The two
// views must agree within tolerance; a fight between them means at least
// one is stale and the market is skipped this cycle. A missing or stale
// feed is not a disagreement; the book stands alone then.
func (m *Manager) verifyPrice(book domain.OrderBook, side domain.Side) error {
	feedCents, fresh := m.feed.LastPrice(book.MarketID)
	if !fresh {
		return nil
	}

	// the feed quotes the yes side; compare in yes terms
	mid := book.Yes.Midpoint()
	if side == domain.SideNo && mid == 0 {
		if noMid := book.No.Midpoint(); noMid != 0 {
			mid = 100 - noMid
		}
	}
	if mid == 0 {
		return nil
	}
	bookCents := int(mid + 0.5)

	if diff := abs(bookCents - feedCents); diff > m.cfg.PriceToleranceCents {
		return &domain.StalePriceError{
			MarketID:       book.MarketID,
			BookCents:      bookCents,
			FeedCents:      feedCents,
			ToleranceCents: m.cfg.PriceToleranceCents,
		}
	}
	return nil
}

// submitOne drives a single verified order to its terminal state.
func (m *Manager) submitOne(ctx context.Context, out *Outcome) {
	out.State = StateSubmitted

	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	ack, err := m.submitter.SubmitOrder(reqCtx, ports.OrderRequest{
		MarketID:   out.MarketID,
		Side:       out.Side,
		PriceCents: out.PriceCents,
		Contracts:  out.Contracts,
	})
	if err != nil {
		out.State = classify(err)
		out.Err = err
		return
	}

	out.State = StateConfirmed
	out.Ack = ack
	slog.Info("order confirmed",
		"market", out.MarketID, "side", out.Side,
		"price_cents", out.PriceCents, "contracts", out.Contracts,
		"order_id", ack.OrderID)
}

// submitBatch drives all verified orders as one request. The venue treats
// batch legs independently, so a transport failure is applied to every leg
// while a successful response is matched back per leg.
func (m *Manager) submitBatch(ctx context.Context, outcomes []Outcome, ready []int) {
	reqs := make([]ports.OrderRequest, 0, len(ready))
	for _, i := range ready {
		outcomes[i].State = StateSubmitted
		reqs = append(reqs, ports.OrderRequest{
			MarketID:   outcomes[i].MarketID,
			Side:       outcomes[i].Side,
			PriceCents: outcomes[i].PriceCents,
			Contracts:  outcomes[i].Contracts,
		})
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	acks, err := m.submitter.SubmitBatch(reqCtx, reqs)
	if err != nil {
		state := classify(err)
		for _, i := range ready {
			outcomes[i].State = state
			outcomes[i].Err = err
		}
		return
	}

	byMarket := make(map[string]ports.OrderAck, len(acks))
	for _, ack := range acks {
		byMarket[ack.MarketID] = ack
	}
	for _, i := range ready {
		ack, ok := byMarket[outcomes[i].MarketID]
		if !ok {
			outcomes[i].State = StateRejected
			outcomes[i].Err = fmt.Errorf("batch response missing market %s", outcomes[i].MarketID)
			continue
		}
		outcomes[i].State = StateConfirmed
		outcomes[i].Ack = ack
	}
	slog.Info("batch confirmed", "orders", len(acks))
}

// classify maps a submission error to its terminal state.
func classify(err error) State {
	var timedOut *domain.TimedOutError
	if errors.As(err, &timedOut) || errors.Is(err, context.DeadlineExceeded) {
		return StateTimedOut
	}
	return StateRejected
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
