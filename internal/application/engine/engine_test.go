package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prognohq/alphabot/internal/application/exec"
	"github.com/prognohq/alphabot/internal/domain"
	"github.com/prognohq/alphabot/internal/domain/signal"
	"github.com/prognohq/alphabot/internal/ports"
	"github.com/prognohq/alphabot/internal/risk"
)

const demoTarget = "https://demo-api.kalshi.co"

// --- fakes ---

type fakeLedger struct {
	mu       sync.Mutex
	trades   map[string]domain.Trade
	rejected []domain.RejectedCandidate
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{trades: make(map[string]domain.Trade)}
}

func (f *fakeLedger) SaveTrade(_ context.Context, t domain.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades[t.ID] = t
	return nil
}

func (f *fakeLedger) SettleTrade(_ context.Context, tradeID string, status domain.TradeStatus, exitPriceCents int, closedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[tradeID]
	if !ok {
		return fmt.Errorf("no trade %s", tradeID)
	}
	if t.Status.Terminal() {
		return nil
	}
	t.Status = status
	t.ExitPriceCents = exitPriceCents
	if status == domain.TradeVoid {
		t.PnL = decimal.Zero
	} else {
		t.PnL = t.SettlementPnL(status == domain.TradeWon)
	}
	t.ClosedAt = &closedAt
	f.trades[tradeID] = t
	return nil
}

func (f *fakeLedger) GetOpenTrades(_ context.Context) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []domain.Trade
	for _, t := range f.trades {
		if !t.Status.Terminal() {
			open = append(open, t)
		}
	}
	return open, nil
}

func (f *fakeLedger) SaveRejected(_ context.Context, rc domain.RejectedCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, rc)
	return nil
}

func (f *fakeLedger) MarkRejectedOutcome(_ context.Context, marketID string, winner domain.Side) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rejected {
		if f.rejected[i].MarketID == marketID && f.rejected[i].WouldHaveWon == nil {
			won := f.rejected[i].Side == winner
			f.rejected[i].WouldHaveWon = &won
		}
	}
	return nil
}

func (f *fakeLedger) UnresolvedRejectedMarkets(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var markets []string
	for _, rc := range f.rejected {
		if rc.WouldHaveWon != nil {
			continue
		}
		if _, ok := seen[rc.MarketID]; ok {
			continue
		}
		seen[rc.MarketID] = struct{}{}
		markets = append(markets, rc.MarketID)
	}
	return markets, nil
}

func (f *fakeLedger) Stats(_ context.Context) (domain.LedgerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := domain.LedgerStats{TotalPnL: decimal.Zero}
	for _, t := range f.trades {
		stats.TotalTrades++
		switch t.Status {
		case domain.TradeWon:
			stats.Wins++
		case domain.TradeLost:
			stats.Losses++
		case domain.TradeVoid:
			// closed without a result
		default:
			stats.OpenTrades++
		}
		stats.TotalPnL = stats.TotalPnL.Add(t.PnL)
	}
	return stats, nil
}

type fakeBooks struct {
	books map[string]domain.OrderBook
}

func (f *fakeBooks) FetchOrderBook(_ context.Context, marketID string) (domain.OrderBook, error) {
	book, ok := f.books[marketID]
	if !ok {
		return domain.OrderBook{}, fmt.Errorf("no book for %s", marketID)
	}
	return book, nil
}

type fakeFeed struct{}

func (fakeFeed) LastPrice(string) (int, bool) { return 0, false }

type fakeSubmitter struct {
	mu      sync.Mutex
	orders  []ports.OrderRequest
	failErr error
}

func (f *fakeSubmitter) SubmitOrder(_ context.Context, req ports.OrderRequest) (ports.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	if f.failErr != nil {
		return ports.OrderAck{}, f.failErr
	}
	return ports.OrderAck{OrderID: "ord-" + req.MarketID, MarketID: req.MarketID, Status: "resting"}, nil
}

func (f *fakeSubmitter) SubmitBatch(ctx context.Context, reqs []ports.OrderRequest) ([]ports.OrderAck, error) {
	var acks []ports.OrderAck
	for _, req := range reqs {
		ack, err := f.SubmitOrder(ctx, req)
		if err != nil {
			return nil, err
		}
		acks = append(acks, ack)
	}
	return acks, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	picks []domain.Decision
}

func (f *fakeNotifier) NotifyHighConfidence(_ context.Context, d domain.Decision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.picks = append(f.picks, d)
}

type fakeSettlements struct {
	settlements map[string]ports.Settlement
}

func (f *fakeSettlements) FetchSettlement(_ context.Context, marketID string) (ports.Settlement, error) {
	s, ok := f.settlements[marketID]
	if !ok {
		return ports.Settlement{MarketID: marketID}, nil
	}
	return s, nil
}

// --- fixtures ---

func bookAt(marketID string, yesBid, yesAsk int) domain.OrderBook {
	return domain.OrderBook{
		MarketID: marketID,
		Yes: domain.BookSide{
			Bids: []domain.BookLevel{{PriceCents: yesBid, Contracts: 100}},
			Asks: []domain.BookLevel{{PriceCents: yesAsk, Contracts: 100}},
		},
		No: domain.BookSide{
			Bids: []domain.BookLevel{{PriceCents: 100 - yesAsk, Contracts: 100}},
			Asks: []domain.BookLevel{{PriceCents: 100 - yesBid, Contracts: 100}},
		},
	}
}

// strongQuote scores well past the edge and confidence thresholds: heavy
// favorite whose line moved against an 85% public side.
func strongQuote(marketID string) domain.MarketQuote {
	return domain.MarketQuote{
		MarketID:       marketID,
		MoneylineYes:   -300,
		MoneylineNo:    250,
		OpeningLine:    -6,
		CurrentLine:    -4,
		PublicMoneyPct: 85,
		CapturedAt:     time.Now(),
	}
}

// flatQuote scores close to its implied price: nothing worth acting on.
func flatQuote(marketID string) domain.MarketQuote {
	return domain.MarketQuote{
		MarketID:     marketID,
		MoneylineYes: -150,
		MoneylineNo:  130,
		CapturedAt:   time.Now(),
	}
}

type harness struct {
	engine    *Engine
	gate      *risk.Gate
	ledger    *fakeLedger
	submitter *fakeSubmitter
	notifier  *fakeNotifier
}

func newHarness(t *testing.T, books map[string]domain.OrderBook, spendCap int64) *harness {
	t.Helper()

	gate := risk.New(risk.Config{
		SpendCap:       decimal.New(spendCap, 0),
		SpendWindow:    5 * time.Minute,
		MaxOpenTrades:  10,
		AllowedOrigins: []string{demoTarget},
	})

	sub := &fakeSubmitter{}
	manager := exec.NewManager(&fakeBooks{books: books}, fakeFeed{}, sub, exec.Config{
		MakerTickOffset:     1,
		MinSpreadCents:      2,
		BatchThreshold:      3,
		PriceToleranceCents: 2,
		RequestTimeout:      time.Second,
	})

	ledger := newFakeLedger()
	notifier := &fakeNotifier{}

	detectors := []signal.Detector{
		signal.NewLineMoveDetector(signal.LineMoveConfig{}),
		signal.NewChaosScorer(0.25),
	}

	eng := New(Config{
		SpreadProbPerPoint:   0.03,
		StakePerTrade:        decimal.New(5, 0),
		MinConfidence:        60,
		MinEdge:              0.02,
		HighConfidenceNotify: 85,
		ExecutionTarget:      demoTarget,
	}, gate, manager, ledger, detectors, nil).WithNotifier(notifier)

	return &harness{engine: eng, gate: gate, ledger: ledger, submitter: sub, notifier: notifier}
}

// --- tests ---

func TestRunCycle_StrongPickPlacedAndRecorded(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 10)

	decisions := h.engine.RunCycle(context.Background(), []domain.MarketQuote{strongQuote("KXA")})
	require.Len(t, decisions, 1)

	d := decisions[0]
	require.True(t, d.Accepted(), "reason: %s", d.Reason)
	assert.Equal(t, domain.SideYes, d.Side)
	assert.Greater(t, d.Edge, 0.02)
	assert.GreaterOrEqual(t, d.Confidence, 60.0)
	assert.NotEmpty(t, d.Rationale)

	require.Len(t, h.submitter.orders, 1)
	assert.Equal(t, 61, h.submitter.orders[0].PriceCents)

	open, err := h.ledger.GetOpenTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "KXA", open[0].MarketID)
	assert.Equal(t, domain.TradeOpen, open[0].Status)
	assert.Equal(t, 8, open[0].Contracts)
}

func TestRunCycle_FlatQuoteRejectedNoEdge(t *testing.T) {
	h := newHarness(t, nil, 10)

	decisions := h.engine.RunCycle(context.Background(), []domain.MarketQuote{flatQuote("KXA")})
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Accepted())
	assert.Equal(t, domain.RejectNoEdge, decisions[0].Reason)

	assert.Empty(t, h.submitter.orders, "nothing reaches the venue")
	assert.Len(t, h.ledger.rejected, 1)
}

func TestRunCycle_MalformedQuoteIsTaggedNotFatal(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXB": bookAt("KXB", 60, 64)}, 10)

	decisions := h.engine.RunCycle(context.Background(), []domain.MarketQuote{
		{MarketID: "KXA", CapturedAt: time.Now()}, // no prices at all
		strongQuote("KXB"),
	})
	require.Len(t, decisions, 2)

	assert.Equal(t, domain.RejectMalformed, decisions[0].Reason)
	assert.True(t, decisions[1].Accepted(), "a bad quote never blocks its neighbors")
}

func TestRunCycle_SpendCapRejectionCarriesWait(t *testing.T) {
	books := map[string]domain.OrderBook{
		"KXA": bookAt("KXA", 60, 64),
		"KXB": bookAt("KXB", 60, 64),
	}
	h := newHarness(t, books, 8) // $8 cap, $5 stakes

	decisions := h.engine.RunCycle(context.Background(), []domain.MarketQuote{
		strongQuote("KXA"), strongQuote("KXB"),
	})
	require.Len(t, decisions, 2)

	var placed, capped int
	for _, d := range decisions {
		if d.Accepted() {
			placed++
		} else {
			require.Equal(t, domain.RejectSpendCap, d.Reason)
			assert.Greater(t, d.WaitMS, int64(0))
			assert.LessOrEqual(t, d.WaitMS, (5 * time.Minute).Milliseconds())
			capped++
		}
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, capped)
}

func TestRunCycle_SameMarketTwiceAdmitsOnce(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 100)

	decisions := h.engine.RunCycle(context.Background(), []domain.MarketQuote{
		strongQuote("KXA"), strongQuote("KXA"),
	})
	require.Len(t, decisions, 2)

	accepted := 0
	for _, d := range decisions {
		if d.Accepted() {
			accepted++
		} else {
			assert.Equal(t, domain.RejectExposure, d.Reason)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Len(t, h.submitter.orders, 1)
}

func TestRunCycle_OpenTradeBlocksMarketNextCycle(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 100)
	ctx := context.Background()

	first := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})
	require.True(t, first[0].Accepted())

	second := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})
	assert.False(t, second[0].Accepted())
	assert.Equal(t, domain.RejectExposure, second[0].Reason)
}

func TestRunCycle_TimeoutParksPendingTrade(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 100)
	h.submitter.failErr = &domain.TimedOutError{MarketID: "KXA", Op: "submit"}
	ctx := context.Background()

	decisions := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.RejectTimedOut, decisions[0].Reason)

	open, err := h.ledger.GetOpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.TradePending, open[0].Status)

	// the pending trade keeps the market blocked next cycle
	h.submitter.failErr = nil
	second := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})
	assert.Equal(t, domain.RejectExposure, second[0].Reason)
}

func TestRunCycle_VenueRejectionRefundsSpend(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 5)
	h.submitter.failErr = &domain.VenueError{Op: "submit", Status: 400, Body: "insufficient_balance"}
	ctx := context.Background()

	first := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})
	require.Equal(t, domain.RejectVenue, first[0].Reason)

	// the $5 stake was refunded, so the same $5 cap admits again
	h.submitter.failErr = nil
	second := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})
	assert.True(t, second[0].Accepted(), "reason: %s", second[0].Reason)
}

func TestRunCycle_HighConfidenceNotification(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 10)

	decisions := h.engine.RunCycle(context.Background(), []domain.MarketQuote{strongQuote("KXA")})
	require.True(t, decisions[0].Accepted())
	require.GreaterOrEqual(t, decisions[0].Confidence, 85.0)

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	require.Len(t, h.notifier.picks, 1)
	assert.Equal(t, "KXA", h.notifier.picks[0].MarketID)
}

func TestPoller_SettlesAndBackfills(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 10)
	ctx := context.Background()

	decisions := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA"), flatQuote("KXB")})
	require.True(t, decisions[0].Accepted())
	require.False(t, decisions[1].Accepted())

	venue := &fakeSettlements{settlements: map[string]ports.Settlement{
		"KXA": {MarketID: "KXA", Resolved: true, Winner: domain.SideYes},
		"KXB": {MarketID: "KXB", Resolved: true, Winner: domain.SideNo},
	}}
	poller := NewPoller(venue, h.ledger)
	require.NoError(t, poller.Poll(ctx))

	open, err := h.ledger.GetOpenTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	stats, err := h.ledger.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Wins)
	assert.True(t, stats.TotalPnL.GreaterThan(decimal.Zero))

	// the flat pick on KXB was rejected; its outcome is now back-filled
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	var found bool
	for _, rc := range h.ledger.rejected {
		if rc.MarketID == "KXB" {
			found = true
			require.NotNil(t, rc.WouldHaveWon)
			assert.Equal(t, rc.Side == domain.SideNo, *rc.WouldHaveWon)
		}
	}
	require.True(t, found)
}

func TestPoller_PendingTradeVoidedWithoutPnL(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 100)
	h.submitter.failErr = &domain.TimedOutError{MarketID: "KXA", Op: "submit"}
	ctx := context.Background()

	decisions := h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})
	require.Equal(t, domain.RejectTimedOut, decisions[0].Reason)

	venue := &fakeSettlements{settlements: map[string]ports.Settlement{
		"KXA": {MarketID: "KXA", Resolved: true, Winner: domain.SideYes},
	}}
	poller := NewPoller(venue, h.ledger)
	require.NoError(t, poller.Poll(ctx))

	// the unconfirmed fill books neither a result nor P&L
	stats, err := h.ledger.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Wins)
	assert.Equal(t, 0, stats.Losses)
	assert.True(t, stats.TotalPnL.IsZero(), "got %s", stats.TotalPnL)

	open, err := h.ledger.GetOpenTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "a voided trade no longer counts as exposure")
}

func TestPoller_Idempotent(t *testing.T) {
	h := newHarness(t, map[string]domain.OrderBook{"KXA": bookAt("KXA", 60, 64)}, 10)
	ctx := context.Background()

	h.engine.RunCycle(ctx, []domain.MarketQuote{strongQuote("KXA")})

	venue := &fakeSettlements{settlements: map[string]ports.Settlement{
		"KXA": {MarketID: "KXA", Resolved: true, Winner: domain.SideYes},
	}}
	poller := NewPoller(venue, h.ledger)
	require.NoError(t, poller.Poll(ctx))
	require.NoError(t, poller.Poll(ctx))

	stats, err := h.ledger.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 0, stats.Losses)
}
