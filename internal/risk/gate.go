// Package risk enforces the hard money-safety invariants that run before
// any order, independent of how good a prediction looks: a sliding-window
// spend cap, an execution-origin allow-list, and exposure limits keyed by
// market id. All three checks plus the spend commit happen under one lock
// so that concurrent decisions cannot double-admit.
package risk

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prognohq/alphabot/internal/domain"
)

// Config holds the gate's limits.
type Config struct {
	SpendCap       decimal.Decimal
	SpendWindow    time.Duration
	MaxOpenTrades  int
	AllowedOrigins []string
}

// Result is the outcome of an admission attempt.
type Result struct {
	OK     bool
	Reason string // names the failing check when !OK
	WaitMS int64  // spend rejections: ms until the window can take the stake
}

// Gate is the injectable risk gate. One instance is shared by the whole
// pipeline; its window and reservation set are the only mutable state.
type Gate struct {
	cfg     Config
	origins map[string]struct{}

	mu       sync.Mutex
	window   *spendWindow
	open     map[string]struct{} // markets with an open trade (synced from the ledger)
	reserved map[string]struct{} // markets admitted this cycle, order in flight

	now func() time.Time
}

// New builds a Gate from config.
func New(cfg Config) *Gate {
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[normalizeOrigin(o)] = struct{}{}
	}
	return &Gate{
		cfg:      cfg,
		origins:  origins,
		window:   newSpendWindow(cfg.SpendWindow, 0),
		open:     make(map[string]struct{}),
		reserved: make(map[string]struct{}),
		now:      time.Now,
	}
}

// CheckOrigin verifies the execution target against the allow-list. This
// cannot be bypassed by configuration drift, only an allow-list edit at
// deploy time changes the answer.
func (g *Gate) CheckOrigin(target string) error {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("risk.CheckOrigin: unparseable target %q", target)
	}
	origin := u.Scheme + "://" + u.Host
	if _, ok := g.origins[origin]; !ok {
		return fmt.Errorf("risk.CheckOrigin: origin %q not in allow-list", origin)
	}
	return nil
}

// Admit runs the exposure and spend checks and, when both pass, commits the
// spend and reserves the market in a single atomic step. target is the venue
// base URL the order would go to.
func (g *Gate) Admit(marketID, target string, stake decimal.Decimal) Result {
	if err := g.CheckOrigin(target); err != nil {
		return Result{Reason: domain.RejectEnvironment}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Exposure: at most one open order per market, bounded total count.
	if _, dup := g.open[marketID]; dup {
		return Result{Reason: domain.RejectExposure}
	}
	if _, dup := g.reserved[marketID]; dup {
		return Result{Reason: domain.RejectExposure}
	}
	if len(g.open)+len(g.reserved) >= g.cfg.MaxOpenTrades {
		return Result{Reason: domain.RejectExposure}
	}

	now := g.now()
	g.window.prune(now)
	if g.window.sum().Add(stake).GreaterThan(g.cfg.SpendCap) {
		wait := g.window.oldestExpiry(now)
		return Result{Reason: domain.RejectSpendCap, WaitMS: wait.Milliseconds()}
	}
	if !g.window.push(now, stake) {
		// ring full: fail closed rather than lose track of a spend
		return Result{Reason: domain.RejectSpendCap, WaitMS: g.window.oldestExpiry(now).Milliseconds()}
	}

	g.reserved[marketID] = struct{}{}
	return Result{OK: true}
}

// Confirm promotes a reservation to an open position after the venue
// acknowledged the order.
func (g *Gate) Confirm(marketID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reserved, marketID)
	g.open[marketID] = struct{}{}
}

// Refund releases a reservation and returns the stake to the window. Only
// for definitive venue rejections, where the money provably never left.
// Timed-out orders must NOT be refunded: their state is unknown and the
// reservation stands until reconciliation.
func (g *Gate) Refund(marketID string, stake decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reserved, marketID)
	g.window.refund(stake)
}

// SyncOpenTrades replaces the open-market set from the ledger. Called at the
// start of each cycle; this is how timed-out orders get reconciled before
// any new order for the same market is allowed.
func (g *Gate) SyncOpenTrades(marketIDs []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = make(map[string]struct{}, len(marketIDs))
	for _, id := range marketIDs {
		g.open[id] = struct{}{}
	}
	// Reservations carried across cycles belong to in-flight or unresolved
	// orders; keep them unless the ledger now owns the market.
	for id := range g.reserved {
		if _, ok := g.open[id]; ok {
			delete(g.reserved, id)
		}
	}
}

// PendingSpend returns the in-window total. Read-only; never mutates.
func (g *Gate) PendingSpend() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window.prune(g.now())
	return g.window.sum()
}

func normalizeOrigin(o string) string {
	u, err := url.Parse(o)
	if err != nil || u.Scheme == "" {
		return o
	}
	return u.Scheme + "://" + u.Host
}
