// Package engine drives the trading cycle: score every quoted market,
// push survivors through the risk gate, execute admitted picks and record
// everything in the ledger. One cycle produces exactly one Decision per
// input quote.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prognohq/alphabot/internal/application/exec"
	"github.com/prognohq/alphabot/internal/domain"
	"github.com/prognohq/alphabot/internal/domain/signal"
	"github.com/prognohq/alphabot/internal/metrics"
	"github.com/prognohq/alphabot/internal/ports"
	"github.com/prognohq/alphabot/internal/risk"
)

// Config holds the engine's decision thresholds.
type Config struct {
	SpreadProbPerPoint   float64
	StakePerTrade        decimal.Decimal
	MinConfidence        float64 // picks below this never reach the gate
	MinEdge              float64
	HighConfidenceNotify float64
	ExecutionTarget      string // venue base URL, checked against the origin allow-list
}

// Engine wires the scoring pipeline to risk, execution and persistence.
type Engine struct {
	cfg       Config
	gate      *risk.Gate
	exec      *exec.Manager
	ledger    ports.LedgerStore
	detectors []signal.Detector

	notifier ports.Notifier // optional
	reporter ports.Reporter // optional
	metrics  *metrics.Metrics

	// chaosFor resolves the chaos context for a market. Defaults to an
	// empty context (base chaos only) when no resolver is installed.
	chaosFor func(marketID string) domain.ChaosContext

	now func() time.Time
}

// New builds an Engine. notifier and reporter may be nil.
func New(cfg Config, gate *risk.Gate, manager *exec.Manager, ledger ports.LedgerStore, detectors []signal.Detector, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		cfg:       cfg,
		gate:      gate,
		exec:      manager,
		ledger:    ledger,
		detectors: detectors,
		metrics:   m,
		chaosFor:  func(string) domain.ChaosContext { return domain.ChaosContext{} },
		now:       time.Now,
	}
}

// WithNotifier installs the high-confidence push channel.
func (e *Engine) WithNotifier(n ports.Notifier) *Engine {
	e.notifier = n
	return e
}

// WithReporter installs the cycle summary output.
func (e *Engine) WithReporter(r ports.Reporter) *Engine {
	e.reporter = r
	return e
}

// WithChaosResolver installs the per-market chaos context lookup.
func (e *Engine) WithChaosResolver(fn func(marketID string) domain.ChaosContext) *Engine {
	if fn != nil {
		e.chaosFor = fn
	}
	return e
}

// RunCycle evaluates every quote and returns one terminal decision per
// quote, in input order. Scoring runs concurrently; admission and
// execution are serialized behind the risk gate's lock.
func (e *Engine) RunCycle(ctx context.Context, quotes []domain.MarketQuote) []domain.Decision {
	started := e.now()
	defer func() {
		e.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}()

	e.syncExposure(ctx)

	decisions := e.scoreAll(quotes)

	admitted := make([]int, 0, len(decisions))
	for i := range decisions {
		if decisions[i].Disposition != "" {
			continue // already rejected during scoring
		}
		res := e.gate.Admit(decisions[i].MarketID, e.cfg.ExecutionTarget, decisions[i].Stake)
		if !res.OK {
			decisions[i] = decisions[i].Reject(res.Reason)
			decisions[i].WaitMS = res.WaitMS
			if res.Reason == domain.RejectSpendCap {
				e.metrics.SpendRejections.Inc()
			}
			continue
		}
		admitted = append(admitted, i)
	}

	e.execute(ctx, decisions, admitted)

	e.record(ctx, decisions)
	e.finishCycle(ctx, decisions)
	return decisions
}

// scoreAll runs the odds engine and the detectors over every quote
// concurrently. Scoring is pure, so the only shared state is the output
// slice, written at distinct indexes.
func (e *Engine) scoreAll(quotes []domain.MarketQuote) []domain.Decision {
	decisions := make([]domain.Decision, len(quotes))

	var wg sync.WaitGroup
	for i, q := range quotes {
		wg.Add(1)
		go func(i int, q domain.MarketQuote) {
			defer wg.Done()
			decisions[i] = e.score(q)
		}(i, q)
	}
	wg.Wait()
	return decisions
}

// score produces the pre-gate decision for one quote. A malformed quote is
// tagged and rejected here, never panicking the cycle.
func (e *Engine) score(q domain.MarketQuote) domain.Decision {
	prob := domain.ScoreQuote(q, e.cfg.SpreadProbPerPoint)

	d := domain.Decision{
		MarketID:   q.MarketID,
		Side:       prob.Pick,
		FairProb:   prob.Fair,
		Edge:       prob.Edge,
		Stake:      e.cfg.StakePerTrade,
		DecidedAt:  e.now(),
		Confidence: prob.Confidence,
	}

	if prob.Basis == domain.BasisDefault {
		return d.Reject(domain.RejectMalformed)
	}

	confidence, rationale := signal.Apply(prob.Confidence, q, e.chaosFor(q.MarketID), e.detectors)
	d.Confidence = confidence
	d.Rationale = rationale

	if d.Edge < e.cfg.MinEdge || d.Confidence < e.cfg.MinConfidence {
		return d.Reject(domain.RejectNoEdge)
	}
	return d
}

// execute drives admitted decisions to terminal states and settles their
// reservations. A definitive rejection refunds the spend; a timeout never
// does; the money stays committed until the exposure sync learns better.
func (e *Engine) execute(ctx context.Context, decisions []domain.Decision, admitted []int) {
	if len(admitted) == 0 {
		return
	}

	placements := make([]exec.Placement, 0, len(admitted))
	for _, i := range admitted {
		placements = append(placements, exec.Placement{
			MarketID: decisions[i].MarketID,
			Side:     decisions[i].Side,
			Stake:    decisions[i].Stake,
		})
	}

	outcomes := e.exec.Execute(ctx, placements)

	for k, out := range outcomes {
		i := admitted[k]
		switch out.State {
		case exec.StateConfirmed:
			e.gate.Confirm(out.MarketID)
			decisions[i].Disposition = domain.DispositionAccepted
			e.saveTrade(ctx, decisions[i], out, domain.TradeOpen)
		case exec.StateTimedOut:
			// venue-side state unknown: keep the reservation and the
			// spend, park the trade as pending for reconciliation
			decisions[i] = decisions[i].Reject(domain.RejectTimedOut)
			e.saveTrade(ctx, decisions[i], out, domain.TradePending)
		default:
			e.gate.Refund(out.MarketID, decisions[i].Stake)
			reason := domain.RejectVenue
			var stale *domain.StalePriceError
			if errors.As(out.Err, &stale) {
				reason = domain.RejectStalePrice
			}
			decisions[i] = decisions[i].Reject(reason)
			slog.Warn("order rejected",
				"market", out.MarketID, "reason", reason, "error", out.Err)
		}
		e.metrics.Orders.WithLabelValues(string(out.State)).Inc()
	}
}

func (e *Engine) saveTrade(ctx context.Context, d domain.Decision, out exec.Outcome, status domain.TradeStatus) {
	trade := domain.Trade{
		ID:              uuid.NewString(),
		MarketID:        d.MarketID,
		Side:            d.Side,
		EntryPriceCents: out.PriceCents,
		Contracts:       out.Contracts,
		Stake:           d.Stake,
		Confidence:      d.Confidence,
		Edge:            d.Edge,
		Status:          status,
		OpenedAt:        e.now(),
	}
	if err := e.ledger.SaveTrade(ctx, trade); err != nil {
		slog.Error("trade not persisted", "market", d.MarketID, "error", err)
	}
}

// record persists rejected candidates for the retrospective loop.
func (e *Engine) record(ctx context.Context, decisions []domain.Decision) {
	for _, d := range decisions {
		e.metrics.Decisions.WithLabelValues(string(d.Disposition), d.Reason).Inc()
		if d.Accepted() {
			continue
		}
		rc := domain.RejectedCandidate{
			MarketID:   d.MarketID,
			Side:       d.Side,
			Reason:     d.Reason,
			Confidence: d.Confidence,
			Edge:       d.Edge,
			RejectedAt: d.DecidedAt,
		}
		if err := e.ledger.SaveRejected(ctx, rc); err != nil {
			slog.Warn("rejected candidate not persisted", "market", d.MarketID, "error", err)
		}
	}
}

// finishCycle pushes notifications, refreshes gauges and prints the report.
func (e *Engine) finishCycle(ctx context.Context, decisions []domain.Decision) {
	if e.notifier != nil {
		for _, d := range decisions {
			if d.Accepted() && d.Confidence >= e.cfg.HighConfidenceNotify {
				e.notifier.NotifyHighConfidence(ctx, d)
			}
		}
	}

	stats, err := e.ledger.Stats(ctx)
	if err != nil {
		slog.Warn("ledger stats unavailable", "error", err)
		return
	}
	e.metrics.OpenTrades.Set(float64(stats.OpenTrades))
	e.metrics.PnL.Set(stats.TotalPnL.InexactFloat64())

	if e.reporter != nil {
		if err := e.reporter.Report(ctx, decisions, stats); err != nil {
			slog.Warn("cycle report failed", "error", err)
		}
	}
}

// syncExposure rebuilds the gate's open-market view from the ledger. The
// ledger, not cycle memory, is the source of truth for what is at risk.
func (e *Engine) syncExposure(ctx context.Context) {
	open, err := e.ledger.GetOpenTrades(ctx)
	if err != nil {
		slog.Error("exposure sync failed, keeping previous view", "error", err)
		return
	}
	ids := make([]string, 0, len(open))
	for _, t := range open {
		ids = append(ids, t.MarketID)
	}
	e.gate.SyncOpenTrades(ids)
}
