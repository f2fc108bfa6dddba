package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/prognohq/alphabot/internal/domain"
	"github.com/prognohq/alphabot/internal/ports"
)

// Poller reconciles open trades against venue resolutions. It performs the
// ledger's single terminal transition and back-fills the would-have-won
// flag on rejected candidates for the same market. Pending trades, whose
// venue-side fill was never confirmed, are voided at resolution rather than
// settled: no P&L is realized for a position that may not exist.
type Poller struct {
	venue  ports.SettlementProvider
	ledger ports.LedgerStore
	now    func() time.Time
}

// NewPoller wires the settlement dependencies.
func NewPoller(venue ports.SettlementProvider, ledger ports.LedgerStore) *Poller {
	return &Poller{venue: venue, ledger: ledger, now: time.Now}
}

// Poll walks every unresolved trade once. Individual market failures are
// logged and skipped so one flaky read never stalls the rest; settlement is
// idempotent, the next poll picks up whatever this one missed.
func (p *Poller) Poll(ctx context.Context) error {
	open, err := p.ledger.GetOpenTrades(ctx)
	if err != nil {
		return err
	}

	settled := 0
	for _, trade := range open {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s, err := p.venue.FetchSettlement(ctx, trade.MarketID)
		if err != nil {
			slog.Warn("settlement read failed", "market", trade.MarketID, "error", err)
			continue
		}
		if !s.Resolved {
			continue
		}

		status := domain.TradeLost
		exitCents := 0
		if s.Winner == trade.Side {
			status = domain.TradeWon
			exitCents = 100
		}
		if trade.Status == domain.TradePending {
			// the fill was never confirmed, so there is no position to
			// realize; void the row instead of booking a result
			status = domain.TradeVoid
		}

		if err := p.ledger.SettleTrade(ctx, trade.ID, status, exitCents, p.now()); err != nil {
			slog.Error("settlement not persisted", "trade", trade.ID, "error", err)
			continue
		}
		if err := p.ledger.MarkRejectedOutcome(ctx, trade.MarketID, s.Winner); err != nil {
			slog.Warn("rejected-outcome backfill failed", "market", trade.MarketID, "error", err)
		}

		settled++
		slog.Info("trade settled",
			"trade", trade.ID, "market", trade.MarketID,
			"status", status, "pnl_basis", trade.Stake.StringFixed(2))
	}

	p.backfillRejected(ctx, open)

	if settled > 0 {
		slog.Info("settlement pass complete", "checked", len(open), "settled", settled)
	}
	return nil
}

// backfillRejected resolves would-have-won for rejected picks on markets we
// never traded. Markets already covered by the open-trade walk are skipped.
func (p *Poller) backfillRejected(ctx context.Context, open []domain.Trade) {
	markets, err := p.ledger.UnresolvedRejectedMarkets(ctx)
	if err != nil {
		slog.Warn("unresolved rejected markets unavailable", "error", err)
		return
	}

	traded := make(map[string]struct{}, len(open))
	for _, t := range open {
		traded[t.MarketID] = struct{}{}
	}

	for _, marketID := range markets {
		if ctx.Err() != nil {
			return
		}
		if _, ok := traded[marketID]; ok {
			continue
		}

		s, err := p.venue.FetchSettlement(ctx, marketID)
		if err != nil {
			slog.Warn("settlement read failed", "market", marketID, "error", err)
			continue
		}
		if !s.Resolved {
			continue
		}
		if err := p.ledger.MarkRejectedOutcome(ctx, marketID, s.Winner); err != nil {
			slog.Warn("rejected-outcome backfill failed", "market", marketID, "error", err)
		}
	}
}
