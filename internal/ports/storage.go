package ports

import (
	"context"
	"time"

	"github.com/prognohq/alphabot/internal/domain"
)

// LedgerStore persists the trade ledger and the rejected-candidate log.
type LedgerStore interface {
	// SaveTrade appends a new trade record (status open).
	SaveTrade(ctx context.Context, t domain.Trade) error

	// SettleTrade performs the single terminal transition: open → won|lost
	// with exit price and realized P&L, or pending → void with no P&L when
	// the fill was never confirmed. Settling an already-terminal trade is a
	// no-op.
	SettleTrade(ctx context.Context, tradeID string, status domain.TradeStatus, exitPriceCents int, closedAt time.Time) error

	// GetOpenTrades returns all trades still awaiting resolution.
	GetOpenTrades(ctx context.Context) ([]domain.Trade, error)

	// SaveRejected appends a rejected candidate for later analysis.
	SaveRejected(ctx context.Context, rc domain.RejectedCandidate) error

	// MarkRejectedOutcome back-fills whether rejected picks for the market
	// would have won, once the market resolves.
	MarkRejectedOutcome(ctx context.Context, marketID string, winner domain.Side) error

	// UnresolvedRejectedMarkets lists markets with rejected picks still
	// awaiting their outcome back-fill.
	UnresolvedRejectedMarkets(ctx context.Context) ([]string, error)

	// Stats computes the read-side aggregates over the ledger.
	Stats(ctx context.Context) (domain.LedgerStats, error)
}
