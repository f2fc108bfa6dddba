package storage

// sqlite.go: the trade ledger on disk.
//
// Two tables:
//   - `trades`: one row per venue-accepted order. Append-only except for the
//     single terminal transition written by the settlement poller: open →
//     won|lost, or pending → void when the fill was never confirmed.
//     SettleTrade guards the transition in SQL so a second poll of the same
//     market is a no-op, not a double write.
//   - `rejected_candidates`: one row per rejected pick, for retrospective
//     analysis. `would_have_won` is back-filled when the market resolves.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/prognohq/alphabot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id                TEXT PRIMARY KEY,
    market_id         TEXT    NOT NULL,
    side              TEXT    NOT NULL,
    entry_price_cents INTEGER NOT NULL,
    contracts         INTEGER NOT NULL,
    stake             TEXT    NOT NULL,
    confidence        REAL    NOT NULL DEFAULT 0,
    edge              REAL    NOT NULL DEFAULT 0,
    status            TEXT    NOT NULL DEFAULT 'open',
    exit_price_cents  INTEGER NOT NULL DEFAULT 0,
    pnl               TEXT    NOT NULL DEFAULT '0',
    opened_at         DATETIME NOT NULL,
    closed_at         DATETIME
);

CREATE TABLE IF NOT EXISTS rejected_candidates (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id      TEXT NOT NULL,
    side           TEXT NOT NULL,
    reason         TEXT NOT NULL,
    confidence     REAL NOT NULL DEFAULT 0,
    edge           REAL NOT NULL DEFAULT 0,
    rejected_at    DATETIME NOT NULL,
    would_have_won INTEGER
);

CREATE INDEX IF NOT EXISTS idx_trades_status   ON trades(status);
CREATE INDEX IF NOT EXISTS idx_trades_market   ON trades(market_id);
CREATE INDEX IF NOT EXISTS idx_rejected_market ON rejected_candidates(market_id);
`

// rejected candidates only matter for recent retrospectives
const retentionRejected = 30 * 24 * time.Hour

// Ledger implements ports.LedgerStore on SQLite (pure Go, no CGo).
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (or creates) the database at the given DSN, applies the
// schema and prunes old rejected candidates.
func NewLedger(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewLedger: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewLedger: apply schema: %w", err)
	}

	l := &Ledger{db: db}
	l.pruneOld(context.Background())
	return l, nil
}

// SaveTrade appends a new ledger record.
func (l *Ledger) SaveTrade(ctx context.Context, t domain.Trade) error {
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO trades
			(id, market_id, side, entry_price_cents, contracts, stake,
			 confidence, edge, status, pnl, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MarketID, string(t.Side), t.EntryPriceCents, t.Contracts,
		t.Stake.String(), t.Confidence, t.Edge, string(t.Status),
		t.PnL.String(), t.OpenedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveTrade %s: %w", t.ID, err)
	}
	return nil
}

// SettleTrade performs the terminal transition open → won|lost. The status
// guard in the WHERE clause makes a repeat settlement a no-op.
func (l *Ledger) SettleTrade(ctx context.Context, tradeID string, status domain.TradeStatus, exitPriceCents int, closedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("storage.SettleTrade %s: %q is not a terminal status", tradeID, status)
	}

	t, err := l.getTrade(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("storage.SettleTrade %s: %w", tradeID, err)
	}

	// A void settlement closes the row without P&L: the fill was never
	// confirmed, so there is no position to realize against.
	pnl := decimal.Zero
	if status != domain.TradeVoid {
		pnl = t.SettlementPnL(status == domain.TradeWon)
	}

	if _, err := l.db.ExecContext(ctx, `
		UPDATE trades
		SET status = ?, exit_price_cents = ?, pnl = ?, closed_at = ?
		WHERE id = ? AND status NOT IN ('won', 'lost', 'void')`,
		string(status), exitPriceCents, pnl.String(), closedAt.UTC(), tradeID,
	); err != nil {
		return fmt.Errorf("storage.SettleTrade %s: %w", tradeID, err)
	}
	return nil
}

// GetOpenTrades returns every trade still awaiting resolution, including
// pending ones whose venue-side state is unknown.
func (l *Ledger) GetOpenTrades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, market_id, side, entry_price_cents, contracts, stake,
		       confidence, edge, status, exit_price_cents, pnl, opened_at, closed_at
		FROM trades
		WHERE status NOT IN ('won', 'lost', 'void')
		ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetOpenTrades: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveRejected appends a rejected candidate.
func (l *Ledger) SaveRejected(ctx context.Context, rc domain.RejectedCandidate) error {
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO rejected_candidates
			(market_id, side, reason, confidence, edge, rejected_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rc.MarketID, string(rc.Side), rc.Reason, rc.Confidence, rc.Edge,
		rc.RejectedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveRejected %s: %w", rc.MarketID, err)
	}
	return nil
}

// MarkRejectedOutcome back-fills would_have_won for every unresolved
// rejected pick on the market: the pick would have won when it was on the
// winning side.
func (l *Ledger) MarkRejectedOutcome(ctx context.Context, marketID string, winner domain.Side) error {
	if _, err := l.db.ExecContext(ctx, `
		UPDATE rejected_candidates
		SET would_have_won = (side = ?)
		WHERE market_id = ? AND would_have_won IS NULL`,
		string(winner), marketID,
	); err != nil {
		return fmt.Errorf("storage.MarkRejectedOutcome %s: %w", marketID, err)
	}
	return nil
}

// UnresolvedRejectedMarkets lists markets whose rejected picks still await
// their outcome back-fill.
func (l *Ledger) UnresolvedRejectedMarkets(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT DISTINCT market_id FROM rejected_candidates
		WHERE would_have_won IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("storage.UnresolvedRejectedMarkets: query: %w", err)
	}
	defer rows.Close()

	var markets []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.UnresolvedRejectedMarkets: scan: %w", err)
		}
		markets = append(markets, id)
	}
	return markets, rows.Err()
}

// Stats computes the read-side aggregates over the ledger.
func (l *Ledger) Stats(ctx context.Context) (domain.LedgerStats, error) {
	var stats domain.LedgerStats
	var totalPnL string
	var avgWin, avgLoss sql.NullFloat64

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(status NOT IN ('won', 'lost', 'void')), 0),
		       COALESCE(SUM(status = 'won'), 0),
		       COALESCE(SUM(status = 'lost'), 0),
		       COALESCE(SUM(CAST(pnl AS REAL)), 0),
		       AVG(CASE WHEN status = 'won'  THEN confidence END),
		       AVG(CASE WHEN status = 'lost' THEN confidence END)
		FROM trades`).Scan(
		&stats.TotalTrades, &stats.OpenTrades, &stats.Wins, &stats.Losses,
		&totalPnL, &avgWin, &avgLoss,
	)
	if err != nil {
		return domain.LedgerStats{}, fmt.Errorf("storage.Stats: %w", err)
	}

	// SUM over pnl goes through REAL for the aggregate; re-parse into
	// decimal rounded to cents so display math stays exact.
	pnl, err := decimal.NewFromString(totalPnL)
	if err != nil {
		pnl = decimal.Zero
	}
	stats.TotalPnL = pnl.Round(2)

	if settled := stats.Wins + stats.Losses; settled > 0 {
		stats.WinRate = float64(stats.Wins) / float64(settled)
	}
	stats.AvgConfWinners = avgWin.Float64
	stats.AvgConfLosers = avgLoss.Float64
	return stats, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// --- internal helpers ---

func (l *Ledger) getTrade(ctx context.Context, tradeID string) (domain.Trade, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, market_id, side, entry_price_cents, contracts, stake,
		       confidence, edge, status, exit_price_cents, pnl, opened_at, closed_at
		FROM trades WHERE id = ?`, tradeID)
	return scanTrade(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (domain.Trade, error) {
	var t domain.Trade
	var side, status, stake, pnl string
	var openedAt time.Time
	var closedAt sql.NullTime

	if err := row.Scan(
		&t.ID, &t.MarketID, &side, &t.EntryPriceCents, &t.Contracts, &stake,
		&t.Confidence, &t.Edge, &status, &t.ExitPriceCents, &pnl,
		&openedAt, &closedAt,
	); err != nil {
		return domain.Trade{}, fmt.Errorf("scan trade: %w", err)
	}

	t.Side = domain.Side(side)
	t.Status = domain.TradeStatus(status)
	t.OpenedAt = openedAt

	var err error
	if t.Stake, err = decimal.NewFromString(stake); err != nil {
		return domain.Trade{}, fmt.Errorf("parse stake %q: %w", stake, err)
	}
	if t.PnL, err = decimal.NewFromString(pnl); err != nil {
		return domain.Trade{}, fmt.Errorf("parse pnl %q: %w", pnl, err)
	}
	if closedAt.Valid {
		at := closedAt.Time
		t.ClosedAt = &at
	}
	return t, nil
}

func (l *Ledger) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRejected)
	l.db.ExecContext(ctx, `DELETE FROM rejected_candidates WHERE rejected_at < ?`, cutoff)
}
