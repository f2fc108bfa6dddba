package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a ledger record.
type TradeStatus string

const (
	TradeOpen    TradeStatus = "open"
	TradeWon     TradeStatus = "won"
	TradeLost    TradeStatus = "lost"
	TradePending TradeStatus = "pending" // venue-side state unknown, awaiting reconciliation
	TradeVoid    TradeStatus = "void"    // pending order whose market resolved without a confirmed fill
)

// Terminal reports whether the status admits no further transition.
func (s TradeStatus) Terminal() bool {
	return s == TradeWon || s == TradeLost || s == TradeVoid
}

// Trade is the ledger record created when the venue accepts an order.
// After creation it is append-only except for the single terminal
// transition performed by the settlement poller.
type Trade struct {
	ID              string // local uuid
	MarketID        string
	Side            Side
	EntryPriceCents int
	Contracts       int
	Stake           decimal.Decimal // entry cost in currency units
	Confidence      float64         // at entry
	Edge            float64         // at entry
	Status          TradeStatus
	ExitPriceCents  int
	PnL             decimal.Decimal
	OpenedAt        time.Time
	ClosedAt        *time.Time
}

// EntryCost returns contracts times entry price as a currency amount.
func (t Trade) EntryCost() decimal.Decimal {
	return decimal.New(int64(t.Contracts*t.EntryPriceCents), -2)
}

// SettlementPnL computes realized P&L for a resolution: payout minus entry
// cost. A winning contract pays out 100 cents.
func (t Trade) SettlementPnL(won bool) decimal.Decimal {
	if !won {
		return t.EntryCost().Neg()
	}
	payout := decimal.New(int64(t.Contracts*100), -2)
	return payout.Sub(t.EntryCost())
}

// ContractsForStake converts a currency stake into whole contracts at the
// given entry price. Returns 0 when the price is outside (0, 100).
func ContractsForStake(stake decimal.Decimal, priceCents int) int {
	if priceCents <= 0 || priceCents >= 100 {
		return 0
	}
	cents := stake.Mul(decimal.New(100, 0))
	return int(cents.Div(decimal.New(int64(priceCents), 0)).IntPart())
}

// LedgerStats is the read-side aggregate over the trade log.
type LedgerStats struct {
	TotalTrades    int
	OpenTrades     int
	Wins           int
	Losses         int
	TotalPnL       decimal.Decimal
	WinRate        float64
	AvgConfWinners float64
	AvgConfLosers  float64
}
