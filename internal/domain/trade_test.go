package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestContractsForStake(t *testing.T) {
	// $5 at 62¢ → 8 whole contracts
	assert.Equal(t, 8, ContractsForStake(decimal.NewFromInt(5), 62))
	assert.Equal(t, 0, ContractsForStake(decimal.NewFromInt(5), 0))
	assert.Equal(t, 0, ContractsForStake(decimal.NewFromInt(5), 100))
}

func TestTrade_SettlementPnL_Win(t *testing.T) {
	tr := Trade{Contracts: 8, EntryPriceCents: 62}
	// payout 8×$1 = $8.00, cost 8×62¢ = $4.96
	assert.True(t, tr.SettlementPnL(true).Equal(decimal.RequireFromString("3.04")))
}

func TestTrade_SettlementPnL_Loss(t *testing.T) {
	tr := Trade{Contracts: 8, EntryPriceCents: 62}
	assert.True(t, tr.SettlementPnL(false).Equal(decimal.RequireFromString("-4.96")))
}

func TestTradeStatus_Terminal(t *testing.T) {
	assert.True(t, TradeWon.Terminal())
	assert.True(t, TradeLost.Terminal())
	assert.True(t, TradeVoid.Terminal())
	assert.False(t, TradeOpen.Terminal())
	assert.False(t, TradePending.Terminal())
}
