package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prognohq/alphabot/internal/domain"
)

func sampleDecisions() []domain.Decision {
	return []domain.Decision{
		{
			MarketID: "KXNFL-KC", Side: domain.SideYes,
			FairProb: 0.62, Edge: 0.04, Confidence: 92,
			Stake:       decimal.New(5, 0),
			Rationale:   []string{"reverse line movement"},
			Disposition: domain.DispositionAccepted,
			DecidedAt:   time.Now(),
		},
		{
			MarketID: "KXNFL-PHI", Side: domain.SideNo,
			FairProb: 0.51, Edge: 0.01, Confidence: 45,
			Stake:       decimal.New(5, 0),
			Disposition: domain.DispositionRejected,
			Reason:      domain.RejectNoEdge,
			DecidedAt:   time.Now(),
		},
		{
			MarketID: "KXNFL-DAL", Side: domain.SideYes,
			FairProb: 0.58, Edge: 0.03, Confidence: 80,
			Stake:       decimal.New(5, 0),
			Disposition: domain.DispositionRejected,
			Reason:      domain.RejectSpendCap,
			WaitMS:      45000,
			DecidedAt:   time.Now(),
		},
	}
}

func TestConsoleReport_Compact(t *testing.T) {
	var out strings.Builder
	c := NewConsoleWriter(&out, false)

	err := c.Report(context.Background(), sampleDecisions(), domain.LedgerStats{
		OpenTrades: 2, TotalPnL: decimal.New(312, -2),
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "placed:1")
	assert.Contains(t, got, "rejected:2")
	assert.Contains(t, got, "KXNFL-KC")
	assert.NotContains(t, got, "KXNFL-PHI", "compact view only lists placed picks")
}

func TestConsoleReport_Table(t *testing.T) {
	var out strings.Builder
	c := NewConsoleWriter(&out, true)

	err := c.Report(context.Background(), sampleDecisions(), domain.LedgerStats{
		TotalTrades: 5, OpenTrades: 2, Wins: 2, Losses: 1, WinRate: 2.0 / 3.0,
		TotalPnL: decimal.New(-176, -2), AvgConfWinners: 88, AvgConfLosers: 61,
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "PLACED")
	assert.Contains(t, got, "SKIP")
	assert.Contains(t, got, "reverse line movement")
	assert.Contains(t, got, "retry in 45s")
	assert.Contains(t, got, "PnL $-1.76")
	assert.Contains(t, got, "winners 88.0")
}

func TestConsoleReport_Empty(t *testing.T) {
	var out strings.Builder
	c := NewConsoleWriter(&out, true)

	err := c.Report(context.Background(), nil, domain.LedgerStats{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "no markets evaluated")
}
