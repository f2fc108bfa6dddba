package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/prognohq/alphabot/internal/domain"
)

// Console implements ports.Reporter, printing a cycle summary to stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a reporter that writes to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a reporter for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Report prints the cycle's decisions and running ledger stats.
func (c *Console) Report(_ context.Context, decisions []domain.Decision, stats domain.LedgerStats) error {
	if len(decisions) == 0 {
		fmt.Fprintf(c.out, "[%s] no markets evaluated\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(decisions, stats)
	} else {
		c.printCompact(decisions, stats)
	}
	return nil
}

// printCompact prints the essentials on one line.
func (c *Console) printCompact(decisions []domain.Decision, stats domain.LedgerStats) {
	now := time.Now().Format("15:04:05")
	accepted, rejected := countDispositions(decisions)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts → placed:%d rejected:%d | open:%d pnl:$%s",
		now, len(decisions), accepted, rejected, stats.OpenTrades, stats.TotalPnL.StringFixed(2))

	shown := 0
	for _, d := range decisions {
		if !d.Accepted() || shown >= 4 {
			continue
		}
		fmt.Fprintf(&sb, " | %s %s conf:%.0f edge:%+.3f $%s",
			d.MarketID, d.Side, d.Confidence, d.Edge, d.Stake.StringFixed(2))
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull prints the decision table plus the ledger summary.
func (c *Console) printFull(decisions []domain.Decision, stats domain.LedgerStats) {
	now := time.Now().Format("15:04:05")
	accepted, rejected := countDispositions(decisions)

	fmt.Fprintf(c.out, "\n[%s] %d markets | placed:%d rejected:%d\n",
		now, len(decisions), accepted, rejected)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Side", "Fair", "Edge", "Conf", "Stake", "Verdict", "Why")

	for i, d := range decisions {
		verdict := "PLACED"
		why := strings.Join(d.Rationale, "; ")
		if !d.Accepted() {
			verdict = "SKIP"
			why = d.Reason
			if d.Reason == domain.RejectSpendCap && d.WaitMS > 0 {
				why = fmt.Sprintf("%s (retry in %ds)", d.Reason, d.WaitMS/1000)
			}
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			d.MarketID,
			string(d.Side),
			fmt.Sprintf("%.3f", d.FairProb),
			fmt.Sprintf("%+.3f", d.Edge),
			fmt.Sprintf("%.0f", d.Confidence),
			"$"+d.Stake.StringFixed(2),
			verdict,
			truncate(why, 40),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "\n  Ledger: %d trades (%d open) | W/L %d/%d (%.0f%%) | PnL $%s\n",
		stats.TotalTrades, stats.OpenTrades, stats.Wins, stats.Losses,
		stats.WinRate*100, stats.TotalPnL.StringFixed(2))
	if stats.Wins > 0 || stats.Losses > 0 {
		fmt.Fprintf(c.out, "  Avg confidence: winners %.1f | losers %.1f\n",
			stats.AvgConfWinners, stats.AvgConfLosers)
	}
	fmt.Fprintln(c.out)
}

func countDispositions(decisions []domain.Decision) (accepted, rejected int) {
	for _, d := range decisions {
		if d.Accepted() {
			accepted++
		} else {
			rejected++
		}
	}
	return
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
