package kalshi

import (
	"sort"

	"github.com/prognohq/alphabot/internal/domain"
	"github.com/prognohq/alphabot/internal/ports"
)

// mapOrderBook converts the venue book to the domain shape. The venue lists
// resting bids per side; an ask on one side is the complement of the other
// side's bid (a yes ask at p is a no bid at 100-p).
func mapOrderBook(marketID string, resp orderBookResponse) domain.OrderBook {
	yesBids := mapLevels(resp.OrderBook.Yes, true)
	noBids := mapLevels(resp.OrderBook.No, true)

	return domain.OrderBook{
		MarketID: marketID,
		Yes: domain.BookSide{
			Bids: yesBids,
			Asks: complementLevels(noBids),
		},
		No: domain.BookSide{
			Bids: noBids,
			Asks: complementLevels(yesBids),
		},
	}
}

// mapLevels converts [price, contracts] pairs, dropping malformed levels.
func mapLevels(raw [][2]int, descending bool) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, pair := range raw {
		price, contracts := pair[0], pair[1]
		if price <= 0 || price >= 100 || contracts <= 0 {
			continue
		}
		levels = append(levels, domain.BookLevel{PriceCents: price, Contracts: contracts})
	}
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].PriceCents > levels[j].PriceCents
		}
		return levels[i].PriceCents < levels[j].PriceCents
	})
	return levels
}

// complementLevels derives one side's asks from the other side's bids,
// ordered best (lowest) first.
func complementLevels(bids []domain.BookLevel) []domain.BookLevel {
	asks := make([]domain.BookLevel, 0, len(bids))
	for _, b := range bids {
		asks = append(asks, domain.BookLevel{PriceCents: 100 - b.PriceCents, Contracts: b.Contracts})
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].PriceCents < asks[j].PriceCents })
	return asks
}

// mapSettlement converts a market status payload to the domain settlement.
func mapSettlement(resp marketResponse) ports.Settlement {
	s := ports.Settlement{MarketID: resp.Market.Ticker}
	if resp.Market.Status != "settled" {
		return s
	}
	s.Resolved = true
	if resp.Market.Result == "yes" {
		s.Winner = domain.SideYes
	} else {
		s.Winner = domain.SideNo
	}
	return s
}
