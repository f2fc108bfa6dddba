package kalshi

import (
	"context"
	"log/slog"
	"time"

	"github.com/prognohq/alphabot/internal/domain"
)

// QuoteReader builds scoring snapshots from venue order books. Line and
// public-money data are not part of the venue feed, so quotes produced here
// carry book prices only and the line detectors degrade to no-ops.
type QuoteReader struct {
	books *BookReader
}

// NewQuoteReader wraps a BookReader.
func NewQuoteReader(books *BookReader) *QuoteReader {
	return &QuoteReader{books: books}
}

// Snapshot reads the current book for every market and returns one quote
// per market that had a two-sided book. Markets that fail to read are
// logged and skipped; the cycle runs with whatever quotes it got.
func (r *QuoteReader) Snapshot(ctx context.Context, marketIDs []string) []domain.MarketQuote {
	quotes := make([]domain.MarketQuote, 0, len(marketIDs))
	for _, id := range marketIDs {
		book, err := r.books.FetchOrderBook(ctx, id)
		if err != nil {
			slog.Warn("quote snapshot skipped", "market", id, "error", err)
			continue
		}

		q := domain.MarketQuote{
			MarketID:   id,
			YesBid:     book.Yes.BestBid(),
			YesAsk:     book.Yes.BestAsk(),
			NoBid:      book.No.BestBid(),
			NoAsk:      book.No.BestAsk(),
			CapturedAt: time.Now(),
		}
		quotes = append(quotes, q)
	}
	return quotes
}
