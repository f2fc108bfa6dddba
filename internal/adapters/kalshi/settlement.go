package kalshi

import (
	"context"
	"fmt"

	"github.com/prognohq/alphabot/internal/ports"
)

// SettlementReader implements ports.SettlementProvider.
type SettlementReader struct {
	client *Client
}

// NewSettlementReader wraps a Client for settlement polling.
func NewSettlementReader(client *Client) *SettlementReader {
	return &SettlementReader{client: client}
}

// FetchSettlement reads the market's resolution state.
func (r *SettlementReader) FetchSettlement(ctx context.Context, marketID string) (ports.Settlement, error) {
	var resp marketResponse
	path := fmt.Sprintf("/markets/%s", marketID)
	if err := r.client.get(ctx, path, &resp); err != nil {
		return ports.Settlement{}, fmt.Errorf("kalshi.FetchSettlement %s: %w", marketID, err)
	}
	return mapSettlement(resp), nil
}
