package ports

import (
	"context"

	"github.com/prognohq/alphabot/internal/domain"
)

// Notifier pushes high-confidence picks to an external channel.
// Implementations are fire-and-forget: delivery failure is logged and
// swallowed, never surfaced to the trading cycle.
type Notifier interface {
	NotifyHighConfidence(ctx context.Context, d domain.Decision)
}

// Reporter presents a cycle summary to the operator.
type Reporter interface {
	Report(ctx context.Context, decisions []domain.Decision, stats domain.LedgerStats) error
}
