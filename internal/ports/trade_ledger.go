package ports

import (
	"context"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// TradeLedger is the append-only store of trade events. Events are never
// updated or deleted; every read model replays the full history.
type TradeLedger interface {
	Append(ctx context.Context, event domain.TradeEvent) error

	// List returns events in ledger order: created_at ascending with
	// insertion order breaking ties. marketID "" returns the whole ledger.
	List(ctx context.Context, marketID string) ([]domain.TradeEvent, error)

	// ListByCorrelation returns the events originated by one recurring
	// order, in ledger order.
	ListByCorrelation(ctx context.Context, correlationID string) ([]domain.TradeEvent, error)
}
