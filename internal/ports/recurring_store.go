package ports

import (
	"context"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// RecurringStore persists recurring order subscriptions. The trades an
// order produces live in the TradeLedger, linked by CorrelationID.
type RecurringStore interface {
	CreateOrder(ctx context.Context, order domain.RecurringOrder) error

	// GetOrder returns an order by id, domain.ErrNotFound when unknown.
	GetOrder(ctx context.Context, id string) (domain.RecurringOrder, error)

	// ListOrders returns orders newest first. marketID "" lists all;
	// activeOnly filters out cancelled orders.
	ListOrders(ctx context.Context, marketID string, activeOnly bool) ([]domain.RecurringOrder, error)

	// MarkExecuted records the last executed day (YYYY-MM-DD) and the new
	// cumulative number of trades placed.
	MarkExecuted(ctx context.Context, id string, day string, tradesPlaced int) error

	SetActive(ctx context.Context, id string, active bool) error
}
