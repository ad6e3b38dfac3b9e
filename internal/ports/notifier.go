package ports

import (
	"context"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// Notifier presenta el estado del portafolio al usuario.
// En la implementación de consola, imprime tablas formateadas.
type Notifier interface {
	// NotifyPositions muestra las posiciones abiertas y el resumen total.
	NotifyPositions(ctx context.Context, positions []domain.Position, summary domain.PortfolioSummary) error

	// NotifyTrades muestra el historial de operaciones, más recientes primero.
	NotifyTrades(ctx context.Context, events []domain.TradeEvent) error

	// NotifyCurve muestra la curva de equity diaria y las estadísticas.
	NotifyCurve(ctx context.Context, points []domain.EquityCurvePoint, stats domain.PortfolioStats) error

	// NotifyRecurring muestra las órdenes recurrentes registradas.
	NotifyRecurring(ctx context.Context, orders []domain.RecurringOrder) error

	// NotifyRecurringAnalytics muestra el detalle de una orden recurrente.
	NotifyRecurringAnalytics(ctx context.Context, analytics domain.RecurringAnalytics) error
}
