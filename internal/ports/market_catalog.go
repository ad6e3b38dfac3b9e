package ports

import (
	"context"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// MarketCatalog guarda la metadata de los mercados rastreados. Solo sirve
// para enriquecer vistas (pregunta, estado de cierre) y para decidir qué
// snapshotear; nunca entra en los cálculos de P&L.
type MarketCatalog interface {
	// Upsert inserta o actualiza mercados conservando FirstSeen.
	Upsert(ctx context.Context, markets []domain.Market) error

	// Get devuelve un mercado por id, domain.ErrNotFound si no existe.
	Get(ctx context.Context, marketID string) (domain.Market, error)

	// GetBatch resuelve varios mercados de una vez; los desconocidos se
	// omiten del resultado.
	GetBatch(ctx context.Context, marketIDs []string) (map[string]domain.Market, error)

	// ListTracked devuelve los mercados activos y no cerrados que el
	// collector debe snapshotear en cada ciclo.
	ListTracked(ctx context.Context) ([]domain.Market, error)
}
