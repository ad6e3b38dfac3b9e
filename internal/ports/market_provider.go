package ports

import (
	"context"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// MarketProvider es la fuente remota de mercados y precios (la API Gamma
// de Polymarket en producción). El collector lo consume para poblar el
// catálogo y la serie de precios.
type MarketProvider interface {
	// FetchMarkets devuelve los mercados binarios YES/NO activos del tag
	// dado. Pagina automáticamente hasta agotar resultados.
	FetchMarkets(ctx context.Context, tag string) ([]domain.Market, error)

	// FetchSnapshots devuelve un snapshot de precios por mercado pedido.
	// Internamente agrupa los IDs en batches para minimizar requests; los
	// mercados sin precios disponibles se omiten del resultado.
	FetchSnapshots(ctx context.Context, marketIDs []string) ([]domain.Snapshot, error)
}
