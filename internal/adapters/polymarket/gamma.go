package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

const (
	gammaEventsPath  = "/events"
	gammaMarketsPath = "/markets"

	gammaPageSize   = 100
	gammaBatchMax   = 20
	maxEventsPerTag = 500 // tope de paginación por tag
)

// FetchMarkets devuelve los mercados binarios Yes/No de los eventos activos
// del tag dado. Pagina /events hasta agotar resultados o llegar al tope.
func (c *Client) FetchMarkets(ctx context.Context, tag string) ([]domain.Market, error) {
	var markets []domain.Market

	for offset := 0; offset < maxEventsPerTag; offset += gammaPageSize {
		endpoint := fmt.Sprintf("%s%s?tag_slug=%s&active=true&closed=false&limit=%d&offset=%d",
			c.gammaBase, gammaEventsPath, url.QueryEscape(tag), gammaPageSize, offset)

		var page gammaEventsResponse
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("polymarket.FetchMarkets: tag %s: %w", tag, err)
		}

		for _, ev := range page {
			for _, gm := range ev.Markets {
				if m, ok := mapGammaMarket(gm, ev.EndDate); ok {
					markets = append(markets, m)
				}
			}
		}

		if len(page) < gammaPageSize {
			break
		}
	}

	slog.Debug("gamma events fetched", "tag", tag, "markets", len(markets))
	return markets, nil
}

// FetchSnapshots obtiene el precio actual de los mercados pedidos, agrupando
// los ids en batches. Los mercados sin precios binarios se omiten.
func (c *Client) FetchSnapshots(ctx context.Context, marketIDs []string) ([]domain.Snapshot, error) {
	takenAt := time.Now().UTC()
	var snaps []domain.Snapshot

	for i := 0; i < len(marketIDs); i += gammaBatchMax {
		end := i + gammaBatchMax
		if end > len(marketIDs) {
			end = len(marketIDs)
		}
		batch := marketIDs[i:end]

		endpoint := fmt.Sprintf("%s%s?condition_ids=%s&limit=%d",
			c.gammaBase, gammaMarketsPath, strings.Join(batch, ","), gammaBatchMax)

		var resp gammaMarketsResponse
		if err := c.get(ctx, endpoint, &resp); err != nil {
			return nil, fmt.Errorf("polymarket.FetchSnapshots: batch %d-%d: %w", i, end, err)
		}

		for _, gm := range resp {
			if snap, ok := mapGammaSnapshot(gm, takenAt); ok {
				snaps = append(snaps, snap)
			}
		}
	}

	return snaps, nil
}
