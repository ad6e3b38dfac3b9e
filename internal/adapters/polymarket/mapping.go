package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// mapGammaMarket convierte un gammaMarket a domain.Market. Devuelve ok=false
// si el mercado no es binario Yes/No con dos precios, que es lo único que
// este sistema rastrea.
func mapGammaMarket(gm gammaMarket, eventEndDate string) (domain.Market, bool) {
	if gm.ConditionID == "" {
		return domain.Market{}, false
	}

	outcomes := decodeStringList(gm.Outcomes)
	prices := decodeFloatList(gm.OutcomePrices)
	if !isBinaryYesNo(outcomes, prices) {
		return domain.Market{}, false
	}

	m := domain.Market{
		ID:       gm.ConditionID,
		Question: gm.Question,
		Slug:     gm.Slug,
		Active:   gm.Active,
		Closed:   gm.Closed,
	}
	if v, err := gm.Volume24h.Float64(); err == nil {
		m.Volume24h = v
	}
	if v, err := gm.Liquidity.Float64(); err == nil {
		m.Liquidity = v
	}

	// End date: preferimos la del mercado, con la del evento como fallback
	endDate := gm.EndDate
	if endDate == "" {
		endDate = gm.EndDateISO
	}
	if endDate == "" {
		endDate = eventEndDate
	}
	m.EndDate = parseEndDate(endDate)

	return m, true
}

// mapGammaSnapshot extrae el par de precios (YES, NO) de un gammaMarket.
// ok=false si el mercado no trae dos outcomes Yes/No con precios.
func mapGammaSnapshot(gm gammaMarket, takenAt time.Time) (domain.Snapshot, bool) {
	if gm.ConditionID == "" {
		return domain.Snapshot{}, false
	}
	outcomes := decodeStringList(gm.Outcomes)
	prices := decodeFloatList(gm.OutcomePrices)
	if !isBinaryYesNo(outcomes, prices) {
		return domain.Snapshot{}, false
	}
	yes, no := normalizeYesNo(outcomes, prices)
	return domain.Snapshot{
		MarketID: gm.ConditionID,
		TakenAt:  takenAt,
		Prices:   domain.PricePoint{Yes: yes, No: no},
	}, true
}

// isBinaryYesNo comprueba que el mercado tiene exactamente los outcomes
// Yes y No (en cualquier orden) con un precio por outcome.
func isBinaryYesNo(outcomes []string, prices []float64) bool {
	if len(outcomes) != 2 || len(prices) != 2 {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(outcomes[0]))
	b := strings.ToLower(strings.TrimSpace(outcomes[1]))
	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}

// normalizeYesNo devuelve (yes, no) sin importar el orden del API.
func normalizeYesNo(outcomes []string, prices []float64) (float64, float64) {
	if strings.ToLower(strings.TrimSpace(outcomes[0])) == "yes" {
		return prices[0], prices[1]
	}
	return prices[1], prices[0]
}

// decodeStringList acepta tanto un array JSON como un string que contiene
// un array JSON serializado, que es como Gamma devuelve outcomes.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return nil
	}
	return out
}

// decodeFloatList decodifica outcomePrices: los elementos pueden ser
// números o strings ("0.45"), y el array entero puede venir serializado.
func decodeFloatList(raw json.RawMessage) []float64 {
	if len(raw) == 0 {
		return nil
	}
	if items := decodeStringList(raw); items != nil {
		out := make([]float64, 0, len(items))
		for _, s := range items {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	var direct []float64
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		var out []float64
		if err := json.Unmarshal([]byte(encoded), &out); err == nil {
			return out
		}
	}
	return nil
}

// parseEndDate intenta los formatos de fecha que usa Polymarket.
func parseEndDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
