package domain

import "time"

// Market representa un mercado de predicción binario rastreado en el
// catálogo. Sus campos solo sirven para filtrar y mostrar; el P&L depende
// únicamente del ledger y de la serie de snapshots.
type Market struct {
	ID        string    `json:"market_id"` // condition id de Polymarket
	Question  string    `json:"question"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	Closed    bool      `json:"closed"`
	EndDate   time.Time `json:"end_date"` // fecha de resolución, puede faltar
	Volume24h float64   `json:"volume_24h"`
	Liquidity float64   `json:"liquidity"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// PricePoint es el par de precios observado (YES, NO), ambos en [0,1].
type PricePoint struct {
	Yes float64 `json:"yes_price"`
	No  float64 `json:"no_price"`
}

// ForSide devuelve el precio del lado pedido.
func (p PricePoint) ForSide(s Side) float64 {
	if s == SideNo {
		return p.No
	}
	return p.Yes
}

// Snapshot es una observación de precios de un mercado en un instante.
// La serie puede tener huecos; no hay garantía de un punto por día.
type Snapshot struct {
	MarketID string     `json:"market_id"`
	TakenAt  time.Time  `json:"timestamp_utc"`
	Prices   PricePoint `json:"prices"`
}

// Day devuelve la fecha calendario UTC (YYYY-MM-DD) del snapshot.
func (s Snapshot) Day() string {
	return DayOf(s.TakenAt)
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres.
// Si está vacía usa los primeros caracteres del market id como fallback.
func TruncateQuestion(question, marketID string, maxLen int) string {
	q := question
	if q == "" {
		if len(marketID) > 20 {
			q = marketID[:20] + "..."
		} else {
			q = marketID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
