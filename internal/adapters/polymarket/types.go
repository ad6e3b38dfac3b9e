package polymarket

import "encoding/json"

// DTOs raw de la API Gamma. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// gammaEventsResponse es la respuesta de GET /events.
type gammaEventsResponse []gammaEvent

// gammaEvent agrupa mercados bajo un evento (una elección, un partido...).
type gammaEvent struct {
	Slug    string        `json:"slug"`
	EndDate string        `json:"endDate"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarketsResponse es la respuesta de GET /markets.
type gammaMarketsResponse []gammaMarket

// gammaMarket es un mercado tal como lo devuelve Gamma. Outcomes y
// OutcomePrices llegan a veces como array y a veces como string conteniendo
// un array JSON; los numéricos llegan como número o como string. RawMessage
// y json.Number absorben ambas formas.
type gammaMarket struct {
	ConditionID   string          `json:"conditionId"`
	Question      string          `json:"question"`
	Slug          string          `json:"slug"`
	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	EndDate       string          `json:"endDate"`
	EndDateISO    string          `json:"endDateIso"`
	Volume24h     json.Number     `json:"volume24hr"`
	Liquidity     json.Number     `json:"liquidityNum"`
	Active        bool            `json:"active"`
	Closed        bool            `json:"closed"`
}
