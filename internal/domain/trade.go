package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout es el formato de fecha calendario usado en todo el sistema.
const DateLayout = "2006-01-02"

// DayOf devuelve la fecha calendario UTC (YYYY-MM-DD) de un instante.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Side es el lado de un mercado binario sobre el que se opera.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// ParseSide normaliza la entrada del caller ("yes", "No", " YES ") a Side.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	default:
		return "", fmt.Errorf("domain.ParseSide: side %q: %w", s, ErrInvalidArgument)
	}
}

// Action es el tipo de evento registrado en el ledger.
type Action string

const (
	ActionOpen  Action = "OPEN"
	ActionClose Action = "CLOSE"
)

// Origin identifica quién originó un evento del ledger.
type Origin string

const (
	OriginManual    Origin = "manual"
	OriginRecurring Origin = "recurring"
)

// TradeEvent es un evento inmutable del ledger de paper trading. Nunca se
// actualiza ni se borra: posiciones, curva y estadísticas se derivan
// releyendo el ledger completo en cada consulta.
type TradeEvent struct {
	ID        string    `json:"trade_id"`
	CreatedAt time.Time `json:"created_at_utc"`
	MarketID  string    `json:"market_id"`
	Side      Side      `json:"side"`
	Action    Action    `json:"action"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	// Fees se registran con el evento pero no entran en el P&L.
	Fees float64 `json:"fees"`
	// PriceTS es el timestamp del snapshot que fijó el precio del evento.
	PriceTS time.Time `json:"snapshot_ts_utc"`
	// Origin y CorrelationID identifican eventos generados por órdenes
	// recurrentes; CorrelationID es el id de la orden.
	Origin        Origin `json:"origin"`
	CorrelationID string `json:"correlation_id,omitempty"`
	// Question se enriquece desde el catálogo al listar, solo para mostrar.
	Question string `json:"question,omitempty"`
}

// Day devuelve la fecha calendario UTC (YYYY-MM-DD) del evento.
func (e TradeEvent) Day() string {
	return DayOf(e.CreatedAt)
}

// Validate comprueba que el evento sea coherente antes de añadirlo al ledger.
func (e TradeEvent) Validate() error {
	if e.Side != SideYes && e.Side != SideNo {
		return fmt.Errorf("domain.TradeEvent: side %q: %w", e.Side, ErrInvalidArgument)
	}
	if e.Action != ActionOpen && e.Action != ActionClose {
		return fmt.Errorf("domain.TradeEvent: action %q: %w", e.Action, ErrInvalidArgument)
	}
	if e.Quantity <= 0 {
		return fmt.Errorf("domain.TradeEvent: quantity %.4f: %w", e.Quantity, ErrInvalidArgument)
	}
	if e.Price < 0 || e.Price > 1 {
		return fmt.Errorf("domain.TradeEvent: price %.4f fuera de [0,1]: %w", e.Price, ErrInvalidArgument)
	}
	return nil
}
