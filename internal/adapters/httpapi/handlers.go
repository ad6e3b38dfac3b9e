package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alejandrodnm/polytrack/internal/application/portfolio"
	"github.com/alejandrodnm/polytrack/internal/application/recurring"
	"github.com/alejandrodnm/polytrack/internal/domain"
)

// --- Request/Response types ---

// openTradeRequest is the JSON body for POST /paper_trades/open.
type openTradeRequest struct {
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Fees     float64 `json:"fees"`
	AsOf     string  `json:"at_timestamp,omitempty"` // RFC3339; empty prices at now
}

// closeTradeRequest is the JSON body for POST /paper_trades/close.
type closeTradeRequest struct {
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"` // 0 closes the whole net position
	Fees     float64 `json:"fees"`
	AsOf     string  `json:"at_timestamp,omitempty"`
}

// createRecurringRequest is the JSON body for POST /dca.
type createRecurringRequest struct {
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
}

// curveResponse bundles the daily equity curve with the portfolio stats
// derived from it, so clients render both from one call.
type curveResponse struct {
	Curve []domain.EquityCurvePoint `json:"curve"`
	Stats domain.PortfolioStats     `json:"stats"`
}

// --- Handlers ---

// openTrade handles POST /api/v1/paper_trades/open.
func (s *Server) openTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	asOf, ok := parseAsOf(w, req.AsOf)
	if !ok {
		return
	}

	event, err := s.portfolio.Open(r.Context(), portfolio.OpenRequest{
		MarketID: req.MarketID,
		Side:     req.Side,
		Quantity: req.Quantity,
		Fees:     req.Fees,
		AsOf:     asOf,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// closeTrade handles POST /api/v1/paper_trades/close.
func (s *Server) closeTrade(w http.ResponseWriter, r *http.Request) {
	var req closeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	asOf, ok := parseAsOf(w, req.AsOf)
	if !ok {
		return
	}

	event, err := s.portfolio.Close(r.Context(), portfolio.CloseRequest{
		MarketID: req.MarketID,
		Side:     req.Side,
		Quantity: req.Quantity,
		Fees:     req.Fees,
		AsOf:     asOf,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// listTrades handles GET /api/v1/paper_trades?market_id=...
func (s *Server) listTrades(w http.ResponseWriter, r *http.Request) {
	events, err := s.portfolio.Trades(r.Context(), r.URL.Query().Get("market_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []domain.TradeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// listPositions handles GET /api/v1/paper_positions.
func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.portfolio.OpenPositions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// portfolioSummary handles GET /api/v1/paper_portfolio/summary.
func (s *Server) portfolioSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.portfolio.Summary(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// portfolioCurve handles GET /api/v1/paper_portfolio/curve.
func (s *Server) portfolioCurve(w http.ResponseWriter, r *http.Request) {
	curve, stats, err := s.portfolio.EquityCurve(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if curve == nil {
		curve = []domain.EquityCurvePoint{}
	}
	writeJSON(w, http.StatusOK, curveResponse{Curve: curve, Stats: stats})
}

// createRecurring handles POST /api/v1/dca.
func (s *Server) createRecurring(w http.ResponseWriter, r *http.Request) {
	var req createRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.recurring.Create(r.Context(), recurring.CreateRequest{
		MarketID: req.MarketID,
		Side:     req.Side,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// listRecurring handles GET /api/v1/dca?market_id=...
func (s *Server) listRecurring(w http.ResponseWriter, r *http.Request) {
	orders, err := s.recurring.List(r.Context(), r.URL.Query().Get("market_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.RecurringOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// recurringTrades handles GET /api/v1/dca/trades?market_id=...
func (s *Server) recurringTrades(w http.ResponseWriter, r *http.Request) {
	events, err := s.recurring.Trades(r.Context(), r.URL.Query().Get("market_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []domain.TradeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// recurringAnalytics handles GET /api/v1/dca/{id}/analytics.
func (s *Server) recurringAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.recurring.Analytics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// cancelRecurring handles POST /api/v1/dca/{id}/cancel.
func (s *Server) cancelRecurring(w http.ResponseWriter, r *http.Request) {
	order, err := s.recurring.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// --- helpers ---

// parseAsOf validates the optional at_timestamp field. Empty means
// "price at now"; a malformed timestamp answers 400 and returns ok=false.
func parseAsOf(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, "at_timestamp must be RFC3339", http.StatusBadRequest)
		return time.Time{}, false
	}
	return ts, true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("request failed", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
