// Package httpapi exposes the tracker as a JSON API over chi. Handlers
// delegate to the application services and translate domain errors to
// HTTP status codes; they hold no business logic of their own.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alejandrodnm/polytrack/internal/application/portfolio"
	"github.com/alejandrodnm/polytrack/internal/application/recurring"
	"github.com/alejandrodnm/polytrack/internal/metrics"
)

// Server wires the portfolio and recurring services into an http.Server.
type Server struct {
	portfolio *portfolio.Service
	recurring *recurring.Executor
	srv       *http.Server
}

// New creates the API server bound to addr.
func New(addr string, pf *portfolio.Service, rec *recurring.Executor) *Server {
	s := &Server{portfolio: pf, recurring: rec}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the route table with the full middleware stack. Exposed
// so tests can drive handlers without opening a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"polytrack"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/paper_trades/open", s.openTrade)
		r.Post("/paper_trades/close", s.closeTrade)
		r.Get("/paper_trades", s.listTrades)
		r.Get("/paper_positions", s.listPositions)
		r.Get("/paper_portfolio/summary", s.portfolioSummary)
		r.Get("/paper_portfolio/curve", s.portfolioCurve)

		r.Post("/dca", s.createRecurring)
		r.Get("/dca", s.listRecurring)
		r.Get("/dca/trades", s.recurringTrades)
		r.Get("/dca/{id}/analytics", s.recurringAnalytics)
		r.Post("/dca/{id}/cancel", s.cancelRecurring)
	})

	return r
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
