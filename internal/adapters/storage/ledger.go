package storage

// ledger.go — TradeLedger sobre la tabla paper_trades. Solo INSERT y SELECT;
// el ledger nunca se actualiza ni se compacta.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// Append inserta un evento al final del ledger.
func (s *SQLiteStorage) Append(ctx context.Context, event domain.TradeEvent) error {
	var priceTS, corrID *string
	if !event.PriceTS.IsZero() {
		t := fmtTime(event.PriceTS)
		priceTS = &t
	}
	if event.CorrelationID != "" {
		corrID = &event.CorrelationID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_trades (id, created_at, market_id, side, action,
		                          quantity, price, fees, price_ts, origin, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, fmtTime(event.CreatedAt), event.MarketID, string(event.Side),
		string(event.Action), event.Quantity, event.Price, event.Fees,
		priceTS, string(event.Origin), corrID,
	)
	if err != nil {
		return fmt.Errorf("storage.Append: %w", err)
	}
	return nil
}

// List devuelve eventos en orden de ledger: created_at ascendente con rowid
// como desempate (dos eventos del mismo segundo conservan su orden de inserción).
func (s *SQLiteStorage) List(ctx context.Context, marketID string) ([]domain.TradeEvent, error) {
	if marketID != "" {
		return s.queryTrades(ctx, `
			SELECT id, created_at, market_id, side, action, quantity,
			       price, fees, price_ts, origin, correlation_id
			FROM paper_trades WHERE market_id = ?
			ORDER BY created_at, rowid`, marketID)
	}
	return s.queryTrades(ctx, `
		SELECT id, created_at, market_id, side, action, quantity,
		       price, fees, price_ts, origin, correlation_id
		FROM paper_trades ORDER BY created_at, rowid`)
}

// ListByCorrelation devuelve los eventos generados por una orden recurrente.
func (s *SQLiteStorage) ListByCorrelation(ctx context.Context, correlationID string) ([]domain.TradeEvent, error) {
	return s.queryTrades(ctx, `
		SELECT id, created_at, market_id, side, action, quantity,
		       price, fees, price_ts, origin, correlation_id
		FROM paper_trades WHERE correlation_id = ?
		ORDER BY created_at, rowid`, correlationID)
}

func (s *SQLiteStorage) queryTrades(ctx context.Context, query string, args ...any) ([]domain.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeEvent
	for rows.Next() {
		var e domain.TradeEvent
		var side, action, origin, createdAt string
		var priceTS, corrID sql.NullString

		if err := rows.Scan(
			&e.ID, &createdAt, &e.MarketID, &side, &action,
			&e.Quantity, &e.Price, &e.Fees, &priceTS, &origin, &corrID,
		); err != nil {
			return nil, fmt.Errorf("storage.queryTrades: scan: %w", err)
		}

		e.CreatedAt = parseTime(createdAt)
		e.Side = domain.Side(side)
		e.Action = domain.Action(action)
		e.Origin = domain.Origin(origin)
		if priceTS.Valid {
			e.PriceTS, _ = time.Parse(time.RFC3339, priceTS.String)
		}
		if corrID.Valid {
			e.CorrelationID = corrID.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
