package storage

// recurring.go — RecurringStore sobre la tabla recurring_orders. Cancelar es
// un soft-delete (active = 0): el historial de la orden nunca desaparece.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// CreateOrder inserta una orden recurrente nueva.
func (s *SQLiteStorage) CreateOrder(ctx context.Context, order domain.RecurringOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_orders
			(id, market_id, side, quantity, active, created_at, last_executed, trades_placed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.MarketID, string(order.Side), order.Quantity,
		boolToInt(order.Active), fmtTime(order.CreatedAt),
		order.LastExecuted, order.TradesPlaced,
	)
	if err != nil {
		return fmt.Errorf("storage.CreateOrder: %w", err)
	}
	return nil
}

// GetOrder devuelve una orden por id.
func (s *SQLiteStorage) GetOrder(ctx context.Context, id string) (domain.RecurringOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, market_id, side, quantity, active, created_at, last_executed, trades_placed
		FROM recurring_orders WHERE id = ?`, id)

	o, err := scanRecurring(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RecurringOrder{}, fmt.Errorf("storage.GetOrder: recurring order %s: %w", id, domain.ErrNotFound)
		}
		return domain.RecurringOrder{}, fmt.Errorf("storage.GetOrder: %w", err)
	}
	return o, nil
}

// ListOrders devuelve órdenes de la más nueva a la más vieja. marketID ""
// lista todas; activeOnly excluye las canceladas.
func (s *SQLiteStorage) ListOrders(ctx context.Context, marketID string, activeOnly bool) ([]domain.RecurringOrder, error) {
	query := `
		SELECT id, market_id, side, quantity, active, created_at, last_executed, trades_placed
		FROM recurring_orders`
	var conds []string
	var args []any
	if marketID != "" {
		conds = append(conds, "market_id = ?")
		args = append(args, marketID)
	}
	if activeOnly {
		conds = append(conds, "active = 1")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOrders: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringOrder
	for rows.Next() {
		o, err := scanRecurring(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("storage.ListOrders: scan: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkExecuted registra el último día ejecutado y el acumulado de trades.
func (s *SQLiteStorage) MarkExecuted(ctx context.Context, id string, day string, tradesPlaced int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recurring_orders SET last_executed = ?, trades_placed = ?
		WHERE id = ?`, day, tradesPlaced, id)
	if err != nil {
		return fmt.Errorf("storage.MarkExecuted: %w", err)
	}
	return nil
}

// SetActive activa o desactiva una orden.
func (s *SQLiteStorage) SetActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recurring_orders SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("storage.SetActive: %w", err)
	}
	return nil
}

func scanRecurring(scan func(dest ...any) error) (domain.RecurringOrder, error) {
	var o domain.RecurringOrder
	var side, createdAt string
	var active int

	if err := scan(
		&o.ID, &o.MarketID, &side, &o.Quantity, &active,
		&createdAt, &o.LastExecuted, &o.TradesPlaced,
	); err != nil {
		return domain.RecurringOrder{}, err
	}

	o.Side = domain.Side(side)
	o.Active = active == 1
	o.CreatedAt = parseTime(createdAt)
	return o, nil
}
