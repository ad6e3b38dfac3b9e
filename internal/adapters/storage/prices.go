package storage

// prices.go — PriceSeries sobre la tabla snapshots. La serie es sparse: solo
// existen los instantes realmente observados, y UNIQUE(market_id, taken_at)
// hace la ingesta idempotente.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// Insert guarda snapshots ignorando duplicados (mismo mercado e instante).
// Devuelve cuántas filas eran realmente nuevas.
func (s *SQLiteStorage) Insert(ctx context.Context, snaps []domain.Snapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.Insert: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO snapshots (market_id, taken_at, yes_price, no_price)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("storage.Insert: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, snap := range snaps {
		res, err := stmt.ExecContext(ctx,
			snap.MarketID, fmtTime(snap.TakenAt), snap.Prices.Yes, snap.Prices.No)
		if err != nil {
			return 0, fmt.Errorf("storage.Insert: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.Insert: commit: %w", err)
	}
	return inserted, nil
}

// LatestAtOrBefore devuelve el snapshot más reciente tomado en o antes de ts.
func (s *SQLiteStorage) LatestAtOrBefore(ctx context.Context, marketID string, ts time.Time) (domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT market_id, taken_at, yes_price, no_price
		FROM snapshots WHERE market_id = ? AND taken_at <= ?
		ORDER BY taken_at DESC LIMIT 1`,
		marketID, fmtTime(ts))
	return scanSnapshot(row, "LatestAtOrBefore", marketID)
}

// Latest devuelve el snapshot más reciente del mercado.
func (s *SQLiteStorage) Latest(ctx context.Context, marketID string) (domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT market_id, taken_at, yes_price, no_price
		FROM snapshots WHERE market_id = ?
		ORDER BY taken_at DESC LIMIT 1`,
		marketID)
	return scanSnapshot(row, "Latest", marketID)
}

// LatestBatch resuelve el último snapshot de cada mercado en una sola query.
// Los mercados sin snapshots no aparecen en el resultado.
func (s *SQLiteStorage) LatestBatch(ctx context.Context, marketIDs []string) (map[string]domain.Snapshot, error) {
	out := make(map[string]domain.Snapshot, len(marketIDs))
	if len(marketIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, taken_at, yes_price, no_price
		FROM snapshots WHERE market_id IN (`+placeholders(len(marketIDs))+`)
		ORDER BY taken_at`, idArgs(marketIDs)...)
	if err != nil {
		return nil, fmt.Errorf("storage.LatestBatch: %w", err)
	}
	defer rows.Close()

	// Orden ascendente: la última fila de cada mercado sobreescribe las demás.
	for rows.Next() {
		var snap domain.Snapshot
		var takenAt string
		if err := rows.Scan(&snap.MarketID, &takenAt, &snap.Prices.Yes, &snap.Prices.No); err != nil {
			return nil, fmt.Errorf("storage.LatestBatch: scan: %w", err)
		}
		snap.TakenAt = parseTime(takenAt)
		out[snap.MarketID] = snap
	}
	return out, rows.Err()
}

// ListAsc devuelve todos los snapshots del mercado ascendentes por taken_at.
func (s *SQLiteStorage) ListAsc(ctx context.Context, marketID string) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, taken_at, yes_price, no_price
		FROM snapshots WHERE market_id = ?
		ORDER BY taken_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListAsc: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		var takenAt string
		if err := rows.Scan(&snap.MarketID, &takenAt, &snap.Prices.Yes, &snap.Prices.No); err != nil {
			return nil, fmt.Errorf("storage.ListAsc: scan: %w", err)
		}
		snap.TakenAt = parseTime(takenAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// DailyTable devuelve el último precio conocido por mercado y por día dentro
// de [fromDay, toDay]. Un mercado observado antes de la ventana entra
// arrastrado a fromDay; los días sin ninguna observación no tienen fila.
func (s *SQLiteStorage) DailyTable(ctx context.Context, marketIDs []string, fromDay, toDay string) (domain.DailyPriceTable, error) {
	table := make(domain.DailyPriceTable)
	if len(marketIDs) == 0 {
		return table, nil
	}

	end, err := time.Parse(domain.DateLayout, toDay)
	if err != nil {
		return nil, fmt.Errorf("storage.DailyTable: toDay %q: %w", toDay, domain.ErrInvalidArgument)
	}
	endBound := fmtTime(end.Add(24 * time.Hour))

	args := append(idArgs(marketIDs), endBound)
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, taken_at, yes_price, no_price
		FROM snapshots
		WHERE market_id IN (`+placeholders(len(marketIDs))+`) AND taken_at < ?
		ORDER BY taken_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.DailyTable: %w", err)
	}
	defer rows.Close()

	// Orden ascendente: dentro de un día la última observación gana, y lo
	// anterior a la ventana queda como precio de arrastre.
	carry := make(map[string]domain.PricePoint)
	for rows.Next() {
		var id, takenAt string
		var p domain.PricePoint
		if err := rows.Scan(&id, &takenAt, &p.Yes, &p.No); err != nil {
			return nil, fmt.Errorf("storage.DailyTable: scan: %w", err)
		}
		day := domain.DayOf(parseTime(takenAt))
		if day < fromDay {
			carry[id] = p
			continue
		}
		if table[day] == nil {
			table[day] = make(map[string]domain.PricePoint)
		}
		table[day][id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.DailyTable: %w", err)
	}

	for id, p := range carry {
		if _, ok := table[fromDay][id]; ok {
			continue
		}
		if table[fromDay] == nil {
			table[fromDay] = make(map[string]domain.PricePoint)
		}
		table[fromDay][id] = p
	}
	return table, nil
}

func scanSnapshot(row *sql.Row, method, marketID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var takenAt string
	if err := row.Scan(&snap.MarketID, &takenAt, &snap.Prices.Yes, &snap.Prices.No); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, fmt.Errorf("storage.%s: market %s: %w", method, marketID, domain.ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("storage.%s: scan: %w", method, err)
	}
	snap.TakenAt = parseTime(takenAt)
	return snap, nil
}
