package storage

// catalog.go — MarketCatalog sobre la tabla markets. El catálogo solo
// enriquece vistas y decide qué snapshotear; no entra en el P&L.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// Upsert inserta o actualiza mercados. first_seen se conserva tal como quedó
// en la primera inserción; el resto de columnas refleja el último ciclo.
func (s *SQLiteStorage) Upsert(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Upsert: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markets
			(market_id, question, slug, active, closed, end_date,
			 volume_24h, liquidity, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			question   = excluded.question,
			slug       = excluded.slug,
			active     = excluded.active,
			closed     = excluded.closed,
			end_date   = excluded.end_date,
			volume_24h = excluded.volume_24h,
			liquidity  = excluded.liquidity,
			last_seen  = excluded.last_seen
	`)
	if err != nil {
		return fmt.Errorf("storage.Upsert: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range markets {
		var endDate *string
		if !m.EndDate.IsZero() {
			t := fmtTime(m.EndDate)
			endDate = &t
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.Question, m.Slug, boolToInt(m.Active), boolToInt(m.Closed),
			endDate, m.Volume24h, m.Liquidity, fmtTime(m.FirstSeen), fmtTime(m.LastSeen),
		); err != nil {
			return fmt.Errorf("storage.Upsert: market %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Upsert: commit: %w", err)
	}
	return nil
}

// Get devuelve un mercado por id.
func (s *SQLiteStorage) Get(ctx context.Context, marketID string) (domain.Market, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT market_id, question, slug, active, closed, end_date,
		       volume_24h, liquidity, first_seen, last_seen
		FROM markets WHERE market_id = ?`, marketID)

	m, err := scanMarket(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("storage.Get: market %s: %w", marketID, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("storage.Get: %w", err)
	}
	return m, nil
}

// GetBatch resuelve varios mercados de una vez; los desconocidos se omiten.
func (s *SQLiteStorage) GetBatch(ctx context.Context, marketIDs []string) (map[string]domain.Market, error) {
	out := make(map[string]domain.Market, len(marketIDs))
	if len(marketIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, question, slug, active, closed, end_date,
		       volume_24h, liquidity, first_seen, last_seen
		FROM markets WHERE market_id IN (`+placeholders(len(marketIDs))+`)`,
		idArgs(marketIDs)...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetBatch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMarket(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("storage.GetBatch: scan: %w", err)
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// ListTracked devuelve los mercados activos y no cerrados, que son los que
// el collector snapshotea en cada ciclo.
func (s *SQLiteStorage) ListTracked(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, question, slug, active, closed, end_date,
		       volume_24h, liquidity, first_seen, last_seen
		FROM markets WHERE active = 1 AND closed = 0
		ORDER BY market_id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListTracked: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("storage.ListTracked: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanMarket funciona tanto con sql.Row como con sql.Rows pasando su Scan.
func scanMarket(scan func(dest ...any) error) (domain.Market, error) {
	var m domain.Market
	var active, closed int
	var firstSeen, lastSeen string
	var question, slug, endDate sql.NullString

	if err := scan(
		&m.ID, &question, &slug, &active, &closed, &endDate,
		&m.Volume24h, &m.Liquidity, &firstSeen, &lastSeen,
	); err != nil {
		return domain.Market{}, err
	}

	m.Question = question.String
	m.Slug = slug.String
	m.Active = active == 1
	m.Closed = closed == 1
	if endDate.Valid {
		m.EndDate = parseTime(endDate.String)
	}
	m.FirstSeen = parseTime(firstSeen)
	m.LastSeen = parseTime(lastSeen)
	return m, nil
}
