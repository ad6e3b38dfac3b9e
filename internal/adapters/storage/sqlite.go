package storage

// sqlite.go — persistencia en SQLite (pure Go, sin CGo).
//
// Estrategia:
//   - `paper_trades`: ledger append-only. Nunca UPDATE ni DELETE; el orden
//     canónico es (created_at, rowid) para desempatar eventos del mismo segundo.
//   - `snapshots`: una fila por observación de precio, UNIQUE(market_id, taken_at)
//     con INSERT OR IGNORE. Re-insertar un ciclo del collector no duplica nada.
//   - `markets`: catálogo con UPSERT que conserva first_seen.
//   - `recurring_orders`: suscripciones; sus trades viven en paper_trades
//     enlazados por correlation_id.
//
// Todos los timestamps se guardan como RFC3339 en UTC, así las comparaciones
// de rango funcionan como strings.

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
-- Ledger append-only de paper trading
CREATE TABLE IF NOT EXISTS paper_trades (
    id             TEXT PRIMARY KEY,
    created_at     DATETIME NOT NULL,
    market_id      TEXT     NOT NULL,
    side           TEXT     NOT NULL,
    action         TEXT     NOT NULL,
    quantity       REAL     NOT NULL,
    price          REAL     NOT NULL,
    fees           REAL     NOT NULL DEFAULT 0,
    price_ts       DATETIME,
    origin         TEXT     NOT NULL DEFAULT 'manual',
    correlation_id TEXT
);

-- Una fila por observación de precio; el par (mercado, instante) es único
CREATE TABLE IF NOT EXISTS snapshots (
    market_id TEXT     NOT NULL,
    taken_at  DATETIME NOT NULL,
    yes_price REAL     NOT NULL,
    no_price  REAL     NOT NULL,
    UNIQUE(market_id, taken_at)
);

-- Catálogo de mercados rastreados, solo metadata de presentación
CREATE TABLE IF NOT EXISTS markets (
    market_id  TEXT PRIMARY KEY,
    question   TEXT,
    slug       TEXT,
    active     INTEGER  NOT NULL DEFAULT 1,
    closed     INTEGER  NOT NULL DEFAULT 0,
    end_date   DATETIME,
    volume_24h REAL     NOT NULL DEFAULT 0,
    liquidity  REAL     NOT NULL DEFAULT 0,
    first_seen DATETIME NOT NULL,
    last_seen  DATETIME NOT NULL
);

-- Órdenes recurrentes (compra diaria de cantidad fija)
CREATE TABLE IF NOT EXISTS recurring_orders (
    id            TEXT PRIMARY KEY,
    market_id     TEXT     NOT NULL,
    side          TEXT     NOT NULL,
    quantity      REAL     NOT NULL,
    active        INTEGER  NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL,
    last_executed TEXT     NOT NULL DEFAULT '',
    trades_placed INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_market ON paper_trades(market_id, created_at);
CREATE INDEX IF NOT EXISTS idx_trades_corr   ON paper_trades(correlation_id);
CREATE INDEX IF NOT EXISTS idx_snaps_market  ON snapshots(market_id, taken_at DESC);
CREATE INDEX IF NOT EXISTS idx_markets_live  ON markets(active, closed);
CREATE INDEX IF NOT EXISTS idx_recurring_mkt ON recurring_orders(market_id);
`

// SQLiteStorage implementa ports.TradeLedger, ports.PriceSeries,
// ports.MarketCatalog y ports.RecurringStore sobre un único fichero SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// placeholders genera "?, ?, ?" para cláusulas IN de n elementos.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// idArgs convierte una lista de ids en argumentos variádicos de query.
func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
