package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// PriceSeries is the read model over observed market prices plus the
// ingestion entry point the snapshot collector writes through. Lookups
// that find nothing return domain.ErrNotFound.
type PriceSeries interface {
	// Insert stores snapshots, silently skipping duplicates (same market
	// and timestamp). Returns how many rows were actually new.
	Insert(ctx context.Context, snaps []domain.Snapshot) (int, error)

	// LatestAtOrBefore returns the most recent snapshot taken at or
	// before ts for the market.
	LatestAtOrBefore(ctx context.Context, marketID string, ts time.Time) (domain.Snapshot, error)

	// Latest returns the most recent snapshot for the market.
	Latest(ctx context.Context, marketID string) (domain.Snapshot, error)

	// LatestBatch resolves the most recent snapshot for each market in
	// one call; markets with no snapshots are absent from the result.
	LatestBatch(ctx context.Context, marketIDs []string) (map[string]domain.Snapshot, error)

	// ListAsc returns every snapshot of the market ascending by TakenAt.
	ListAsc(ctx context.Context, marketID string) ([]domain.Snapshot, error)

	// DailyTable returns the last known price per market per day within
	// [fromDay, toDay] (YYYY-MM-DD, inclusive). Only days with at least
	// one observation have a row; a market observed before the window
	// carries into fromDay.
	DailyTable(ctx context.Context, marketIDs []string, fromDay, toDay string) (domain.DailyPriceTable, error)
}
