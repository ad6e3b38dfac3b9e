package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polytrack/internal/application/portfolio"
	"github.com/alejandrodnm/polytrack/internal/domain"
	"github.com/alejandrodnm/polytrack/internal/metrics"
	"github.com/alejandrodnm/polytrack/internal/ports"
	"github.com/google/uuid"
)

// TradePlacer is the slice of the portfolio service the executor needs.
// Going through it keeps every ledger write behind the same per-key lock
// and the same validation as a manual open.
type TradePlacer interface {
	Open(ctx context.Context, req portfolio.OpenRequest) (domain.TradeEvent, error)
}

// Executor manages recurring daily orders: creation with historical
// backfill, the once-a-day placement run, cancellation and per-order
// analytics.
type Executor struct {
	store   ports.RecurringStore
	trades  TradePlacer
	ledger  ports.TradeLedger
	prices  ports.PriceSeries
	catalog ports.MarketCatalog
	now     func() time.Time // swapped in tests
}

// New creates the executor with all dependencies injected.
func New(store ports.RecurringStore, trades TradePlacer, ledger ports.TradeLedger, prices ports.PriceSeries, catalog ports.MarketCatalog) *Executor {
	return &Executor{
		store:   store,
		trades:  trades,
		ledger:  ledger,
		prices:  prices,
		catalog: catalog,
		now:     time.Now,
	}
}

// CreateRequest describes a new recurring order.
type CreateRequest struct {
	MarketID string
	Side     string
	Quantity float64
}

// CreateResult is the stored order plus how many historical trades the
// backfill produced.
type CreateResult struct {
	Order            domain.RecurringOrder `json:"order"`
	TradesBackfilled int                   `json:"trades_backfilled"`
}

// RunResult summarizes one placement run.
type RunResult struct {
	Day           string `json:"day"`
	OrdersChecked int    `json:"orders_checked"`
	TradesPlaced  int    `json:"trades_placed"`
	Skipped       int    `json:"skipped"`
}

// Create validates and stores the order, then backfills one OPEN per
// calendar day the market already has snapshots for, each priced at that
// day's first snapshot and timestamped at it. A market with no snapshots
// yet creates cleanly with zero backfill; the daily run picks it up once
// prices arrive.
func (x *Executor) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return CreateResult{}, fmt.Errorf("recurring.Create: %w", err)
	}
	if req.MarketID == "" {
		return CreateResult{}, fmt.Errorf("recurring.Create: missing market id: %w", domain.ErrInvalidArgument)
	}
	if req.Quantity <= 0 {
		return CreateResult{}, fmt.Errorf("recurring.Create: quantity %.4f: %w", req.Quantity, domain.ErrInvalidArgument)
	}

	order := domain.RecurringOrder{
		ID:        uuid.NewString(),
		MarketID:  req.MarketID,
		Side:      side,
		Quantity:  req.Quantity,
		Active:    true,
		CreatedAt: x.now().UTC(),
	}
	if err := x.store.CreateOrder(ctx, order); err != nil {
		return CreateResult{}, fmt.Errorf("recurring.Create: store: %w", err)
	}

	placed, lastDay, err := x.backfill(ctx, order)
	if err != nil {
		return CreateResult{}, fmt.Errorf("recurring.Create: %w", err)
	}
	if placed > 0 {
		if err := x.store.MarkExecuted(ctx, order.ID, lastDay, placed); err != nil {
			return CreateResult{}, fmt.Errorf("recurring.Create: mark executed: %w", err)
		}
		order.LastExecuted = lastDay
		order.TradesPlaced = placed
	}

	slog.Info("recurring order created",
		"id", order.ID,
		"market", order.MarketID,
		"side", order.Side,
		"quantity", order.Quantity,
		"backfilled", placed,
	)
	return CreateResult{Order: order, TradesBackfilled: placed}, nil
}

// backfill walks the market's full snapshot history and opens one position
// per day at the first snapshot of that day.
func (x *Executor) backfill(ctx context.Context, order domain.RecurringOrder) (placed int, lastDay string, err error) {
	snaps, err := x.prices.ListAsc(ctx, order.MarketID)
	if err != nil {
		return 0, "", fmt.Errorf("backfill: list snapshots: %w", err)
	}
	for _, snap := range domain.FirstSnapshotPerDay(snaps) {
		_, err := x.trades.Open(ctx, portfolio.OpenRequest{
			MarketID:      order.MarketID,
			Side:          string(order.Side),
			Quantity:      order.Quantity,
			AsOf:          snap.TakenAt,
			Origin:        domain.OriginRecurring,
			CorrelationID: order.ID,
		})
		if err != nil {
			return placed, lastDay, fmt.Errorf("backfill: open at %s: %w", snap.TakenAt.Format(time.RFC3339), err)
		}
		placed++
		lastDay = snap.Day()
	}
	return placed, lastDay, nil
}

// RunDue places one OPEN for every active order not yet executed on the
// given day (empty = today, UTC). Orders whose market has no snapshot are
// skipped with a warning and retried on the next run; per-order failures
// never abort the whole run.
func (x *Executor) RunDue(ctx context.Context, day string) (RunResult, error) {
	today := domain.DayOf(x.now())
	if day == "" {
		day = today
	}

	// Para un día histórico el precio se resuelve al cierre de ese día;
	// para hoy, al instante actual (AsOf cero).
	var asOf time.Time
	if day != today {
		parsed, err := time.Parse(domain.DateLayout, day)
		if err != nil {
			return RunResult{}, fmt.Errorf("recurring.RunDue: day %q: %w", day, domain.ErrInvalidArgument)
		}
		asOf = parsed.Add(24*time.Hour - time.Second)
	}

	orders, err := x.store.ListOrders(ctx, "", true)
	if err != nil {
		return RunResult{}, fmt.Errorf("recurring.RunDue: list orders: %w", err)
	}

	result := RunResult{Day: day, OrdersChecked: len(orders)}
	for _, order := range orders {
		if order.LastExecuted >= day {
			continue
		}

		_, err := x.trades.Open(ctx, portfolio.OpenRequest{
			MarketID:      order.MarketID,
			Side:          string(order.Side),
			Quantity:      order.Quantity,
			AsOf:          asOf,
			Origin:        domain.OriginRecurring,
			CorrelationID: order.ID,
		})
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("recurring: market has no snapshot yet, skipping",
				"id", order.ID, "market", order.MarketID)
			result.Skipped++
			continue
		}
		if err != nil {
			slog.Warn("recurring: placement failed",
				"id", order.ID, "market", order.MarketID, "err", err)
			result.Skipped++
			continue
		}
		if err := x.store.MarkExecuted(ctx, order.ID, day, order.TradesPlaced+1); err != nil {
			return result, fmt.Errorf("recurring.RunDue: mark executed %s: %w", order.ID, err)
		}
		result.TradesPlaced++
	}

	metrics.RecurringRuns.Inc()
	slog.Info("recurring run complete",
		"day", result.Day,
		"checked", result.OrdersChecked,
		"placed", result.TradesPlaced,
		"skipped", result.Skipped,
	)
	return result, nil
}

// List returns the orders newest first, enriched with catalog questions.
// marketID "" lists every order, active or not.
func (x *Executor) List(ctx context.Context, marketID string) ([]domain.RecurringOrder, error) {
	orders, err := x.store.ListOrders(ctx, marketID, false)
	if err != nil {
		return nil, fmt.Errorf("recurring.List: %w", err)
	}
	x.attachQuestions(ctx, orders)
	return orders, nil
}

// Trades lists the ledger events recurring orders produced, in ledger
// order. marketID "" spans every market.
func (x *Executor) Trades(ctx context.Context, marketID string) ([]domain.TradeEvent, error) {
	events, err := x.ledger.List(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("recurring.Trades: %w", err)
	}
	placed := events[:0]
	for _, e := range events {
		if e.Origin == domain.OriginRecurring {
			placed = append(placed, e)
		}
	}
	return placed, nil
}

// Cancel deactivates the order. Its trades stay in the ledger and keep
// counting toward positions and stats.
func (x *Executor) Cancel(ctx context.Context, id string) (domain.RecurringOrder, error) {
	order, err := x.store.GetOrder(ctx, id)
	if err != nil {
		return domain.RecurringOrder{}, fmt.Errorf("recurring.Cancel: %w", err)
	}
	if order.Active {
		if err := x.store.SetActive(ctx, id, false); err != nil {
			return domain.RecurringOrder{}, fmt.Errorf("recurring.Cancel: %w", err)
		}
		order.Active = false
	}
	slog.Info("recurring order cancelled", "id", id, "market", order.MarketID)
	return order, nil
}

// Analytics aggregates the ledger events the order produced, valued at the
// market's latest snapshot. A market with no snapshot values at price 0.
func (x *Executor) Analytics(ctx context.Context, id string) (domain.RecurringAnalytics, error) {
	order, err := x.store.GetOrder(ctx, id)
	if err != nil {
		return domain.RecurringAnalytics{}, fmt.Errorf("recurring.Analytics: %w", err)
	}
	events, err := x.ledger.ListByCorrelation(ctx, id)
	if err != nil {
		return domain.RecurringAnalytics{}, fmt.Errorf("recurring.Analytics: list events: %w", err)
	}

	currentPrice := 0.0
	snap, err := x.prices.Latest(ctx, order.MarketID)
	switch {
	case err == nil:
		currentPrice = snap.Prices.ForSide(order.Side)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.RecurringAnalytics{}, fmt.Errorf("recurring.Analytics: latest price: %w", err)
	}

	if m, err := x.catalog.Get(ctx, order.MarketID); err == nil {
		order.Question = m.Question
	}
	return domain.ComputeRecurringAnalytics(order, events, currentPrice), nil
}

// attachQuestions es best effort: mercados desconocidos quedan en blanco.
func (x *Executor) attachQuestions(ctx context.Context, orders []domain.RecurringOrder) {
	if len(orders) == 0 {
		return
	}
	ids := make([]string, 0, len(orders))
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		if !seen[o.MarketID] {
			seen[o.MarketID] = true
			ids = append(ids, o.MarketID)
		}
	}
	markets, err := x.catalog.GetBatch(ctx, ids)
	if err != nil {
		slog.Warn("recurring: catalog lookup failed", "err", err)
		return
	}
	for i := range orders {
		if m, ok := markets[orders[i].MarketID]; ok {
			orders[i].Question = m.Question
		}
	}
}
