package recurring

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polytrack/internal/application/portfolio"
	"github.com/alejandrodnm/polytrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type memLedger struct {
	mu     sync.Mutex
	events []domain.TradeEvent
}

func (m *memLedger) Append(_ context.Context, event domain.TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memLedger) List(_ context.Context, marketID string) ([]domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TradeEvent, 0, len(m.events))
	for _, e := range m.events {
		if marketID == "" || e.MarketID == marketID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memLedger) ListByCorrelation(_ context.Context, correlationID string) ([]domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TradeEvent, 0, 4)
	for _, e := range m.events {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memPrices struct {
	snaps map[string][]domain.Snapshot
}

func newMemPrices() *memPrices {
	return &memPrices{snaps: make(map[string][]domain.Snapshot)}
}

func (m *memPrices) Insert(_ context.Context, snaps []domain.Snapshot) (int, error) {
	for _, s := range snaps {
		m.snaps[s.MarketID] = append(m.snaps[s.MarketID], s)
	}
	for id := range m.snaps {
		sort.Slice(m.snaps[id], func(i, j int) bool {
			return m.snaps[id][i].TakenAt.Before(m.snaps[id][j].TakenAt)
		})
	}
	return len(snaps), nil
}

func (m *memPrices) LatestAtOrBefore(_ context.Context, marketID string, ts time.Time) (domain.Snapshot, error) {
	series := m.snaps[marketID]
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].TakenAt.After(ts) {
			return series[i], nil
		}
	}
	return domain.Snapshot{}, domain.ErrNotFound
}

func (m *memPrices) Latest(_ context.Context, marketID string) (domain.Snapshot, error) {
	series := m.snaps[marketID]
	if len(series) == 0 {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return series[len(series)-1], nil
}

func (m *memPrices) LatestBatch(ctx context.Context, marketIDs []string) (map[string]domain.Snapshot, error) {
	out := make(map[string]domain.Snapshot, len(marketIDs))
	for _, id := range marketIDs {
		if snap, err := m.Latest(ctx, id); err == nil {
			out[id] = snap
		}
	}
	return out, nil
}

func (m *memPrices) ListAsc(_ context.Context, marketID string) ([]domain.Snapshot, error) {
	return append([]domain.Snapshot(nil), m.snaps[marketID]...), nil
}

func (m *memPrices) DailyTable(_ context.Context, _ []string, _, _ string) (domain.DailyPriceTable, error) {
	return domain.DailyPriceTable{}, nil
}

type memCatalog struct {
	markets map[string]domain.Market
}

func (m *memCatalog) Upsert(_ context.Context, markets []domain.Market) error {
	for _, mk := range markets {
		m.markets[mk.ID] = mk
	}
	return nil
}

func (m *memCatalog) Get(_ context.Context, marketID string) (domain.Market, error) {
	mk, ok := m.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func (m *memCatalog) GetBatch(_ context.Context, marketIDs []string) (map[string]domain.Market, error) {
	out := make(map[string]domain.Market, len(marketIDs))
	for _, id := range marketIDs {
		if mk, ok := m.markets[id]; ok {
			out[id] = mk
		}
	}
	return out, nil
}

func (m *memCatalog) ListTracked(_ context.Context) ([]domain.Market, error) {
	return nil, nil
}

type memStore struct {
	orders map[string]domain.RecurringOrder
	seq    []string
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]domain.RecurringOrder)}
}

func (m *memStore) CreateOrder(_ context.Context, order domain.RecurringOrder) error {
	m.orders[order.ID] = order
	m.seq = append(m.seq, order.ID)
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (domain.RecurringOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return domain.RecurringOrder{}, domain.ErrNotFound
	}
	return order, nil
}

func (m *memStore) ListOrders(_ context.Context, marketID string, activeOnly bool) ([]domain.RecurringOrder, error) {
	out := make([]domain.RecurringOrder, 0, len(m.seq))
	for i := len(m.seq) - 1; i >= 0; i-- { // newest first
		order := m.orders[m.seq[i]]
		if marketID != "" && order.MarketID != marketID {
			continue
		}
		if activeOnly && !order.Active {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (m *memStore) MarkExecuted(_ context.Context, id string, day string, tradesPlaced int) error {
	order, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	order.LastExecuted = day
	order.TradesPlaced = tradesPlaced
	m.orders[id] = order
	return nil
}

func (m *memStore) SetActive(_ context.Context, id string, active bool) error {
	order, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	order.Active = active
	m.orders[id] = order
	return nil
}

// --- helpers ---

func at(day string, hour int) time.Time {
	d, err := time.Parse(domain.DateLayout, day)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func mkSnap(marketID string, ts time.Time, yes float64) domain.Snapshot {
	return domain.Snapshot{
		MarketID: marketID,
		TakenAt:  ts,
		Prices:   domain.PricePoint{Yes: yes, No: 1 - yes},
	}
}

type fixture struct {
	exec    *Executor
	ledger  *memLedger
	prices  *memPrices
	store   *memStore
	catalog *memCatalog
}

func newFixture() *fixture {
	ledger := &memLedger{}
	prices := newMemPrices()
	catalog := &memCatalog{markets: make(map[string]domain.Market)}
	store := newMemStore()
	svc := portfolio.New(ledger, prices, catalog)
	exec := New(store, svc, ledger, prices, catalog)
	return &fixture{exec: exec, ledger: ledger, prices: prices, store: store, catalog: catalog}
}

func (f *fixture) seed(t *testing.T, snaps ...domain.Snapshot) {
	t.Helper()
	_, err := f.prices.Insert(context.Background(), snaps)
	require.NoError(t, err)
}

// --- tests ---

func TestExecutor_Create_BackfillsOneTradePerDay(t *testing.T) {
	f := newFixture()
	f.seed(t,
		mkSnap("mkt-1", at("2024-03-01", 9), 0.40),
		mkSnap("mkt-1", at("2024-03-01", 15), 0.42), // segundo del día: ignorado
		mkSnap("mkt-1", at("2024-03-02", 10), 0.50),
	)

	res, err := f.exec.Create(context.Background(), CreateRequest{
		MarketID: "mkt-1", Side: "yes", Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.TradesBackfilled)
	assert.Equal(t, "2024-03-02", res.Order.LastExecuted)
	assert.Equal(t, 2, res.Order.TradesPlaced)
	assert.True(t, res.Order.Active)

	events, err := f.ledger.ListByCorrelation(context.Background(), res.Order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// cada evento usa el primer snapshot de su día, timestamp incluido
	assert.Equal(t, at("2024-03-01", 9), events[0].CreatedAt)
	assert.InDelta(t, 0.40, events[0].Price, 1e-9)
	assert.Equal(t, at("2024-03-02", 10), events[1].CreatedAt)
	assert.InDelta(t, 0.50, events[1].Price, 1e-9)
	for _, e := range events {
		assert.Equal(t, domain.OriginRecurring, e.Origin)
		assert.Equal(t, domain.ActionOpen, e.Action)
		assert.InDelta(t, 2.0, e.Quantity, 1e-9)
	}
}

func TestExecutor_Create_NoSnapshotsBackfillsNothing(t *testing.T) {
	f := newFixture()

	res, err := f.exec.Create(context.Background(), CreateRequest{
		MarketID: "mkt-new", Side: "no", Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TradesBackfilled)
	assert.Empty(t, res.Order.LastExecuted)
	assert.Equal(t, 0, res.Order.TradesPlaced)

	events, _ := f.ledger.List(context.Background(), "")
	assert.Empty(t, events)
}

func TestExecutor_Create_RejectsBadArguments(t *testing.T) {
	f := newFixture()

	_, err := f.exec.Create(context.Background(), CreateRequest{MarketID: "mkt-1", Side: "maybe", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.exec.Create(context.Background(), CreateRequest{MarketID: "mkt-1", Side: "yes", Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.exec.Create(context.Background(), CreateRequest{Side: "yes", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestExecutor_RunDue_PlacesOncePerDay(t *testing.T) {
	f := newFixture()

	res, err := f.exec.Create(context.Background(), CreateRequest{
		MarketID: "mkt-1", Side: "yes", Quantity: 3,
	})
	require.NoError(t, err)

	nowTS := time.Now().UTC()
	day := domain.DayOf(nowTS)
	f.seed(t, mkSnap("mkt-1", nowTS, 0.40))

	run, err := f.exec.RunDue(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, run.OrdersChecked)
	assert.Equal(t, 1, run.TradesPlaced)
	assert.Equal(t, 0, run.Skipped)

	order, err := f.store.GetOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, day, order.LastExecuted)
	assert.Equal(t, 1, order.TradesPlaced)

	// segunda pasada el mismo día: no coloca nada
	run, err = f.exec.RunDue(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 0, run.TradesPlaced)

	events, _ := f.ledger.List(context.Background(), "")
	assert.Len(t, events, 1, "idempotente por día")
}

func TestExecutor_RunDue_SkipsMarketsWithoutSnapshots(t *testing.T) {
	f := newFixture()

	_, err := f.exec.Create(context.Background(), CreateRequest{
		MarketID: "mkt-ghost", Side: "yes", Quantity: 1,
	})
	require.NoError(t, err)

	run, err := f.exec.RunDue(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, run.OrdersChecked)
	assert.Equal(t, 0, run.TradesPlaced)
	assert.Equal(t, 1, run.Skipped)
}

func TestExecutor_RunDue_IgnoresCancelledOrders(t *testing.T) {
	f := newFixture()

	res, err := f.exec.Create(context.Background(), CreateRequest{
		MarketID: "mkt-1", Side: "yes", Quantity: 1,
	})
	require.NoError(t, err)
	_, err = f.exec.Cancel(context.Background(), res.Order.ID)
	require.NoError(t, err)

	nowTS := time.Now().UTC()
	f.seed(t, mkSnap("mkt-1", nowTS, 0.40))

	run, err := f.exec.RunDue(context.Background(), domain.DayOf(nowTS))
	require.NoError(t, err)
	assert.Equal(t, 0, run.OrdersChecked)
	assert.Equal(t, 0, run.TradesPlaced)
}

func TestExecutor_Cancel_KeepsHistory(t *testing.T) {
	f := newFixture()
	f.seed(t, mkSnap("mkt-1", at("2024-03-01", 9), 0.40))

	res, err := f.exec.Create(context.Background(), CreateRequest{
		MarketID: "mkt-1", Side: "yes", Quantity: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.TradesBackfilled)

	order, err := f.exec.Cancel(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.False(t, order.Active)

	// cancelar de nuevo es inocuo
	_, err = f.exec.Cancel(context.Background(), res.Order.ID)
	require.NoError(t, err)

	// el trade del backfill sigue en el ledger
	events, _ := f.ledger.ListByCorrelation(context.Background(), res.Order.ID)
	assert.Len(t, events, 1)

	_, err = f.exec.Cancel(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecutor_List_NewestFirstWithQuestions(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.catalog.Upsert(context.Background(), []domain.Market{
		{ID: "mkt-1", Question: "First question?"},
		{ID: "mkt-2", Question: "Second question?"},
	}))

	first, err := f.exec.Create(context.Background(), CreateRequest{MarketID: "mkt-1", Side: "yes", Quantity: 1})
	require.NoError(t, err)
	second, err := f.exec.Create(context.Background(), CreateRequest{MarketID: "mkt-2", Side: "no", Quantity: 2})
	require.NoError(t, err)

	orders, err := f.exec.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.Order.ID, orders[0].ID, "newest first")
	assert.Equal(t, "Second question?", orders[0].Question)
	assert.Equal(t, first.Order.ID, orders[1].ID)
	assert.Equal(t, "First question?", orders[1].Question)

	only, err := f.exec.List(context.Background(), "mkt-1")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, first.Order.ID, only[0].ID)
}

func TestExecutor_Analytics_Totals(t *testing.T) {
	f := newFixture()
	f.seed(t,
		mkSnap("mkt-1", at("2024-03-01", 9), 0.40),
		mkSnap("mkt-1", at("2024-03-02", 9), 0.50),
	)

	res, err := f.exec.Create(context.Background(), CreateRequest{
		MarketID: "mkt-1", Side: "yes", Quantity: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.TradesBackfilled)

	// el precio actual pasa a 0.60
	f.seed(t, mkSnap("mkt-1", at("2024-03-03", 9), 0.60))

	a, err := f.exec.Analytics(context.Background(), res.Order.ID)
	require.NoError(t, err)

	// 2@0.40 + 2@0.50: shares 4, invested 1.8, avg 0.45
	assert.Equal(t, 2, a.TotalTrades)
	assert.InDelta(t, 4.0, a.TotalShares, 1e-9)
	assert.InDelta(t, 1.8, a.TotalInvested, 1e-9)
	assert.InDelta(t, 0.45, a.AvgEntryPrice, 1e-9)
	// valorado a 0.60: value 2.4, pnl 0.6 (+33.33%)
	assert.InDelta(t, 0.60, a.CurrentPrice, 1e-9)
	assert.InDelta(t, 2.4, a.CurrentValue, 1e-9)
	assert.InDelta(t, 0.6, a.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 33.33, a.UnrealizedPnLPct, 1e-2)
	assert.Equal(t, "2024-03-01", a.FirstTradeDate)
	assert.Equal(t, "2024-03-02", a.LastTradeDate)

	_, err = f.exec.Analytics(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
