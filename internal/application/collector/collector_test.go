package collector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeProvider struct {
	mu         sync.Mutex
	markets    map[string][]domain.Market // por tag
	marketsErr map[string]error           // por tag
	snapAt     time.Time
	yesPrice   map[string]float64 // por market id
	snapsErr   error
	batches    [][]string // lotes pedidos a FetchSnapshots
}

func (p *fakeProvider) FetchMarkets(_ context.Context, tag string) ([]domain.Market, error) {
	if err := p.marketsErr[tag]; err != nil {
		return nil, err
	}
	return p.markets[tag], nil
}

func (p *fakeProvider) FetchSnapshots(_ context.Context, marketIDs []string) ([]domain.Snapshot, error) {
	p.mu.Lock()
	p.batches = append(p.batches, append([]string(nil), marketIDs...))
	p.mu.Unlock()
	if p.snapsErr != nil {
		return nil, p.snapsErr
	}
	snaps := make([]domain.Snapshot, 0, len(marketIDs))
	for _, id := range marketIDs {
		yes, ok := p.yesPrice[id]
		if !ok {
			continue
		}
		snaps = append(snaps, domain.Snapshot{
			MarketID: id,
			TakenAt:  p.snapAt,
			Prices:   domain.PricePoint{Yes: yes, No: 1 - yes},
		})
	}
	return snaps, nil
}

type memCatalog struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func (m *memCatalog) Upsert(_ context.Context, markets []domain.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range markets {
		if existing, ok := m.markets[mk.ID]; ok {
			mk.FirstSeen = existing.FirstSeen
		}
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
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Market, 0, len(m.markets))
	for _, mk := range m.markets {
		if mk.Active && !mk.Closed {
			out = append(out, mk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPrices struct {
	mu   sync.Mutex
	keys map[string]bool // market_id + taken_at
}

func newMemPrices() *memPrices {
	return &memPrices{keys: make(map[string]bool)}
}

func (m *memPrices) Insert(_ context.Context, snaps []domain.Snapshot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range snaps {
		key := s.MarketID + "|" + s.TakenAt.UTC().Format(time.RFC3339Nano)
		if m.keys[key] {
			continue
		}
		m.keys[key] = true
		n++
	}
	return n, nil
}

func (m *memPrices) LatestAtOrBefore(_ context.Context, _ string, _ time.Time) (domain.Snapshot, error) {
	return domain.Snapshot{}, domain.ErrNotFound
}

func (m *memPrices) Latest(_ context.Context, _ string) (domain.Snapshot, error) {
	return domain.Snapshot{}, domain.ErrNotFound
}

func (m *memPrices) LatestBatch(_ context.Context, _ []string) (map[string]domain.Snapshot, error) {
	return map[string]domain.Snapshot{}, nil
}

func (m *memPrices) ListAsc(_ context.Context, _ string) ([]domain.Snapshot, error) {
	return nil, nil
}

func (m *memPrices) DailyTable(_ context.Context, _ []string, _, _ string) (domain.DailyPriceTable, error) {
	return domain.DailyPriceTable{}, nil
}

// --- helpers ---

func mkMarket(id, question string) domain.Market {
	return domain.Market{ID: id, Question: question, Active: true}
}

// --- tests ---

func TestCollector_RunOnce_DiscoverFilterSnapshot(t *testing.T) {
	provider := &fakeProvider{
		markets: map[string][]domain.Market{
			"politics": {
				mkMarket("m1", "Will Trump win in 2028?"),
				mkMarket("m2", "Will it rain tomorrow?"),
				mkMarket("m3", "Trump approval above 50%?"),
			},
		},
		snapAt:   time.Now().UTC(),
		yesPrice: map[string]float64{"m1": 0.40, "m3": 0.25},
	}
	catalog := &memCatalog{markets: make(map[string]domain.Market)}
	prices := newMemPrices()

	c := New(Config{Tags: []string{"politics"}, Keywords: []string{"trump"}}, provider, catalog, prices)
	result, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.MarketsSeen)
	assert.Equal(t, 2, result.MarketsKept, "m2 no pasa el filtro de keywords")
	assert.Equal(t, 2, result.MarketsTracked)
	assert.Equal(t, 2, result.SnapshotsNew)
	assert.Empty(t, result.Errors)

	_, err = catalog.Get(context.Background(), "m1")
	assert.NoError(t, err)
	_, err = catalog.Get(context.Background(), "m2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollector_RunOnce_DeduplicatesAcrossTags(t *testing.T) {
	shared := mkMarket("m1", "Shared market?")
	provider := &fakeProvider{
		markets: map[string][]domain.Market{
			"tag-a": {shared, mkMarket("m2", "Only in A?")},
			"tag-b": {shared, mkMarket("m3", "Only in B?")},
		},
		snapAt:   time.Now().UTC(),
		yesPrice: map[string]float64{"m1": 0.5, "m2": 0.5, "m3": 0.5},
	}
	catalog := &memCatalog{markets: make(map[string]domain.Market)}
	prices := newMemPrices()

	c := New(Config{Tags: []string{"tag-a", "tag-b"}}, provider, catalog, prices)
	result, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.MarketsSeen, "m1 cuenta una sola vez")
	assert.Equal(t, 3, result.MarketsTracked)
}

func TestCollector_RunOnce_TagFailureDoesNotAbort(t *testing.T) {
	provider := &fakeProvider{
		markets: map[string][]domain.Market{
			"good": {mkMarket("m1", "Works?")},
		},
		marketsErr: map[string]error{"bad": errors.New("gamma 500")},
		snapAt:     time.Now().UTC(),
		yesPrice:   map[string]float64{"m1": 0.5},
	}
	catalog := &memCatalog{markets: make(map[string]domain.Market)}
	prices := newMemPrices()

	c := New(Config{Tags: []string{"bad", "good"}}, provider, catalog, prices)
	result, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.MarketsSeen)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.SnapshotsNew)
}

func TestCollector_RunOnce_SecondCycleSkipsDuplicateSnapshots(t *testing.T) {
	provider := &fakeProvider{
		markets: map[string][]domain.Market{
			"tag": {mkMarket("m1", "Q?")},
		},
		snapAt:   time.Now().UTC(),
		yesPrice: map[string]float64{"m1": 0.5},
	}
	catalog := &memCatalog{markets: make(map[string]domain.Market)}
	prices := newMemPrices()

	c := New(Config{Tags: []string{"tag"}}, provider, catalog, prices)

	first, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.SnapshotsNew)

	// el provider devuelve el mismo timestamp: el insert lo descarta
	second, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.SnapshotsNew)
}

func TestCollector_RunOnce_RespectsBatchSize(t *testing.T) {
	markets := []domain.Market{
		mkMarket("m1", "Q1?"), mkMarket("m2", "Q2?"), mkMarket("m3", "Q3?"),
		mkMarket("m4", "Q4?"), mkMarket("m5", "Q5?"),
	}
	yes := map[string]float64{"m1": 0.1, "m2": 0.2, "m3": 0.3, "m4": 0.4, "m5": 0.5}
	provider := &fakeProvider{
		markets:  map[string][]domain.Market{"tag": markets},
		snapAt:   time.Now().UTC(),
		yesPrice: yes,
	}
	catalog := &memCatalog{markets: make(map[string]domain.Market)}
	prices := newMemPrices()

	c := New(Config{Tags: []string{"tag"}, BatchSize: 2, Workers: 2}, provider, catalog, prices)
	result, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.SnapshotsNew)
	require.Len(t, provider.batches, 3, "5 ids en lotes de 2 → 3 lotes")
	for _, batch := range provider.batches {
		assert.LessOrEqual(t, len(batch), 2)
	}
}

func TestCollector_RunOnce_MaxMarketsCapsNewEntries(t *testing.T) {
	provider := &fakeProvider{
		markets: map[string][]domain.Market{
			"tag": {mkMarket("m1", "Q1?"), mkMarket("m2", "Q2?"), mkMarket("m3", "Q3?")},
		},
		snapAt:   time.Now().UTC(),
		yesPrice: map[string]float64{"m1": 0.1, "m2": 0.2, "m3": 0.3},
	}
	catalog := &memCatalog{markets: make(map[string]domain.Market)}
	prices := newMemPrices()

	c := New(Config{Tags: []string{"tag"}, MaxMarkets: 2}, provider, catalog, prices)
	result, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.MarketsSeen)
	assert.Equal(t, 2, result.MarketsKept)
	assert.Equal(t, 2, result.MarketsTracked)
}
