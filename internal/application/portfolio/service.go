package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
	"github.com/alejandrodnm/polytrack/internal/metrics"
	"github.com/alejandrodnm/polytrack/internal/ports"
	"github.com/google/uuid"
)

// Service owns the paper trading ledger: the two writers (Open and Close)
// plus the read models, which replay the full event history on every call.
// There is no cached aggregate state anywhere; determinism comes from the
// ledger order and the sorted iteration in the domain layer.
type Service struct {
	ledger  ports.TradeLedger
	prices  ports.PriceSeries
	catalog ports.MarketCatalog
	now     func() time.Time // swapped in tests

	mu    sync.Mutex
	locks map[domain.PositionKey]*sync.Mutex
}

// New creates the service with all dependencies injected.
func New(ledger ports.TradeLedger, prices ports.PriceSeries, catalog ports.MarketCatalog) *Service {
	return &Service{
		ledger:  ledger,
		prices:  prices,
		catalog: catalog,
		now:     time.Now,
		locks:   make(map[domain.PositionKey]*sync.Mutex),
	}
}

// lockKey serializes writers on one (market, side) key. Close reads the
// ledger to default its quantity before appending; without the lock two
// concurrent full closes would both see the position open and double it.
func (s *Service) lockKey(key domain.PositionKey) func() {
	s.mu.Lock()
	l := s.locks[key]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// priceFor resolves the price snapshot for an event: the most recent one
// at or before ts, falling back to the latest overall. A market with no
// snapshots at all is a domain.ErrNotFound.
func (s *Service) priceFor(ctx context.Context, marketID string, ts time.Time) (domain.Snapshot, error) {
	snap, err := s.prices.LatestAtOrBefore(ctx, marketID, ts)
	if errors.Is(err, domain.ErrNotFound) {
		snap, err = s.prices.Latest(ctx, marketID)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Snapshot{}, fmt.Errorf("no price history for market %s: %w", marketID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("resolve price: %w", err)
	}
	return snap, nil
}

// OpenRequest describes a position to open. AsOf prices and timestamps the
// event at a historical instant; zero means now. Origin and CorrelationID
// are filled by the recurring executor, manual callers leave them empty.
type OpenRequest struct {
	MarketID      string
	Side          string
	Quantity      float64
	Fees          float64
	AsOf          time.Time
	Origin        domain.Origin
	CorrelationID string
}

// CloseRequest describes a close against an existing position. Quantity 0
// closes the whole net position.
type CloseRequest struct {
	MarketID string
	Side     string
	Quantity float64
	Fees     float64
	AsOf     time.Time
}

// Open validates the request, resolves the market price and appends an
// OPEN event to the ledger.
func (s *Service) Open(ctx context.Context, req OpenRequest) (domain.TradeEvent, error) {
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Open: %w", err)
	}
	if req.MarketID == "" {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Open: missing market id: %w", domain.ErrInvalidArgument)
	}
	if req.Quantity <= 0 {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Open: quantity %.4f: %w", req.Quantity, domain.ErrInvalidArgument)
	}

	key := domain.PositionKey{MarketID: req.MarketID, Side: side}
	unlock := s.lockKey(key)
	defer unlock()

	createdAt := req.AsOf
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	snap, err := s.priceFor(ctx, req.MarketID, createdAt)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Open: %w", err)
	}

	origin := req.Origin
	if origin == "" {
		origin = domain.OriginManual
	}
	event := domain.TradeEvent{
		ID:            uuid.NewString(),
		CreatedAt:     createdAt,
		MarketID:      req.MarketID,
		Side:          side,
		Action:        domain.ActionOpen,
		Quantity:      req.Quantity,
		Price:         snap.Prices.ForSide(side),
		Fees:          req.Fees,
		PriceTS:       snap.TakenAt,
		Origin:        origin,
		CorrelationID: req.CorrelationID,
	}
	if err := event.Validate(); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Open: %w", err)
	}
	if err := s.ledger.Append(ctx, event); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Open: append: %w", err)
	}
	metrics.TradesRecorded.WithLabelValues(string(event.Action), string(event.Origin)).Inc()
	slog.Info("paper trade opened",
		"market", event.MarketID,
		"side", event.Side,
		"quantity", event.Quantity,
		"price", event.Price,
		"origin", event.Origin,
	)
	return event, nil
}

// Close appends a CLOSE event. The price is resolved before anything else:
// closing on an unpriced market is a NotFound no matter the quantity. An
// omitted quantity defaults to the key's current net quantity, and only
// that path rejects a missing or non-positive position (InvalidState); an
// explicit quantity is appended as-is, over-closes are matched FIFO and
// the excess simply never pairs with a lot.
func (s *Service) Close(ctx context.Context, req CloseRequest) (domain.TradeEvent, error) {
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: %w", err)
	}
	if req.MarketID == "" {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: missing market id: %w", domain.ErrInvalidArgument)
	}
	if req.Quantity < 0 {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: quantity %.4f: %w", req.Quantity, domain.ErrInvalidArgument)
	}

	key := domain.PositionKey{MarketID: req.MarketID, Side: side}
	unlock := s.lockKey(key)
	defer unlock()

	createdAt := req.AsOf
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	snap, err := s.priceFor(ctx, req.MarketID, createdAt)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: %w", err)
	}

	quantity := req.Quantity
	if quantity == 0 {
		events, err := s.ledger.List(ctx, req.MarketID)
		if err != nil {
			return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: list ledger: %w", err)
		}
		st := domain.ReplayPositions(events)[key]
		if st == nil || st.NetQuantity() <= 0 {
			return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: no open position for %s %s: %w",
				req.MarketID, side, domain.ErrInvalidState)
		}
		quantity = st.NetQuantity()
	}

	event := domain.TradeEvent{
		ID:        uuid.NewString(),
		CreatedAt: createdAt,
		MarketID:  req.MarketID,
		Side:      side,
		Action:    domain.ActionClose,
		Quantity:  quantity,
		Price:     snap.Prices.ForSide(side),
		Fees:      req.Fees,
		PriceTS:   snap.TakenAt,
		Origin:    domain.OriginManual,
	}
	if err := event.Validate(); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: %w", err)
	}
	if err := s.ledger.Append(ctx, event); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("portfolio.Close: append: %w", err)
	}
	metrics.TradesRecorded.WithLabelValues(string(event.Action), string(event.Origin)).Inc()
	slog.Info("paper trade closed",
		"market", event.MarketID,
		"side", event.Side,
		"quantity", event.Quantity,
		"price", event.Price,
	)
	return event, nil
}

// Trades returns the ledger newest first, enriched with market questions.
// marketID "" returns the whole history.
func (s *Service) Trades(ctx context.Context, marketID string) ([]domain.TradeEvent, error) {
	events, err := s.ledger.List(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("portfolio.Trades: %w", err)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	s.attachQuestions(ctx, events)
	return events, nil
}

// OpenPositions replays the whole ledger and values every key that still
// holds unconsumed lots at its latest observed price.
func (s *Service) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	events, err := s.ledger.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("portfolio.OpenPositions: list ledger: %w", err)
	}
	positions, _, err := s.valuedPositions(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("portfolio.OpenPositions: %w", err)
	}
	return positions, nil
}

// Summary totals the valued open positions plus the full-ledger realized
// P&L in one view.
func (s *Service) Summary(ctx context.Context) (domain.PortfolioSummary, error) {
	events, err := s.ledger.List(ctx, "")
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("portfolio.Summary: list ledger: %w", err)
	}
	positions, states, err := s.valuedPositions(ctx, events)
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("portfolio.Summary: %w", err)
	}
	return domain.Summarize(positions, states, len(events)), nil
}

// EquityCurve rebuilds the daily curve from the first trade date through
// today and recomputes the portfolio statistics over it.
func (s *Service) EquityCurve(ctx context.Context) ([]domain.EquityCurvePoint, domain.PortfolioStats, error) {
	events, err := s.ledger.List(ctx, "")
	if err != nil {
		return nil, domain.PortfolioStats{}, fmt.Errorf("portfolio.EquityCurve: list ledger: %w", err)
	}
	if len(events) == 0 {
		return []domain.EquityCurvePoint{}, domain.ComputeStats(nil, nil), nil
	}

	ids := make([]string, 0, 8)
	seen := make(map[string]bool, 8)
	for _, e := range events {
		if !seen[e.MarketID] {
			seen[e.MarketID] = true
			ids = append(ids, e.MarketID)
		}
	}

	fromDay := events[0].Day()
	toDay := domain.DayOf(s.now())
	daily, err := s.prices.DailyTable(ctx, ids, fromDay, toDay)
	if err != nil {
		return nil, domain.PortfolioStats{}, fmt.Errorf("portfolio.EquityCurve: daily prices: %w", err)
	}

	curve := domain.BuildEquityCurve(events, daily)
	stats := domain.ComputeStats(events, curve)
	return curve, stats, nil
}

// Stats recomputes the portfolio statistics. Thin wrapper over EquityCurve
// since Sharpe, drawdown and the trend regression all need the curve.
func (s *Service) Stats(ctx context.Context) (domain.PortfolioStats, error) {
	_, stats, err := s.EquityCurve(ctx)
	if err != nil {
		return domain.PortfolioStats{}, fmt.Errorf("portfolio.Stats: %w", err)
	}
	return stats, nil
}

// valuedPositions filters the replayed states down to open keys and marks
// them to market. Shared by OpenPositions and Summary. Catalog enrichment
// is best effort; a catalog failure downgrades to a warning.
func (s *Service) valuedPositions(ctx context.Context, events []domain.TradeEvent) ([]domain.Position, map[domain.PositionKey]*domain.PositionState, error) {
	states := domain.ReplayPositions(events)

	open := make([]domain.PositionKey, 0, len(states))
	for _, key := range domain.SortedKeys(states) {
		if states[key].RemainingQuantity() > 0 {
			open = append(open, key)
		}
	}
	if len(open) == 0 {
		return []domain.Position{}, states, nil
	}

	ids := make([]string, 0, len(open))
	seen := make(map[string]bool, len(open))
	for _, key := range open {
		if !seen[key.MarketID] {
			seen[key.MarketID] = true
			ids = append(ids, key.MarketID)
		}
	}

	snaps, err := s.prices.LatestBatch(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("latest prices: %w", err)
	}
	markets, err := s.catalog.GetBatch(ctx, ids)
	if err != nil {
		slog.Warn("portfolio: catalog lookup failed", "err", err)
		markets = map[string]domain.Market{}
	}

	positions := make([]domain.Position, 0, len(open))
	for _, key := range open {
		var pp *domain.PricePoint
		if snap, ok := snaps[key.MarketID]; ok {
			prices := snap.Prices
			pp = &prices
		}
		pos := states[key].Valued(pp)
		if m, ok := markets[key.MarketID]; ok {
			pos.Question = m.Question
			pos.Closed = m.Closed
		}
		positions = append(positions, pos)
	}
	return positions, states, nil
}

// attachQuestions fills the display question of each event from the
// catalog. Best effort: unknown markets stay blank.
func (s *Service) attachQuestions(ctx context.Context, events []domain.TradeEvent) {
	if len(events) == 0 {
		return
	}
	ids := make([]string, 0, 8)
	seen := make(map[string]bool, 8)
	for _, e := range events {
		if !seen[e.MarketID] {
			seen[e.MarketID] = true
			ids = append(ids, e.MarketID)
		}
	}
	markets, err := s.catalog.GetBatch(ctx, ids)
	if err != nil {
		slog.Warn("portfolio: catalog lookup failed", "err", err)
		return
	}
	for i := range events {
		if m, ok := markets[events[i].MarketID]; ok {
			events[i].Question = m.Question
		}
	}
}
