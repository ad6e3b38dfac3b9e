package domain

import "sort"

// PositionKey identifies one tracked exposure: a market and a side.
type PositionKey struct {
	MarketID string
	Side     Side
}

// PositionState is the replayed state of one key after walking the full
// ledger in order. It keeps both the all-time accumulators and the FIFO
// lot queue; valuation always works off the remaining lots.
type PositionState struct {
	Key           PositionKey
	OpenQuantity  float64 // Σ qty over OPEN events, all time
	OpenCost      float64 // Σ qty·price over OPEN events, all time
	CloseQuantity float64 // Σ qty over CLOSE events, all time
	CloseRevenue  float64 // Σ qty·price over CLOSE events, all time
	RealizedPnL   float64 // FIFO-matched P&L of every CLOSE
	LastTradeDate string  // max event date, YYYY-MM-DD
	lots          lotQueue
}

// NetQuantity is the ledger net: opened minus closed quantity. It is the
// default quantity for a full close and can diverge from RemainingQuantity
// after an over-close (the excess never consumed a lot).
func (s *PositionState) NetQuantity() float64 {
	return s.OpenQuantity - s.CloseQuantity
}

// AvgEntryPrice averages every OPEN ever recorded for the key, consumed or
// not. Informational only; P&L uses the remaining lot basis.
func (s *PositionState) AvgEntryPrice() float64 {
	if s.OpenQuantity <= 0 {
		return 0
	}
	return s.OpenCost / s.OpenQuantity
}

// RemainingQuantity is the unconsumed quantity left in the FIFO lots.
func (s *PositionState) RemainingQuantity() float64 {
	return s.lots.quantity()
}

// RemainingCost is the entry cost of the unconsumed lots.
func (s *PositionState) RemainingCost() float64 {
	return s.lots.cost()
}

// ReplayPositions folds the ledger into per-key state. Events must arrive
// in ledger order: created_at ascending, insertion order breaking ties.
func ReplayPositions(events []TradeEvent) map[PositionKey]*PositionState {
	states := make(map[PositionKey]*PositionState)
	for _, e := range events {
		key := PositionKey{MarketID: e.MarketID, Side: e.Side}
		st := states[key]
		if st == nil {
			st = &PositionState{Key: key}
			states[key] = st
		}
		switch e.Action {
		case ActionOpen:
			st.OpenQuantity += e.Quantity
			st.OpenCost += e.Quantity * e.Price
			st.lots.open(e.Quantity, e.Price)
		case ActionClose:
			st.CloseQuantity += e.Quantity
			st.CloseRevenue += e.Quantity * e.Price
			st.RealizedPnL += st.lots.close(e.Quantity, e.Price)
		}
		if day := e.Day(); day > st.LastTradeDate {
			st.LastTradeDate = day
		}
	}
	return states
}

// SortedKeys returns the state keys ordered by market then side, so that
// float accumulations and listings stay deterministic run to run.
func SortedKeys(states map[PositionKey]*PositionState) []PositionKey {
	keys := make([]PositionKey, 0, len(states))
	for k := range states {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MarketID != keys[j].MarketID {
			return keys[i].MarketID < keys[j].MarketID
		}
		return keys[i].Side < keys[j].Side
	})
	return keys
}

// Position is an open exposure valued at the latest observed price and
// enriched with catalog metadata, ready for display or serialization.
type Position struct {
	MarketID      string  `json:"market_id"`
	Question      string  `json:"question"`
	Side          Side    `json:"side"`
	NetQuantity   float64 `json:"net_quantity"`
	OpenQuantity  float64 `json:"open_quantity"` // units remaining in the lots
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CostBasis     float64 `json:"cost_basis"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	// UnrealizedPnLPct is relative to the remaining lot basis, 0 when the
	// basis is 0.
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
	LastTradeDate    string  `json:"last_trade_date"`
	Closed           bool    `json:"closed"`
}

// Valued marks the key's remaining lots to market. A nil price point means
// the market was never priced: the lots then value at their own entry cost
// and contribute zero unrealized P&L, same as the equity curve fallback.
func (s *PositionState) Valued(prices *PricePoint) Position {
	qty := s.lots.quantity()
	basis := s.lots.cost()
	price := s.lots.avgPrice()
	if prices != nil {
		price = prices.ForSide(s.Key.Side)
	}
	value := qty * price
	unrealized := value - basis
	pct := 0.0
	if basis > 0 {
		pct = unrealized / basis * 100
	}
	return Position{
		MarketID:         s.Key.MarketID,
		Side:             s.Key.Side,
		NetQuantity:      s.NetQuantity(),
		OpenQuantity:     qty,
		AvgEntryPrice:    s.AvgEntryPrice(),
		CostBasis:        roundTo(basis, 4),
		CurrentPrice:     price,
		MarketValue:      roundTo(value, 4),
		UnrealizedPnL:    roundTo(unrealized, 4),
		UnrealizedPnLPct: roundTo(pct, 2),
		LastTradeDate:    s.LastTradeDate,
	}
}

// PortfolioSummary totals the whole portfolio in one view.
type PortfolioSummary struct {
	TotalEquity        float64 `json:"total_equity"`
	TotalCostBasis     float64 `json:"total_cost_basis"`
	TotalUnrealizedPnL float64 `json:"total_unrealized_pnl"`
	TotalRealizedPnL   float64 `json:"total_realized_pnl"`
	OpenPositionCount  int     `json:"open_position_count"`
	TotalTrades        int     `json:"total_trades"`
}

// Summarize totals the valued open positions plus the full-ledger FIFO
// realized P&L. totalEvents is the size of the whole ledger.
func Summarize(positions []Position, states map[PositionKey]*PositionState, totalEvents int) PortfolioSummary {
	var equity, basis, unrealized, realized float64
	for _, p := range positions {
		equity += p.MarketValue
		basis += p.CostBasis
		unrealized += p.UnrealizedPnL
	}
	for _, k := range SortedKeys(states) {
		realized += states[k].RealizedPnL
	}
	return PortfolioSummary{
		TotalEquity:        roundTo(equity, 4),
		TotalCostBasis:     roundTo(basis, 4),
		TotalUnrealizedPnL: roundTo(unrealized, 4),
		TotalRealizedPnL:   roundTo(realized, 4),
		OpenPositionCount:  len(positions),
		TotalTrades:        totalEvents,
	}
}
