package domain

import "time"

// RecurringOrder is a standing instruction to open a fixed quantity on one
// market side once per day, priced at that day's first available snapshot.
// Cancelling deactivates the order; the trades it produced stay in the
// ledger.
type RecurringOrder struct {
	ID        string    `json:"recurring_id"`
	MarketID  string    `json:"market_id"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at_utc"`
	// LastExecuted is the day (YYYY-MM-DD) of the most recent placement,
	// empty when the order never ran.
	LastExecuted string `json:"last_executed_date,omitempty"`
	TradesPlaced int    `json:"total_trades_placed"`
	Question     string `json:"question,omitempty"` // catalog enrichment
}

// RecurringAnalytics aggregates the ledger events one order produced,
// valued at the latest observed price.
type RecurringAnalytics struct {
	Order            RecurringOrder `json:"order"`
	TotalTrades      int            `json:"total_trades"`
	TotalShares      float64        `json:"total_shares"`
	TotalInvested    float64        `json:"total_invested"`
	AvgEntryPrice    float64        `json:"avg_entry_price"`
	CurrentPrice     float64        `json:"current_price"`
	CurrentValue     float64        `json:"current_value"`
	UnrealizedPnL    float64        `json:"unrealized_pnl"`
	UnrealizedPnLPct float64        `json:"unrealized_pnl_pct"`
	FirstTradeDate   string         `json:"first_trade_date,omitempty"`
	LastTradeDate    string         `json:"last_trade_date,omitempty"`
}

// FirstSnapshotPerDay keeps the first snapshot of each UTC calendar day.
// Input must be ascending by TakenAt; day order is preserved.
func FirstSnapshotPerDay(snaps []Snapshot) []Snapshot {
	seen := make(map[string]struct{}, len(snaps))
	var firsts []Snapshot
	for _, s := range snaps {
		day := s.Day()
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		firsts = append(firsts, s)
	}
	return firsts
}

// ComputeRecurringAnalytics values the order's accumulated shares at
// currentPrice. events are the ledger entries whose CorrelationID matches
// the order, in ledger order; currentPrice 0 means no snapshot exists.
func ComputeRecurringAnalytics(order RecurringOrder, events []TradeEvent, currentPrice float64) RecurringAnalytics {
	a := RecurringAnalytics{
		Order:        order,
		CurrentPrice: roundTo(currentPrice, 6),
	}
	if len(events) == 0 {
		return a
	}

	var shares, invested float64
	for _, e := range events {
		shares += e.Quantity
		invested += e.Quantity * e.Price
	}
	avgEntry := 0.0
	if shares > 0 {
		avgEntry = invested / shares
	}
	value := shares * currentPrice
	unrealized := value - invested
	pct := 0.0
	if invested > 0 {
		pct = unrealized / invested * 100
	}

	a.TotalTrades = len(events)
	a.TotalShares = roundTo(shares, 4)
	a.TotalInvested = roundTo(invested, 4)
	a.AvgEntryPrice = roundTo(avgEntry, 6)
	a.CurrentValue = roundTo(value, 4)
	a.UnrealizedPnL = roundTo(unrealized, 4)
	a.UnrealizedPnLPct = roundTo(pct, 2)
	a.FirstTradeDate = events[0].Day()
	a.LastTradeDate = events[len(events)-1].Day()
	return a
}
