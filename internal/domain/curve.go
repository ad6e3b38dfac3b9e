package domain

import "sort"

// EquityCurvePoint is one day of the mark-to-market valuation series.
// Trade counters run cumulatively from the start of the ledger.
type EquityCurvePoint struct {
	Date               string  `json:"date"`
	TotalPnL           float64 `json:"total_pnl"`
	UnrealizedPnL      float64 `json:"unrealized_pnl"`
	RealizedPnL        float64 `json:"realized_pnl"`
	CumulativeInvested float64 `json:"cumulative_invested"`
	PortfolioValue     float64 `json:"portfolio_value"`
	OpenTrades         int     `json:"total_open_trades"`
	CloseTrades        int     `json:"total_close_trades"`
}

// DailyPriceTable maps date (YYYY-MM-DD) to the last known price of each
// market on that day.
type DailyPriceTable map[string]map[string]PricePoint

// BuildEquityCurve replays the ledger chronologically and marks the open
// lots to market using the daily price table. The date axis is the sorted
// union of trade dates and table dates; a day with neither emits no point.
// Prices carry forward across gaps, and a market never priced values its
// lots at their own entry cost (zero unrealized contribution).
//
// The builder is a pure function of its two inputs: identical inputs
// produce an identical curve, which Sharpe, drawdown and the trend
// regression all rely on.
func BuildEquityCurve(events []TradeEvent, daily DailyPriceTable) []EquityCurvePoint {
	if len(events) == 0 {
		return nil
	}

	byDay := make(map[string][]TradeEvent)
	daySet := make(map[string]struct{})
	for _, e := range events {
		day := e.Day()
		byDay[day] = append(byDay[day], e)
		daySet[day] = struct{}{}
	}
	for day := range daily {
		daySet[day] = struct{}{}
	}
	days := make([]string, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Strings(days)

	// Las colas se recorren en orden de primera aparición para que las
	// sumas de floats sean idénticas ejecución tras ejecución.
	queues := make(map[PositionKey]*lotQueue)
	keyOrder := make([]PositionKey, 0)
	lastKnown := make(map[string]PricePoint)

	var invested, realized float64
	var opens, closes int

	curve := make([]EquityCurvePoint, 0, len(days))
	for _, day := range days {
		for _, e := range byDay[day] {
			key := PositionKey{MarketID: e.MarketID, Side: e.Side}
			q := queues[key]
			if q == nil {
				q = &lotQueue{}
				queues[key] = q
				keyOrder = append(keyOrder, key)
			}
			switch e.Action {
			case ActionOpen:
				q.open(e.Quantity, e.Price)
				invested += e.Quantity * e.Price
				opens++
			case ActionClose:
				realized += q.close(e.Quantity, e.Price)
				closes++
			}
		}

		for marketID, prices := range daily[day] {
			lastKnown[marketID] = prices
		}

		var unrealized, value float64
		for _, key := range keyOrder {
			q := queues[key]
			qty := q.quantity()
			if qty <= 0 {
				continue
			}
			price := q.avgPrice()
			if prices, ok := lastKnown[key.MarketID]; ok {
				price = prices.ForSide(key.Side)
			}
			value += qty * price
			unrealized += qty*price - q.cost()
		}

		curve = append(curve, EquityCurvePoint{
			Date:               day,
			TotalPnL:           roundTo(unrealized+realized, 4),
			UnrealizedPnL:      roundTo(unrealized, 4),
			RealizedPnL:        roundTo(realized, 4),
			CumulativeInvested: roundTo(invested, 4),
			PortfolioValue:     roundTo(value, 4),
			OpenTrades:         opens,
			CloseTrades:        closes,
		})
	}
	return curve
}
