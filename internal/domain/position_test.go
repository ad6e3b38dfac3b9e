package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mkEvent construye un evento de test fechado a mediodía UTC del día dado.
func mkEvent(day, marketID string, side Side, action Action, qty, price float64) TradeEvent {
	ts, err := time.Parse(time.RFC3339, day+"T12:00:00Z")
	if err != nil {
		panic(err)
	}
	return TradeEvent{
		ID:        marketID + "-" + day + "-" + string(action),
		CreatedAt: ts,
		MarketID:  marketID,
		Side:      side,
		Action:    action,
		Quantity:  qty,
		Price:     price,
		PriceTS:   ts,
		Origin:    OriginManual,
	}
}

func TestReplayPositions_FIFOPartialClose(t *testing.T) {
	// OPEN 5@0.30, OPEN 5@0.50, CLOSE 5@0.60
	// FIFO consume el lote de 0.30 → realized = 5×(0.60−0.30) = 1.5
	// queda un lote de 5@0.50
	events := []TradeEvent{
		mkEvent("2025-01-01", "mkt-1", SideYes, ActionOpen, 5, 0.30),
		mkEvent("2025-01-02", "mkt-1", SideYes, ActionOpen, 5, 0.50),
		mkEvent("2025-01-03", "mkt-1", SideYes, ActionClose, 5, 0.60),
	}
	states := ReplayPositions(events)
	st := states[PositionKey{MarketID: "mkt-1", Side: SideYes}]
	require.NotNil(t, st)

	assert.InDelta(t, 1.5, st.RealizedPnL, 1e-9)
	assert.InDelta(t, 5.0, st.RemainingQuantity(), 1e-9)
	assert.InDelta(t, 2.5, st.RemainingCost(), 1e-9) // 5×0.50
	assert.InDelta(t, 5.0, st.NetQuantity(), 1e-9)
	assert.InDelta(t, 0.40, st.AvgEntryPrice(), 1e-9) // (1.5+2.5)/10
	assert.Equal(t, "2025-01-03", st.LastTradeDate)
}

func TestReplayPositions_OverCloseIsTolerated(t *testing.T) {
	// CLOSE de 10 contra 5 abiertas: solo casan 5, el resto se descarta
	events := []TradeEvent{
		mkEvent("2025-01-01", "mkt-1", SideYes, ActionOpen, 5, 0.40),
		mkEvent("2025-01-02", "mkt-1", SideYes, ActionClose, 10, 0.50),
	}
	states := ReplayPositions(events)
	st := states[PositionKey{MarketID: "mkt-1", Side: SideYes}]
	require.NotNil(t, st)

	assert.InDelta(t, 0.5, st.RealizedPnL, 1e-9) // 5×(0.50−0.40)
	assert.InDelta(t, 0.0, st.RemainingQuantity(), 1e-9)
	assert.InDelta(t, -5.0, st.NetQuantity(), 1e-9)
}

func TestReplayPositions_KeysAreIndependent(t *testing.T) {
	events := []TradeEvent{
		mkEvent("2025-01-01", "mkt-1", SideYes, ActionOpen, 10, 0.40),
		mkEvent("2025-01-01", "mkt-1", SideNo, ActionOpen, 4, 0.60),
		mkEvent("2025-01-02", "mkt-2", SideYes, ActionOpen, 2, 0.20),
		mkEvent("2025-01-03", "mkt-1", SideYes, ActionClose, 10, 0.50),
	}
	states := ReplayPositions(events)
	require.Len(t, states, 3)

	yes := states[PositionKey{MarketID: "mkt-1", Side: SideYes}]
	no := states[PositionKey{MarketID: "mkt-1", Side: SideNo}]
	assert.InDelta(t, 0.0, yes.RemainingQuantity(), 1e-9)
	assert.InDelta(t, 1.0, yes.RealizedPnL, 1e-9) // 10×(0.50−0.40)
	assert.InDelta(t, 4.0, no.RemainingQuantity(), 1e-9)
	assert.InDelta(t, 0.0, no.RealizedPnL, 1e-9)
}

func TestPositionState_Valued_WithPrice(t *testing.T) {
	events := []TradeEvent{
		mkEvent("2025-01-01", "mkt-1", SideYes, ActionOpen, 5, 0.30),
		mkEvent("2025-01-02", "mkt-1", SideYes, ActionOpen, 5, 0.50),
		mkEvent("2025-01-03", "mkt-1", SideYes, ActionClose, 5, 0.60),
	}
	st := ReplayPositions(events)[PositionKey{MarketID: "mkt-1", Side: SideYes}]

	pos := st.Valued(&PricePoint{Yes: 0.60, No: 0.40})
	// quedan 5@0.50 → valor 3.0, base 2.5, unrealized 0.5, +20%
	assert.InDelta(t, 3.0, pos.MarketValue, 1e-9)
	assert.InDelta(t, 2.5, pos.CostBasis, 1e-9)
	assert.InDelta(t, 0.5, pos.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 20.0, pos.UnrealizedPnLPct, 1e-9)
	assert.InDelta(t, 0.40, pos.AvgEntryPrice, 1e-9)
	assert.InDelta(t, 5.0, pos.NetQuantity, 1e-9)
	assert.InDelta(t, 5.0, pos.OpenQuantity, 1e-9)
}

func TestPositionState_Valued_NoPriceHistory(t *testing.T) {
	// sin snapshot jamás: se valora al coste de entrada, unrealized 0
	events := []TradeEvent{
		mkEvent("2025-01-01", "mkt-1", SideNo, ActionOpen, 10, 0.25),
	}
	st := ReplayPositions(events)[PositionKey{MarketID: "mkt-1", Side: SideNo}]

	pos := st.Valued(nil)
	assert.InDelta(t, 0.25, pos.CurrentPrice, 1e-9)
	assert.InDelta(t, 2.5, pos.MarketValue, 1e-9)
	assert.InDelta(t, 0.0, pos.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0.0, pos.UnrealizedPnLPct, 1e-9)
}

func TestSummarize_Totals(t *testing.T) {
	events := []TradeEvent{
		mkEvent("2025-01-01", "mkt-1", SideYes, ActionOpen, 10, 0.40),
		mkEvent("2025-01-02", "mkt-2", SideNo, ActionOpen, 10, 0.20),
		mkEvent("2025-01-03", "mkt-1", SideYes, ActionClose, 5, 0.60),
	}
	states := ReplayPositions(events)

	var positions []Position
	for _, k := range SortedKeys(states) {
		st := states[k]
		if st.RemainingQuantity() <= 0 {
			continue
		}
		prices := PricePoint{Yes: 0.50, No: 0.30}
		positions = append(positions, st.Valued(&prices))
	}
	require.Len(t, positions, 2)

	sum := Summarize(positions, states, len(events))
	// mkt-1: 5@0.40 restantes a 0.50 → valor 2.5, base 2.0
	// mkt-2: 10@0.20 a 0.30 → valor 3.0, base 2.0
	assert.InDelta(t, 5.5, sum.TotalEquity, 1e-9)
	assert.InDelta(t, 4.0, sum.TotalCostBasis, 1e-9)
	assert.InDelta(t, 1.5, sum.TotalUnrealizedPnL, 1e-9)
	assert.InDelta(t, 1.0, sum.TotalRealizedPnL, 1e-9) // 5×(0.60−0.40)
	assert.Equal(t, 2, sum.OpenPositionCount)
	assert.Equal(t, 3, sum.TotalTrades)
}

func TestSortedKeys_Deterministic(t *testing.T) {
	states := map[PositionKey]*PositionState{
		{MarketID: "b", Side: SideYes}: {},
		{MarketID: "a", Side: SideYes}: {},
		{MarketID: "a", Side: SideNo}:  {},
	}
	keys := SortedKeys(states)
	assert.Equal(t, []PositionKey{
		{MarketID: "a", Side: SideNo},
		{MarketID: "a", Side: SideYes},
		{MarketID: "b", Side: SideYes},
	}, keys)
}
