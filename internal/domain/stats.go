package domain

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Trend directions reported by the regression block.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendNone = "none"
)

// PortfolioStats summarizes the whole trading history. Pointer fields stay
// nil when the data is insufficient to define them (no closes, too few
// curve points, zero variance).
type PortfolioStats struct {
	TotalWins        int      `json:"total_wins"`
	TotalLosses      int      `json:"total_losses"`
	WinRate          *float64 `json:"win_rate"`
	AvgWin           float64  `json:"avg_win"`
	AvgLoss          float64  `json:"avg_loss"`
	ProfitFactor     *float64 `json:"profit_factor"`
	SharpeRatio      *float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	Slope            *float64 `json:"regression_slope"`
	RSquared         *float64 `json:"regression_r_squared"`
	PValue           *float64 `json:"regression_p_value"`
	TrendSignificant bool     `json:"trend_significant"`
	TrendDirection   string   `json:"trend_direction"`
}

// closePnLs replays the ledger and returns one realized P&L per CLOSE
// event, FIFO-matched. A close that finds no lots still yields an entry
// (0.0), so it counts toward the win-rate denominator without being a win
// or a loss.
func closePnLs(events []TradeEvent) []float64 {
	queues := make(map[PositionKey]*lotQueue)
	var pnls []float64
	for _, e := range events {
		key := PositionKey{MarketID: e.MarketID, Side: e.Side}
		q := queues[key]
		if q == nil {
			q = &lotQueue{}
			queues[key] = q
		}
		switch e.Action {
		case ActionOpen:
			q.open(e.Quantity, e.Price)
		case ActionClose:
			pnls = append(pnls, q.close(e.Quantity, e.Price))
		}
	}
	return pnls
}

// ComputeStats derives win/loss measures from per-close FIFO outcomes and
// risk measures from the equity curve. Everything is recomputed from
// scratch on every call; there is no cached state to invalidate.
func ComputeStats(events []TradeEvent, curve []EquityCurvePoint) PortfolioStats {
	stats := PortfolioStats{TrendDirection: TrendNone}
	if len(events) == 0 && len(curve) == 0 {
		return stats
	}

	if pnls := closePnLs(events); len(pnls) > 0 {
		var wins, losses []float64
		for _, p := range pnls {
			switch {
			case p > 0:
				wins = append(wins, p)
			case p < 0:
				losses = append(losses, p)
			}
		}
		stats.TotalWins = len(wins)
		stats.TotalLosses = len(losses)
		rate := roundTo(float64(len(wins))/float64(len(pnls))*100, 2)
		stats.WinRate = &rate
		var winSum, lossSum float64
		if len(wins) > 0 {
			winSum = floatsSum(wins)
			stats.AvgWin = roundTo(winSum/float64(len(wins)), 4)
		}
		if len(losses) > 0 {
			lossSum = math.Abs(floatsSum(losses))
			stats.AvgLoss = roundTo(-lossSum/float64(len(losses)), 4)
		}
		if lossSum > 0 {
			pf := roundTo(winSum/lossSum, 4)
			stats.ProfitFactor = &pf
		}
	}

	// Sharpe sobre las variaciones diarias del P&L total; stdev muestral
	// (denominador N−1). Con varianza cero el ratio queda indefinido.
	if len(curve) >= 2 {
		deltas := make([]float64, len(curve)-1)
		for i := 1; i < len(curve); i++ {
			deltas[i-1] = curve[i].TotalPnL - curve[i-1].TotalPnL
		}
		mean := stat.Mean(deltas, nil)
		std := stat.StdDev(deltas, nil)
		if std > 0 {
			sharpe := roundTo(mean/std, 4)
			stats.SharpeRatio = &sharpe
		}
	}

	if len(curve) > 0 {
		peak := curve[0].TotalPnL
		maxDD := 0.0
		for _, pt := range curve {
			if pt.TotalPnL > peak {
				peak = pt.TotalPnL
			}
			if dd := peak - pt.TotalPnL; dd > maxDD {
				maxDD = dd
			}
		}
		stats.MaxDrawdown = roundTo(maxDD, 4)
	}

	// OLS del P&L total contra el índice de día. La significancia usa el
	// p-value bilateral del estadístico t de la pendiente.
	if len(curve) >= 3 {
		xs := make([]float64, len(curve))
		ys := make([]float64, len(curve))
		for i, pt := range curve {
			xs[i] = float64(i)
			ys[i] = pt.TotalPnL
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		r2 := stat.RSquared(xs, ys, nil, alpha, beta)
		if math.IsNaN(r2) {
			// curva plana: no hay varianza que explicar
			r2 = 0
		}
		df := float64(len(curve) - 2)
		var p float64
		if r2 >= 1 {
			p = 0
		} else {
			t := math.Sqrt(r2 * df / (1 - r2))
			p = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
		}
		slope := roundTo(beta, 6)
		rsq := roundTo(r2, 4)
		pv := roundTo(p, 6)
		stats.Slope = &slope
		stats.RSquared = &rsq
		stats.PValue = &pv
		stats.TrendSignificant = p < 0.05
		if stats.TrendSignificant {
			if beta > 0 {
				stats.TrendDirection = TrendUp
			} else {
				stats.TrendDirection = TrendDown
			}
		}
	}

	return stats
}

func floatsSum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}
