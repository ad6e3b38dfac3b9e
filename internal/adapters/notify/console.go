package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier imprimiendo tablas legibles. Es el
// notificador del CLI; el API sirve el mismo contenido como JSON.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// NotifyPositions imprime las posiciones abiertas valoradas y el resumen.
func (c *Console) NotifyPositions(_ context.Context, positions []domain.Position, summary domain.PortfolioSummary) error {
	now := time.Now().Format("15:04:05")

	if len(positions) == 0 {
		fmt.Fprintf(c.out, "[%s] no open positions\n", now)
	} else {
		fmt.Fprintf(c.out, "\n[%s] %d open positions\n", now, len(positions))

		table := tablewriter.NewWriter(c.out)
		table.Header("Market", "Side", "Qty", "Entry", "Price", "Value", "PnL", "PnL%", "Last")

		for _, p := range positions {
			label := domain.TruncateQuestion(p.Question, p.MarketID, 38)
			if p.Closed {
				label += " [closed]"
			}
			table.Append(
				label,
				string(p.Side),
				fmt.Sprintf("%.2f", p.OpenQuantity),
				fmt.Sprintf("%.4f", p.AvgEntryPrice),
				fmt.Sprintf("%.4f", p.CurrentPrice),
				fmt.Sprintf("$%.2f", p.MarketValue),
				fmt.Sprintf("$%.4f", p.UnrealizedPnL),
				fmt.Sprintf("%+.2f%%", p.UnrealizedPnLPct),
				p.LastTradeDate,
			)
		}
		table.Render()
	}

	fmt.Fprintf(c.out, "  Equity $%.4f | Basis $%.4f | Unrealized $%+.4f | Realized $%+.4f | Trades %d\n",
		summary.TotalEquity, summary.TotalCostBasis, summary.TotalUnrealizedPnL,
		summary.TotalRealizedPnL, summary.TotalTrades)
	return nil
}

// NotifyTrades imprime el historial de trades tal como llega (newest first).
func (c *Console) NotifyTrades(_ context.Context, trades []domain.TradeEvent) error {
	now := time.Now().Format("15:04:05")

	if len(trades) == 0 {
		fmt.Fprintf(c.out, "[%s] no paper trades recorded\n", now)
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d paper trades\n", now, len(trades))

	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Market", "Side", "Action", "Qty", "Price", "Fees", "Origin")

	for _, e := range trades {
		table.Append(
			e.CreatedAt.Format("01-02 15:04"),
			domain.TruncateQuestion(e.Question, e.MarketID, 34),
			string(e.Side),
			string(e.Action),
			fmt.Sprintf("%.2f", e.Quantity),
			fmt.Sprintf("%.4f", e.Price),
			fmt.Sprintf("%.4f", e.Fees),
			string(e.Origin),
		)
	}
	table.Render()
	return nil
}

// curveTailDays limita la tabla de la curva a los últimos días; la serie
// completa vive en el API.
const curveTailDays = 14

// NotifyCurve imprime la cola de la curva de equity y las estadísticas.
func (c *Console) NotifyCurve(_ context.Context, curve []domain.EquityCurvePoint, stats domain.PortfolioStats) error {
	now := time.Now().Format("15:04:05")

	if len(curve) == 0 {
		fmt.Fprintf(c.out, "[%s] no equity history yet\n", now)
		return nil
	}

	points := curve
	if len(points) > curveTailDays {
		points = points[len(points)-curveTailDays:]
	}

	fmt.Fprintf(c.out, "\n[%s] equity curve, %d days (showing %d)\n", now, len(curve), len(points))

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Invested", "Value", "Realized", "Unrealized", "Total PnL", "Opens", "Closes")

	for _, p := range points {
		table.Append(
			p.Date,
			fmt.Sprintf("$%.2f", p.CumulativeInvested),
			fmt.Sprintf("$%.2f", p.PortfolioValue),
			fmt.Sprintf("$%+.4f", p.RealizedPnL),
			fmt.Sprintf("$%+.4f", p.UnrealizedPnL),
			fmt.Sprintf("$%+.4f", p.TotalPnL),
			fmt.Sprintf("%d", p.OpenTrades),
			fmt.Sprintf("%d", p.CloseTrades),
		)
	}
	table.Render()

	c.printStats(stats)
	return nil
}

// printStats imprime el bloque de estadísticas; los campos nil salen como
// n/a con el motivo.
func (c *Console) printStats(stats domain.PortfolioStats) {
	fmt.Fprintf(c.out, "\n  --- PORTFOLIO STATS ---\n")

	if stats.WinRate != nil {
		fmt.Fprintf(c.out, "  Win rate:      %.2f%% (%dW / %dL)\n",
			*stats.WinRate, stats.TotalWins, stats.TotalLosses)
	} else {
		fmt.Fprintf(c.out, "  Win rate:      n/a (no closed trades)\n")
	}
	fmt.Fprintf(c.out, "  Avg win/loss:  $%.4f / $%.4f\n", stats.AvgWin, stats.AvgLoss)
	if stats.ProfitFactor != nil {
		fmt.Fprintf(c.out, "  Profit factor: %.4f\n", *stats.ProfitFactor)
	} else {
		fmt.Fprintf(c.out, "  Profit factor: n/a\n")
	}
	if stats.SharpeRatio != nil {
		fmt.Fprintf(c.out, "  Sharpe:        %.4f\n", *stats.SharpeRatio)
	} else {
		fmt.Fprintf(c.out, "  Sharpe:        n/a\n")
	}
	fmt.Fprintf(c.out, "  Max drawdown:  $%.4f\n", stats.MaxDrawdown)

	switch {
	case stats.Slope == nil:
		fmt.Fprintf(c.out, "  Trend:         n/a (need 3+ days)\n")
	case stats.TrendSignificant:
		fmt.Fprintf(c.out, "  Trend:         %s (slope %+.6f/day, r2 %.4f, p %.6f)\n",
			stats.TrendDirection, *stats.Slope, *stats.RSquared, *stats.PValue)
	default:
		fmt.Fprintf(c.out, "  Trend:         %s (not significant, p %.6f)\n",
			stats.TrendDirection, *stats.PValue)
	}
}

// NotifyRecurring imprime las órdenes recurrentes.
func (c *Console) NotifyRecurring(_ context.Context, orders []domain.RecurringOrder) error {
	now := time.Now().Format("15:04:05")

	if len(orders) == 0 {
		fmt.Fprintf(c.out, "[%s] no recurring orders\n", now)
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d recurring orders\n", now, len(orders))

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Market", "Side", "Qty/day", "Status", "Created", "Last run", "Trades")

	for _, o := range orders {
		lastRun := o.LastExecuted
		if lastRun == "" {
			lastRun = "-"
		}
		table.Append(
			shortID(o.ID),
			domain.TruncateQuestion(o.Question, o.MarketID, 30),
			string(o.Side),
			fmt.Sprintf("%.2f", o.Quantity),
			statusLabel(o.Active),
			o.CreatedAt.Format("2006-01-02"),
			lastRun,
			fmt.Sprintf("%d", o.TradesPlaced),
		)
	}
	table.Render()
	return nil
}

// NotifyRecurringAnalytics imprime el desglose de una orden recurrente.
func (c *Console) NotifyRecurringAnalytics(_ context.Context, a domain.RecurringAnalytics) error {
	label := domain.TruncateQuestion(a.Order.Question, a.Order.MarketID, 60)

	fmt.Fprintf(c.out, "\n=== RECURRING ORDER %s [%s] ===\n", shortID(a.Order.ID), statusLabel(a.Order.Active))
	fmt.Fprintf(c.out, "  Market:        %s (%s)\n", label, a.Order.Side)

	fmt.Fprintf(c.out, "  Trades placed: %d", a.TotalTrades)
	if a.FirstTradeDate != "" {
		fmt.Fprintf(c.out, " (%s to %s)", a.FirstTradeDate, a.LastTradeDate)
	}
	fmt.Fprintln(c.out)

	if a.TotalTrades == 0 {
		fmt.Fprintf(c.out, "  No trades yet: the market has no snapshots so far.\n\n")
		return nil
	}

	fmt.Fprintf(c.out, "  Shares:        %.4f @ avg %.6f\n", a.TotalShares, a.AvgEntryPrice)
	fmt.Fprintf(c.out, "  Invested:      $%.4f\n", a.TotalInvested)
	fmt.Fprintf(c.out, "  Value now:     $%.4f (price %.6f)\n", a.CurrentValue, a.CurrentPrice)
	fmt.Fprintf(c.out, "  Unrealized:    $%+.4f (%+.2f%%)\n\n", a.UnrealizedPnL, a.UnrealizedPnLPct)
	return nil
}

// --- helpers ---

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusLabel(active bool) string {
	if active {
		return "active"
	}
	return "cancelled"
}
