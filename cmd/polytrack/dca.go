package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/alejandrodnm/polytrack/internal/application/recurring"
)

const dcaUsage = `Usage:
  polytrack dca create -market <id> -side yes|no -qty <shares> [flags]
  polytrack dca list [-market <id>] [flags]
  polytrack dca trades [-market <id>] [flags]
  polytrack dca analytics -id <recurring id> [flags]
  polytrack dca cancel -id <recurring id> [flags]
  polytrack dca run [-day YYYY-MM-DD] [flags]
`

func cmdDCA(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, dcaUsage)
		os.Exit(2)
	}

	switch args[0] {
	case "create":
		return dcaCreate(ctx, args[1:])
	case "list":
		return dcaList(ctx, args[1:])
	case "trades":
		return dcaTrades(ctx, args[1:])
	case "analytics":
		return dcaAnalytics(ctx, args[1:])
	case "cancel":
		return dcaCancel(ctx, args[1:])
	case "run":
		return dcaRun(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown dca subcommand %q\n\n%s", args[0], dcaUsage)
		os.Exit(2)
		return nil
	}
}

func dcaCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dca create", flag.ExitOnError)
	common := registerCommon(fs)
	market := fs.String("market", "", "market (condition) id")
	side := fs.String("side", "", "yes|no")
	qty := fs.Float64("qty", 0, "shares to open per day")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.recurring.Create(ctx, recurring.CreateRequest{
		MarketID: *market,
		Side:     *side,
		Quantity: *qty,
	})
	if err != nil {
		return err
	}

	slog.Info("recurring order created",
		"id", result.Order.ID,
		"market", result.Order.MarketID,
		"side", result.Order.Side,
		"qty_per_day", result.Order.Quantity,
		"backfilled", result.TradesBackfilled,
	)
	return nil
}

func dcaList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dca list", flag.ExitOnError)
	common := registerCommon(fs)
	market := fs.String("market", "", "filter by market id")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	orders, err := a.recurring.List(ctx, *market)
	if err != nil {
		return err
	}
	return a.console.NotifyRecurring(ctx, orders)
}

func dcaTrades(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dca trades", flag.ExitOnError)
	common := registerCommon(fs)
	market := fs.String("market", "", "filter by market id")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	events, err := a.recurring.Trades(ctx, *market)
	if err != nil {
		return err
	}
	return a.console.NotifyTrades(ctx, events)
}

func dcaAnalytics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dca analytics", flag.ExitOnError)
	common := registerCommon(fs)
	id := fs.String("id", "", "recurring order id")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	analytics, err := a.recurring.Analytics(ctx, *id)
	if err != nil {
		return err
	}
	return a.console.NotifyRecurringAnalytics(ctx, analytics)
}

func dcaCancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dca cancel", flag.ExitOnError)
	common := registerCommon(fs)
	id := fs.String("id", "", "recurring order id")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	order, err := a.recurring.Cancel(ctx, *id)
	if err != nil {
		return err
	}
	slog.Info("recurring order cancelled", "id", order.ID, "trades_kept", order.TradesPlaced)
	return nil
}

func dcaRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dca run", flag.ExitOnError)
	common := registerCommon(fs)
	day := fs.String("day", "", "placement day YYYY-MM-DD (default today)")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.recurring.RunDue(ctx, *day)
	if err != nil {
		return err
	}
	slog.Info("placement run finished",
		"day", result.Day,
		"checked", result.OrdersChecked,
		"placed", result.TradesPlaced,
		"skipped", result.Skipped,
	)
	return nil
}
