package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polytrack/internal/application/portfolio"
)

func cmdOpen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	common := registerCommon(fs)
	market := fs.String("market", "", "market (condition) id")
	side := fs.String("side", "", "yes|no")
	qty := fs.Float64("qty", 0, "shares to open")
	fees := fs.Float64("fees", 0, "fees to record (not applied to P&L)")
	at := fs.String("at", "", "RFC3339 timestamp to backdate the trade")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	asOf, err := parseAt(*at)
	if err != nil {
		return err
	}
	event, err := a.portfolio.Open(ctx, portfolio.OpenRequest{
		MarketID: *market,
		Side:     *side,
		Quantity: *qty,
		Fees:     *fees,
		AsOf:     asOf,
	})
	if err != nil {
		return err
	}

	slog.Info("opened",
		"trade", event.ID,
		"market", event.MarketID,
		"side", event.Side,
		"qty", event.Quantity,
		"price", event.Price,
		"cost", event.Quantity*event.Price,
	)
	return nil
}

func cmdClose(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	common := registerCommon(fs)
	market := fs.String("market", "", "market (condition) id")
	side := fs.String("side", "", "yes|no")
	qty := fs.Float64("qty", 0, "shares to close (0 = whole position)")
	fees := fs.Float64("fees", 0, "fees to record")
	at := fs.String("at", "", "RFC3339 timestamp to backdate the trade")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	asOf, err := parseAt(*at)
	if err != nil {
		return err
	}
	event, err := a.portfolio.Close(ctx, portfolio.CloseRequest{
		MarketID: *market,
		Side:     *side,
		Quantity: *qty,
		Fees:     *fees,
		AsOf:     asOf,
	})
	if err != nil {
		return err
	}

	slog.Info("closed",
		"trade", event.ID,
		"market", event.MarketID,
		"side", event.Side,
		"qty", event.Quantity,
		"price", event.Price,
		"proceeds", event.Quantity*event.Price,
	)
	return nil
}

func cmdTrades(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trades", flag.ExitOnError)
	common := registerCommon(fs)
	market := fs.String("market", "", "filter by market id")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	events, err := a.portfolio.Trades(ctx, *market)
	if err != nil {
		return err
	}
	return a.console.NotifyTrades(ctx, events)
}

func cmdPositions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("positions", flag.ExitOnError)
	common := registerCommon(fs)
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	positions, err := a.portfolio.OpenPositions(ctx)
	if err != nil {
		return err
	}
	summary, err := a.portfolio.Summary(ctx)
	if err != nil {
		return err
	}
	return a.console.NotifyPositions(ctx, positions, summary)
}

func cmdCurve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("curve", flag.ExitOnError)
	common := registerCommon(fs)
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	curve, stats, err := a.portfolio.EquityCurve(ctx)
	if err != nil {
		return err
	}
	return a.console.NotifyCurve(ctx, curve, stats)
}

// parseAt convierte el flag -at; vacío significa "ahora".
func parseAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("-at must be RFC3339 (2026-08-01T15:04:05Z): %w", err)
	}
	return ts, nil
}
