package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polytrack/internal/adapters/polymarket"
	"github.com/alejandrodnm/polytrack/internal/application/collector"
)

func cmdCollect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	common := registerCommon(fs)
	loop := fs.Bool("loop", false, "keep collecting on the configured interval")
	fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	client := polymarket.NewClient(a.cfg.API.GammaBase)
	col := collector.New(collector.Config{
		Tags:       a.cfg.Collector.Tags,
		Keywords:   a.cfg.Collector.Keywords,
		MaxMarkets: a.cfg.Collector.MaxMarkets,
		Workers:    a.cfg.Collector.Workers,
		BatchSize:  a.cfg.Collector.BatchSize,
		Interval:   a.cfg.CollectInterval(),
	}, client, a.store, a.store)

	if *loop {
		return col.Run(ctx)
	}

	result, err := col.RunOnce(ctx)
	if err != nil {
		return err
	}
	slog.Info("collection cycle complete",
		"seen", result.MarketsSeen,
		"kept", result.MarketsKept,
		"tracked", result.MarketsTracked,
		"snapshots_new", result.SnapshotsNew,
		"errors", len(result.Errors),
		"duration", result.Duration.Round(time.Millisecond),
	)
	return nil
}
