package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alejandrodnm/polytrack/config"
	"github.com/alejandrodnm/polytrack/internal/adapters/httpapi"
	"github.com/alejandrodnm/polytrack/internal/adapters/polymarket"
	"github.com/alejandrodnm/polytrack/internal/adapters/storage"
	"github.com/alejandrodnm/polytrack/internal/application/collector"
	"github.com/alejandrodnm/polytrack/internal/application/portfolio"
	"github.com/alejandrodnm/polytrack/internal/application/recurring"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	noCollector := flag.Bool("no-collector", false, "serve the API without the collector loop")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	setupLogger(cfg.Log)

	slog.Info("polytrackd starting",
		"config", *configPath,
		"addr", cfg.Server.Addr,
		"dsn", cfg.Storage.DSN,
		"interval", cfg.CollectInterval(),
		"tags", cfg.Collector.Tags,
		"collector", !*noCollector,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	pf := portfolio.New(store, store, store)
	rec := recurring.New(store, pf, store, store, store)
	api := httpapi.New(cfg.Server.Addr, pf, rec)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	if !*noCollector {
		client := polymarket.NewClient(cfg.API.GammaBase)
		col := collector.New(collector.Config{
			Tags:       cfg.Collector.Tags,
			Keywords:   cfg.Collector.Keywords,
			MaxMarkets: cfg.Collector.MaxMarkets,
			Workers:    cfg.Collector.Workers,
			BatchSize:  cfg.Collector.BatchSize,
			Interval:   cfg.CollectInterval(),
		}, client, store, store)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := col.Run(ctx); err != nil {
				slog.Error("collector exited with error", "err", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRecurring(ctx, rec)
	}()

	go func() {
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
	}
	wg.Wait()

	slog.Info("polytrackd stopped cleanly")
}

// runRecurring coloca las órdenes pendientes cada hora. RunDue salta las
// órdenes con LastExecuted >= día, así que repetir dentro del mismo día
// es inocuo.
func runRecurring(ctx context.Context, rec *recurring.Executor) {
	run := func() {
		if _, err := rec.RunDue(ctx, ""); err != nil {
			slog.Error("recurring run failed", "err", err)
		}
	}
	run()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
