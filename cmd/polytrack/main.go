package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polytrack/config"
	"github.com/alejandrodnm/polytrack/internal/adapters/notify"
	"github.com/alejandrodnm/polytrack/internal/adapters/storage"
	"github.com/alejandrodnm/polytrack/internal/application/portfolio"
	"github.com/alejandrodnm/polytrack/internal/application/recurring"
)

const usageText = `polytrack — paper position tracker for binary prediction markets

Usage:
  polytrack <command> [flags]

Commands:
  open        open a paper position, priced at the nearest snapshot
  close       close a paper position (FIFO against the open lots)
  trades      list recorded trades, newest first
  positions   show open positions marked to market, with totals
  curve       show the daily equity curve and portfolio stats
  dca         manage recurring daily orders: create|list|trades|cancel|analytics|run
  collect     discover markets and snapshot prices (once, or -loop)

Every command accepts -config, -db and -verbose. Run
  polytrack <command> -h
for the command's own flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "open":
		err = cmdOpen(ctx, os.Args[2:])
	case "close":
		err = cmdClose(ctx, os.Args[2:])
	case "trades":
		err = cmdTrades(ctx, os.Args[2:])
	case "positions":
		err = cmdPositions(ctx, os.Args[2:])
	case "curve":
		err = cmdCurve(ctx, os.Args[2:])
	case "dca":
		err = cmdDCA(ctx, os.Args[2:])
	case "collect":
		err = cmdCollect(ctx, os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// commonFlags son los flags que comparten todos los subcomandos.
type commonFlags struct {
	configPath *string
	db         *string
	verbose    *bool
}

func registerCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "path to config file"),
		db:         fs.String("db", "", "SQLite path (overrides config)"),
		verbose:    fs.Bool("verbose", false, "set log level to debug"),
	}
}

const defaultConfigPath = "config/config.yaml"

// loadConfig tolera la ausencia del YAML solo en la ruta por defecto;
// una ruta explícita que no existe es un error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// app agrupa el wiring que todos los comandos repiten: config, storage
// y los servicios sobre él.
type app struct {
	cfg       *config.Config
	store     *storage.SQLiteStorage
	portfolio *portfolio.Service
	recurring *recurring.Executor
	console   *notify.Console
}

func newApp(flags commonFlags) (*app, error) {
	cfg, err := loadConfig(*flags.configPath)
	if err != nil {
		return nil, err
	}
	if *flags.verbose {
		cfg.Log.Level = "debug"
	}
	if *flags.db != "" {
		cfg.Storage.DSN = *flags.db
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}

	pf := portfolio.New(store, store, store)
	return &app{
		cfg:       cfg,
		store:     store,
		portfolio: pf,
		recurring: recurring.New(store, pf, store, store, store),
		console:   notify.NewConsole(),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "err", err)
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
