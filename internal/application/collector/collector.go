package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polytrack/internal/domain"
	"github.com/alejandrodnm/polytrack/internal/metrics"
	"github.com/alejandrodnm/polytrack/internal/ports"
)

const (
	defaultInterval   = 5 * time.Minute
	defaultBatchSize  = 20
	defaultMaxMarkets = 300
)

// Config contiene la configuración del collector.
type Config struct {
	Tags       []string      // tag slugs de Gamma a descubrir
	Keywords   []string      // filtro sobre la pregunta; vacío = sin filtro
	MaxMarkets int           // tope de mercados nuevos por ciclo (0 = default)
	Workers    int           // goroutines para snapshots (0 = NumCPU)
	BatchSize  int           // ids por llamada al provider (0 = default)
	Interval   time.Duration // intervalo entre ciclos de Run
}

// Collector descubre mercados binarios en el provider, mantiene el
// catálogo y alimenta la serie de precios con un snapshot por mercado
// rastreado en cada ciclo.
type Collector struct {
	cfg      Config
	provider ports.MarketProvider
	catalog  ports.MarketCatalog
	prices   ports.PriceSeries
	filter   *Filter
	now      func() time.Time
}

// New crea un Collector con todas las dependencias inyectadas.
func New(cfg Config, provider ports.MarketProvider, catalog ports.MarketCatalog, prices ports.PriceSeries) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxMarkets <= 0 {
		cfg.MaxMarkets = defaultMaxMarkets
	}
	return &Collector{
		cfg:      cfg,
		provider: provider,
		catalog:  catalog,
		prices:   prices,
		filter:   NewFilter(cfg.Keywords),
		now:      time.Now,
	}
}

// CycleResult resume un ciclo de recolección.
type CycleResult struct {
	MarketsSeen    int           `json:"markets_seen"`
	MarketsKept    int           `json:"markets_kept"`
	MarketsTracked int           `json:"markets_tracked"`
	SnapshotsNew   int           `json:"snapshots_new"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Run ejecuta ciclos de recolección hasta que el contexto se cancele.
func (c *Collector) Run(ctx context.Context) error {
	slog.Info("collector starting",
		"interval", c.cfg.Interval,
		"tags", c.cfg.Tags,
		"keywords", len(c.cfg.Keywords),
		"workers", c.cfg.Workers,
	)

	if err := c.runCycle(ctx); err != nil {
		slog.Error("collection cycle failed", "err", err)
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("collector stopped")
			return nil
		case <-ticker.C:
			if err := c.runCycle(ctx); err != nil {
				slog.Error("collection cycle failed", "err", err)
			}
		}
	}
}

// runCycle ejecuta un ciclo y registra el resultado.
func (c *Collector) runCycle(ctx context.Context) error {
	result, err := c.RunOnce(ctx)
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

// RunOnce ejecuta exactamente un ciclo: descubre → filtra → upsert →
// snapshot de todos los rastreados. Un tag o lote que falla se anota en
// Errors y el ciclo sigue; solo los fallos de storage abortan.
func (c *Collector) RunOnce(ctx context.Context) (*CycleResult, error) {
	start := c.now()
	result := &CycleResult{}

	// Descubrir por tag, dedup por id conservando el orden de llegada.
	seen := make(map[string]bool)
	discovered := make([]domain.Market, 0, 64)
	for _, tag := range c.cfg.Tags {
		markets, err := c.provider.FetchMarkets(ctx, tag)
		if err != nil {
			slog.Warn("collector: fetch markets failed", "tag", tag, "err", err)
			result.Errors = append(result.Errors, fmt.Sprintf("tag %s: %v", tag, err))
			continue
		}
		for _, m := range markets {
			if !seen[m.ID] {
				seen[m.ID] = true
				discovered = append(discovered, m)
			}
		}
	}
	result.MarketsSeen = len(discovered)

	kept := c.filter.Apply(discovered)
	if len(kept) > c.cfg.MaxMarkets {
		kept = kept[:c.cfg.MaxMarkets]
	}
	result.MarketsKept = len(kept)

	if len(kept) > 0 {
		stamp := start.UTC()
		for i := range kept {
			kept[i].FirstSeen = stamp // el storage conserva el first_seen existente
			kept[i].LastSeen = stamp
		}
		if err := c.catalog.Upsert(ctx, kept); err != nil {
			return nil, fmt.Errorf("collector.RunOnce: upsert markets: %w", err)
		}
	}

	tracked, err := c.catalog.ListTracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("collector.RunOnce: list tracked: %w", err)
	}
	result.MarketsTracked = len(tracked)

	ids := make([]string, len(tracked))
	for i, m := range tracked {
		ids[i] = m.ID
	}
	snaps, errs := fetchSnapshotsConcurrent(ctx, c.provider, ids, c.cfg.BatchSize, c.cfg.Workers)
	result.Errors = append(result.Errors, errs...)

	if len(snaps) > 0 {
		n, err := c.prices.Insert(ctx, snaps)
		if err != nil {
			return nil, fmt.Errorf("collector.RunOnce: insert snapshots: %w", err)
		}
		result.SnapshotsNew = n
	}

	result.Duration = time.Since(start)

	metrics.CollectorCycles.Inc()
	metrics.CollectorCycleDuration.Observe(result.Duration.Seconds())
	metrics.SnapshotsInserted.Add(float64(result.SnapshotsNew))
	metrics.MarketsTracked.Set(float64(result.MarketsTracked))
	if len(result.Errors) > 0 {
		metrics.CollectorErrors.Inc()
	}
	return result, nil
}
