package collector

// concurrent.go — worker pool para snapshotear mercados en paralelo.
//
// El provider acepta lotes de ids por llamada; repartir los lotes entre
// workers mantiene el ciclo corto aunque el catálogo crezca a cientos de
// mercados. El rate limiting vive dentro del adapter del provider.

import (
	"context"
	"runtime"
	"sync"

	"github.com/alejandrodnm/polytrack/internal/domain"
	"github.com/alejandrodnm/polytrack/internal/ports"
)

// fetchSnapshotsConcurrent reparte los ids en lotes de batchSize y los
// procesa con un pool de workers. Devuelve todos los snapshots obtenidos
// y los errores por lote (un lote fallido no tumba el ciclo).
func fetchSnapshotsConcurrent(
	ctx context.Context,
	provider ports.MarketProvider,
	ids []string,
	batchSize int,
	workers int,
) ([]domain.Snapshot, []string) {
	if len(ids) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	batches := make([][]string, 0, (len(ids)+batchSize-1)/batchSize)
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	if workers > len(batches) {
		workers = len(batches)
	}

	type result struct {
		snaps []domain.Snapshot
		err   error
	}
	workCh := make(chan []string, len(batches))
	resultCh := make(chan result, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range workCh {
				snaps, err := provider.FetchSnapshots(ctx, batch)
				resultCh <- result{snaps: snaps, err: err}
			}
		}()
	}

	for _, batch := range batches {
		workCh <- batch
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var snaps []domain.Snapshot
	var errs []string
	for r := range resultCh {
		if r.err != nil {
			errs = append(errs, r.err.Error())
			continue
		}
		snaps = append(snaps, r.snaps...)
	}
	return snaps, errs
}
