package bufferpool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// CheckpointWorker periodically flushes and fsyncs a set of pools from
// outside the hot pin/unpin path. Unlike ForceFlush, a failure against one
// pool does not stop the others from being checked this tick — their errors
// are joined and reported together.
type CheckpointWorker struct {
	pools    []*Pool
	interval time.Duration
	maxGoros int
}

// NewCheckpointWorker builds a worker over pools, ticking every interval and
// checkpointing (flush, then sync) at most maxGoros pools concurrently.
func NewCheckpointWorker(pools []*Pool, interval time.Duration, maxGoros int) *CheckpointWorker {
	if maxGoros <= 0 {
		maxGoros = 4
	}
	return &CheckpointWorker{pools: pools, interval: interval, maxGoros: maxGoros}
}

// Run blocks, checkpointing every tick until ctx is canceled. Errors from
// individual ticks are logged, not returned, since this is a best-effort
// background sweep rather than a caller-observable operation.
func (w *CheckpointWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.tick(); err != nil {
				slog.Error(logDebugPrefix+"checkpoint tick failed", "err", err)
			}
		}
	}
}

func (w *CheckpointWorker) tick() error {
	p := pool.New().WithMaxGoroutines(w.maxGoros)

	var mu sync.Mutex
	var err error
	for _, bp := range w.pools {
		bp := bp
		p.Go(func() {
			var tickErr error
			if flushErr := bp.ForceFlush(); flushErr != nil {
				tickErr = flushErr
			} else if syncErr := bp.SyncSegments(); syncErr != nil {
				tickErr = syncErr
			}
			if tickErr != nil {
				mu.Lock()
				err = multierr.Append(err, tickErr)
				mu.Unlock()
			}
		})
	}
	p.Wait()
	return err
}
