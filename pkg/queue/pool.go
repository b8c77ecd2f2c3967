package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OrphanScanner resets generations stuck in a lock status past a threshold
// back to their prior state, returning the count recovered. Supplied by the
// caller (typically pkg/store's ResetStuckLocks) so pkg/queue stays
// domain-agnostic.
type OrphanScanner func(ctx context.Context) (int, error)

// Pool runs a fixed number of identical workers against one TaskExecutor,
// plus a periodic orphan-detection scan (§5 stuck-lock recovery).
type Pool struct {
	name                    string
	workers                 []*Worker
	orphanScan              OrphanScanner
	orphanDetectionInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// NewPool builds a Pool of workerCount workers, all driving newExecutor().
// newExecutor is called once per worker so stateful executors (e.g. ones
// holding a per-worker HTTP client) don't need external synchronization.
func NewPool(name string, workerCount int, newExecutor func(workerIndex int) TaskExecutor, pollInterval, pollJitter time.Duration, orphanScan OrphanScanner, orphanInterval time.Duration) *Pool {
	workers := make([]*Worker, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		executor := newExecutor(i)
		workers = append(workers, NewWorker(workerID(name, i), executor, pollInterval, pollJitter))
	}

	return &Pool{
		name:                    name,
		workers:                 workers,
		orphanScan:              orphanScan,
		orphanDetectionInterval: orphanInterval,
		stopCh:                  make(chan struct{}),
	}
}

func workerID(name string, i int) string {
	return fmt.Sprintf("%s-worker-%d", name, i)
}

// Start spawns all workers and the orphan-detection loop. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true

	slog.Info("starting worker pool", "name", p.name, "worker_count", len(p.workers))
	for _, w := range p.workers {
		w.Start(ctx)
	}

	if p.orphanScan != nil && p.orphanDetectionInterval > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runOrphanDetection(ctx)
		}()
	}
}

// Stop signals all workers and the orphan loop to stop, and waits for them
// to finish their current task.
func (p *Pool) Stop() {
	slog.Info("stopping worker pool", "name", p.name)
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped", "name", p.name)
}

func (p *Pool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.orphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			recovered, err := p.orphanScan(ctx)
			p.mu.Lock()
			p.lastOrphanScan = time.Now()
			if err != nil {
				slog.Error("orphan scan failed", "pool", p.name, "error", err)
			} else if recovered > 0 {
				p.orphansRecovered += recovered
				slog.Warn("recovered stuck generations", "pool", p.name, "count", recovered)
			}
			p.mu.Unlock()
		}
	}
}

// Health reports the pool's current status.
func (p *Pool) Health() PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		h := w.Health()
		stats[i] = h
		if h.Status == string(WorkerStatusWorking) {
			active++
		}
	}

	p.mu.Lock()
	lastScan := p.lastOrphanScan
	recovered := p.orphansRecovered
	p.mu.Unlock()

	return PoolHealth{
		Name:             p.name,
		TotalWorkers:     len(p.workers),
		ActiveWorkers:    active,
		WorkerStats:      stats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}
