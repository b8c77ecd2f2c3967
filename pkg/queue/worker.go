package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Worker runs one TaskExecutor's poll-claim-process loop in its own
// goroutine.
type Worker struct {
	id                 string
	executor           TaskExecutor
	pollInterval       time.Duration
	pollIntervalJitter time.Duration
	stopCh             chan struct{}
	stopOnce           sync.Once
	wg                 sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	tasksProcessed int
	lastActivity   time.Time
}

// NewWorker creates a worker bound to executor, polling at interval±jitter.
func NewWorker(id string, executor TaskExecutor, interval, jitter time.Duration) *Worker {
	return &Worker{
		id:                 id,
		executor:           executor,
		pollInterval:       interval,
		pollIntervalJitter: jitter,
		stopCh:             make(chan struct{}),
		status:             WorkerStatusIdle,
		lastActivity:       time.Now(),
	}
}

// Start begins the worker loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current
// task (graceful shutdown, §5).
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports the worker's current status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "executor", w.executor.Name())
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			w.setStatus(WorkerStatusWorking)
			err := w.executor.PollAndExecute(ctx)
			w.setStatus(WorkerStatusIdle)

			switch {
			case err == nil:
				w.mu.Lock()
				w.tasksProcessed++
				w.mu.Unlock()
			case errors.Is(err, ErrNoTasksAvailable):
				w.sleep(w.jitteredInterval())
			default:
				log.Error("task execution error", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) jitteredInterval() time.Duration {
	base := w.pollInterval
	jitter := w.pollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.lastActivity = time.Now()
}
