// Package queue provides the worker-pool scaffolding shared by the Content
// Worker and the two Audio Workers (§4.3, §4.4): a polling loop with
// jittered intervals, health tracking, and graceful shutdown. Each worker
// type supplies its own claim-and-process logic via the TaskExecutor
// interface; the claim queries themselves live in pkg/store.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrNoTasksAvailable is returned by TaskExecutor.PollAndExecute when no
// claimable work exists, signalling the worker to sleep until its next poll.
var ErrNoTasksAvailable = errors.New("no tasks available")

// TaskExecutor owns one poll-claim-process cycle. It returns
// ErrNoTasksAvailable when the backing store has nothing claimable.
type TaskExecutor interface {
	// Name identifies the executor in health reporting and logs (e.g.
	// "content", "audio-serial", "audio-parallel").
	Name() string
	PollAndExecute(ctx context.Context) error
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth reports one worker's status for the admin/health surface.
type WorkerHealth struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	TasksProcessed int       `json:"tasks_processed"`
	LastActivity   time.Time `json:"last_activity"`
}

// PoolHealth aggregates every worker's health plus orphan-scan metrics.
type PoolHealth struct {
	Name             string         `json:"name"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveWorkers    int            `json:"active_workers"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}
