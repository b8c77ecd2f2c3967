package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus represents the pgx connection pool's health, as surfaced by
// GET /health (§6) alongside the Intake API's own content-queue backlog
// check (pkg/api.handleHealth) — this is the piece of that endpoint's report
// that only the pool itself can answer.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    time.Duration `json:"response_time_ms"`
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration_ms"`
	MaxOpenConns    int           `json:"max_open_conns"`
}

// Health pings the pool and reports its connection statistics. A pool that
// answers the ping but is already saturated (InUse == MaxOpenConns with a
// nonzero WaitCount) still reports "healthy" here — exhaustion shows up as
// rising WaitDuration for the caller to alert on, not as a failed health
// check.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()

	// Ping database
	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start),
		}, err
	}

	// Get connection pool stats
	stats := db.Stats()

	return &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
		MaxOpenConns:    stats.MaxOpenConnections,
	}, nil
}
