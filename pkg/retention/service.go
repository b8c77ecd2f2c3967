// Package retention implements the Retention Service: a background sweep
// that soft-deletes terminal Generations once they age past the configured
// window by setting their status to deleted. Rows and their ScriptChunks are
// kept; Topics are not touched.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/mediaforge/contentpipe/pkg/config"
	"github.com/mediaforge/contentpipe/pkg/store"
)

// Service periodically marks old terminal Generations as deleted. All
// operations are idempotent and safe to run from multiple processes.
type Service struct {
	config config.RetentionConfig
	store  *store.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new retention service.
func NewService(cfg config.RetentionConfig, s *store.Store) *Service {
	return &Service{config: cfg, store: s}
}

// Start launches the background retention loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("retention service started",
		"generation_retention_days", s.config.GenerationRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the retention loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(_ context.Context) {
	count, err := s.store.SoftDeleteOldGenerations(context.Background(), s.config.GenerationRetentionDays)
	if err != nil {
		slog.Error("retention: soft-delete generations failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: soft-deleted old generations", "count", count)
	}
}
