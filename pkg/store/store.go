package store

import (
	"context"
	"fmt"

	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/generation"
)

// Store wraps an *ent.Client and exposes the typed operations named in §4.6.
// It is constructed once at startup and passed into every worker and the
// Intake API, matching §9's "Store value constructed once at startup"
// design note.
type Store struct {
	client *ent.Client
}

// New wraps an existing ent client.
func New(client *ent.Client) *Store {
	return &Store{client: client}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.Generation.Query().Limit(1).Count(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// PendingContentBacklog counts Generations claimable by the Content Worker
// right now (§4.3 step 2's claim set) — exposed on the health endpoint so an
// operator can tell "queue is deep" apart from "queue is stuck".
func (s *Store) PendingContentBacklog(ctx context.Context) (int, error) {
	count, err := s.client.Generation.Query().
		Where(generation.StatusIn(
			generation.StatusPending,
			generation.StatusOutlineFailed,
			generation.StatusContentFailed,
		)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending content backlog: %w", err)
	}
	return count, nil
}
