package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/generation"
)

// NewGenerationParams are the inputs recorded when the Intake API enqueues a
// new pipeline execution (§4.2 enqueue_from_topic / enqueue_rewrite).
type NewGenerationParams struct {
	TopicID               string
	TaskType              generation.TaskType
	Language              string
	Model                 string
	Priority              int
	TargetDurationMinutes int
	SourceScript          string // only for task_type=rewrite_script
}

// CreateGeneration inserts a new Generation with status=pending.
func (s *Store) CreateGeneration(ctx context.Context, p NewGenerationParams) (*ent.Generation, error) {
	builder := s.client.Generation.Create().
		SetID(uuid.New().String()).
		SetTopicID(p.TopicID).
		SetTaskType(p.TaskType).
		SetLanguage(p.Language).
		SetPriority(p.Priority).
		SetTargetDurationMinutes(p.TargetDurationMinutes).
		SetStatus(generation.StatusPending)

	if p.Model != "" {
		builder = builder.SetModel(p.Model)
	}
	if p.SourceScript != "" {
		builder = builder.SetSourceScript(p.SourceScript)
	}

	gen, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}
	return gen, nil
}

// GetGeneration fetches a Generation by id.
func (s *Store) GetGeneration(ctx context.Context, id string) (*ent.Generation, error) {
	gen, err := s.client.Generation.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

// ClaimOrder selects the ordering used by claim_next (§4.6.2): ascending
// priority (1 highest first) for the Content Worker, descending priority for
// the Audio Workers, per source behavior documented at the call site.
type ClaimOrder int

const (
	// ClaimOrderContent orders by (status asc, priority asc, created_at asc).
	ClaimOrderContent ClaimOrder = iota
	// ClaimOrderAudio orders by (priority desc, created_at asc).
	ClaimOrderAudio
)

// ClaimNext atomically finds the highest-priority Generation matching
// status ∈ statuses (and, if languageEQ is non-empty, language = languageEQ),
// transitions it to lockStatus, and returns the post-update row (§4.6.2).
// Returns (nil, nil) when no claimable Generation exists.
func (s *Store) ClaimNext(ctx context.Context, statuses []generation.Status, languageEQ string, lockStatus generation.Status, order ClaimOrder) (*ent.Generation, error) {
	return s.claimNext(ctx, statuses, languageEQ, "", lockStatus, order)
}

// ClaimNextExcludingLanguage is ClaimNext's complement, used by the parallel
// Audio Worker to claim any language other than the primary one (§4.4): the
// serial worker's ClaimNext(..., languageEQ=primary, ...) and this call
// partition the content_ready queue between the two worker pools.
func (s *Store) ClaimNextExcludingLanguage(ctx context.Context, statuses []generation.Status, languageNEQ string, lockStatus generation.Status, order ClaimOrder) (*ent.Generation, error) {
	return s.claimNext(ctx, statuses, "", languageNEQ, lockStatus, order)
}

func (s *Store) claimNext(ctx context.Context, statuses []generation.Status, languageEQ, languageNEQ string, lockStatus generation.Status, order ClaimOrder) (*ent.Generation, error) {
	claimCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.client.Tx(claimCtx)
	if err != nil {
		return nil, fmt.Errorf("start claim transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Generation.Query().Where(generation.StatusIn(statuses...))
	if languageEQ != "" {
		query = query.Where(generation.LanguageEQ(languageEQ))
	}
	if languageNEQ != "" {
		query = query.Where(generation.LanguageNEQ(languageNEQ))
	}

	switch order {
	case ClaimOrderAudio:
		query = query.Order(ent.Desc(generation.FieldPriority), ent.Asc(generation.FieldCreatedAt))
	default:
		query = query.Order(ent.Asc(generation.FieldStatus), ent.Asc(generation.FieldPriority), ent.Asc(generation.FieldCreatedAt))
	}

	candidate, err := query.First(claimCtx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query claimable generation: %w", err)
	}

	count, err := tx.Generation.Update().
		Where(generation.IDEQ(candidate.ID), generation.StatusIn(statuses...)).
		SetStatus(lockStatus).
		Save(claimCtx)
	if err != nil {
		return nil, fmt.Errorf("claim generation: %w", err)
	}
	if count == 0 {
		// Lost the race to another worker between the read and the
		// conditional update.
		return nil, nil
	}

	claimed, err := tx.Generation.Get(claimCtx, candidate.ID)
	if err != nil {
		return nil, fmt.Errorf("refetch claimed generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	return claimed, nil
}

// AdvanceStatus performs an unconditional status write (used once a worker
// already owns the Generation via a prior ClaimNext).
func (s *Store) AdvanceStatus(ctx context.Context, id string, status generation.Status) error {
	err := s.client.Generation.UpdateOneID(id).SetStatus(status).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("advance generation status: %w", err)
	}
	return nil
}

// FailWithError transitions a Generation to a terminal failure status with a
// populated {stage, message, timestamp} error (§7).
func (s *Store) FailWithError(ctx context.Context, id string, status generation.Status, stage, message string) error {
	if len(message) > 500 {
		message = message[:500]
	}
	now := time.Now()
	err := s.client.Generation.UpdateOneID(id).
		SetStatus(status).
		SetErrorStage(stage).
		SetErrorMessage(message).
		SetErrorAt(now).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("fail generation: %w", err)
	}
	return nil
}

// CompleteGeneration transitions a Generation to completed, sets the final
// audio path, and clears any prior error (§4.4 step 5).
func (s *Store) CompleteGeneration(ctx context.Context, id, finalAudioPath string) error {
	err := s.client.Generation.UpdateOneID(id).
		SetStatus(generation.StatusCompleted).
		SetFinalAudioPath(finalAudioPath).
		ClearErrorStage().
		ClearErrorMessage().
		ClearErrorAt().
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("complete generation: %w", err)
	}
	return nil
}

// ResetStuckLocks force-resets any Generation stuck in a *_lock status past
// threshold back to its prior entry state (pending for content locks,
// content_ready for the audio lock), leaving an informational note (§5,
// testable property 6, scenario E6).
func (s *Store) ResetStuckLocks(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)
	note := fmt.Sprintf("reset-from-stuck: lock held past %s without progress", threshold)

	total := 0
	for lockStatus, priorStatus := range map[generation.Status]generation.Status{
		generation.StatusProcessingLock:      generation.StatusPending,
		generation.StatusAudioProcessingLock: generation.StatusContentReady,
	} {
		count, err := s.client.Generation.Update().
			Where(
				generation.StatusEQ(lockStatus),
				generation.UpdatedAtLT(cutoff),
			).
			SetStatus(priorStatus).
			SetStuckNote(note).
			Save(ctx)
		if err != nil {
			return total, fmt.Errorf("reset stuck locks for %s: %w", lockStatus, err)
		}
		total += count
	}

	return total, nil
}

// ResetGeneration implements the reset_generation admin action (§4.2, §4.1):
// deletes all chunks, clears outlines and final_audio_path, and sets
// status=pending.
func (s *Store) ResetGeneration(ctx context.Context, id string) error {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("start reset transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ScriptChunk.Delete().Where(scriptChunkGenerationEQ(id)).Exec(ctx); err != nil {
		return fmt.Errorf("delete chunks for reset: %w", err)
	}

	err = tx.Generation.UpdateOneID(id).
		SetStatus(generation.StatusPending).
		ClearOutline().
		ClearDerivedOutline().
		ClearFinalAudioPath().
		ClearErrorStage().
		ClearErrorMessage().
		ClearErrorAt().
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("reset generation: %w", err)
	}

	return tx.Commit()
}

// DeleteGeneration implements the delete_generation admin action: deletes
// chunks then the Generation itself. Unlinking the Topic is the caller's
// responsibility (pkg/store.UnlinkTopic), matching §4.2's ordering
// "deletes chunks, then generation, then unlinks topic".
func (s *Store) DeleteGeneration(ctx context.Context, id string) error {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("start delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ScriptChunk.Delete().Where(scriptChunkGenerationEQ(id)).Exec(ctx); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := tx.Generation.DeleteOneID(id).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete generation: %w", err)
	}

	return tx.Commit()
}

// HasNonTerminalGeneration reports whether topicID has a Generation whose
// status is not one of the terminal statuses (§4.2 duplicate-suppression).
func (s *Store) HasNonTerminalGeneration(ctx context.Context, topicID string) (bool, error) {
	terminal := []generation.Status{
		generation.StatusCompleted,
		generation.StatusAudioFailed,
		generation.StatusContentFailed,
		generation.StatusOutlineFailed,
		generation.StatusDeleted,
	}
	count, err := s.client.Generation.Query().
		Where(
			generation.TopicIDEQ(topicID),
			generation.StatusNotIn(terminal...),
		).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count non-terminal generations: %w", err)
	}
	return count > 0, nil
}

// SoftDeleteOldGenerations marks terminal Generations older than the
// retention window as deleted. Used by the Retention Service.
func (s *Store) SoftDeleteOldGenerations(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention_days must be positive, got %d", retentionDays)
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	count, err := s.client.Generation.Update().
		Where(
			generation.StatusIn(generation.StatusCompleted, generation.StatusAudioFailed, generation.StatusContentFailed),
			generation.UpdatedAtLT(cutoff),
		).
		SetStatus(generation.StatusDeleted).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("soft delete old generations: %w", err)
	}
	return count, nil
}
