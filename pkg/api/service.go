package api

import (
	"context"
	"fmt"

	"github.com/mediaforge/contentpipe/ent/generation"
	"github.com/mediaforge/contentpipe/pkg/models"
	"github.com/mediaforge/contentpipe/pkg/store"
)

// enqueueOutcome reports what enqueueFromTopic/enqueueRewrite did, so the
// caller can render "enqueued" vs "skipped_duplicate" in the submission
// fragment rather than treating a duplicate as an error.
type enqueueOutcome struct {
	TopicID      string
	GenerationID string
	Skipped      bool
}

// enqueueFromTopic implements §4.2 enqueue_from_topic: upsert the Topic by
// (title, language); if no live Generation already references it, insert
// one with status=pending and link it.
func (s *Server) enqueueFromTopic(ctx context.Context, title, translatedTitle, language string, opts models.SubmissionOptions) (enqueueOutcome, error) {
	if title == "" {
		return enqueueOutcome{}, store.NewValidationError("title", "must not be empty")
	}
	if language == "" {
		return enqueueOutcome{}, store.NewValidationError("language", "must not be empty")
	}

	topic, err := s.store.CreateOrGetTopic(ctx, title, language, translatedTitle)
	if err != nil {
		return enqueueOutcome{}, fmt.Errorf("upsert topic: %w", err)
	}

	active, err := s.store.HasNonTerminalGeneration(ctx, topic.ID)
	if err != nil {
		return enqueueOutcome{}, fmt.Errorf("check active generation: %w", err)
	}
	if active {
		return enqueueOutcome{TopicID: topic.ID, Skipped: true}, nil
	}

	gen, err := s.store.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID:               topic.ID,
		TaskType:              generation.TaskTypeFromTopic,
		Language:              language,
		Model:                 opts.Model,
		Priority:              opts.Priority,
		TargetDurationMinutes: opts.TargetDurationMinutes,
	})
	if err != nil {
		return enqueueOutcome{}, fmt.Errorf("create generation: %w", err)
	}

	if err := s.store.LinkGeneration(ctx, topic.ID, gen.ID); err != nil {
		return enqueueOutcome{}, fmt.Errorf("link generation: %w", err)
	}

	return enqueueOutcome{TopicID: topic.ID, GenerationID: gen.ID}, nil
}

// sourceSnippetKey truncates a source script to the first 200 runes, the key
// prefix enqueue_rewrite uses to dedupe Topics keyed by snippet (§4.2).
func sourceSnippetKey(sourceScript string) string {
	r := []rune(sourceScript)
	if len(r) > 200 {
		r = r[:200]
	}
	return string(r)
}

// enqueueRewrite implements §4.2 enqueue_rewrite: upsert a Topic keyed by
// (source_snippet[:200], language) and always create a new rewrite
// Generation — rewrite requests are not duplicate-suppressed the way
// from_topic ones are, since each submission carries its own script text.
func (s *Server) enqueueRewrite(ctx context.Context, sourceScript, language string, opts models.SubmissionOptions) (enqueueOutcome, error) {
	if sourceScript == "" {
		return enqueueOutcome{}, store.NewValidationError("source_script", "must not be empty")
	}
	if language == "" {
		return enqueueOutcome{}, store.NewValidationError("language", "must not be empty")
	}

	topic, err := s.store.CreateOrGetTopic(ctx, sourceSnippetKey(sourceScript), language, "")
	if err != nil {
		return enqueueOutcome{}, fmt.Errorf("upsert topic: %w", err)
	}

	gen, err := s.store.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID:               topic.ID,
		TaskType:              generation.TaskTypeRewriteScript,
		Language:              language,
		Model:                 opts.Model,
		Priority:              opts.Priority,
		TargetDurationMinutes: opts.TargetDurationMinutes,
		SourceScript:          sourceScript,
	})
	if err != nil {
		return enqueueOutcome{}, fmt.Errorf("create generation: %w", err)
	}

	if err := s.store.LinkGeneration(ctx, topic.ID, gen.ID); err != nil {
		return enqueueOutcome{}, fmt.Errorf("link generation: %w", err)
	}

	return enqueueOutcome{TopicID: topic.ID, GenerationID: gen.ID}, nil
}
