package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/generation"
	"github.com/mediaforge/contentpipe/pkg/store"
)

func newGeneration(t *testing.T, s *store.Store, priority int, language string) *ent.Generation {
	t.Helper()
	gen, err := s.CreateGeneration(context.Background(), store.NewGenerationParams{
		TopicID:               "topic-" + language,
		TaskType:               generation.TaskTypeFromTopic,
		Language:              language,
		Priority:              priority,
		TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	return gen
}

func TestCreateGenerationDefaultsToPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID:               "topic-1",
		TaskType:               generation.TaskTypeFromTopic,
		Language:              "english",
		Priority:              2,
		TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, generation.StatusPending, gen.Status)
	assert.Equal(t, 2, gen.Priority)
	assert.Nil(t, gen.Model)
	assert.Nil(t, gen.SourceScript)
}

func TestCreateGenerationRewriteScriptSetsSourceScript(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID:               "topic-2",
		TaskType:               generation.TaskTypeRewriteScript,
		Language:              "english",
		Model:                 "gpt-4o",
		Priority:              1,
		TargetDurationMinutes: 5,
		SourceScript:          "existing script text",
	})
	require.NoError(t, err)
	require.NotNil(t, gen.SourceScript)
	assert.Equal(t, "existing script text", *gen.SourceScript)
	require.NotNil(t, gen.Model)
	assert.Equal(t, "gpt-4o", *gen.Model)
}

func TestGetGenerationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetGeneration(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClaimNextOrdersByStatusPriorityCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	low := newGeneration(t, s, 3, "english")
	high := newGeneration(t, s, 1, "english")

	claimed, err := s.ClaimNext(ctx, []generation.Status{generation.StatusPending}, "", generation.StatusProcessingLock, store.ClaimOrderContent)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, high.ID, claimed.ID)
	assert.Equal(t, generation.StatusProcessingLock, claimed.Status)

	claimed2, err := s.ClaimNext(ctx, []generation.Status{generation.StatusPending}, "", generation.StatusProcessingLock, store.ClaimOrderContent)
	require.NoError(t, err)
	require.NotNil(t, claimed2)
	assert.Equal(t, low.ID, claimed2.ID)
}

func TestClaimNextReturnsNilWhenNoneClaimable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	claimed, err := s.ClaimNext(ctx, []generation.Status{generation.StatusPending}, "", generation.StatusProcessingLock, store.ClaimOrderContent)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimNextFiltersByLanguage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = newGeneration(t, s, 2, "english")
	viGen := newGeneration(t, s, 2, "vietnamese")

	claimed, err := s.ClaimNext(ctx, []generation.Status{generation.StatusPending}, "vietnamese", generation.StatusProcessingLock, store.ClaimOrderContent)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, viGen.ID, claimed.ID)
}

func TestClaimNextExcludingLanguagePartitionsQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Both start life as pending, then move to content_ready as the
	// serial/parallel Audio Workers would find them.
	enGen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: "t-en", TaskType: generation.TaskTypeFromTopic, Language: "english",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	viGen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: "t-vi", TaskType: generation.TaskTypeFromTopic, Language: "vietnamese",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.AdvanceStatus(ctx, enGen.ID, generation.StatusContentReady))
	require.NoError(t, s.AdvanceStatus(ctx, viGen.ID, generation.StatusContentReady))

	claimed, err := s.ClaimNextExcludingLanguage(ctx, []generation.Status{generation.StatusContentReady}, "english", generation.StatusAudioProcessingLock, store.ClaimOrderAudio)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, viGen.ID, claimed.ID)
}

func TestAdvanceStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.AdvanceStatus(ctx, gen.ID, generation.StatusGeneratingOutline))
	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusGeneratingOutline, reloaded.Status)
}

func TestFailWithErrorTruncatesMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	longMessage := strings.Repeat("x", 600)
	require.NoError(t, s.FailWithError(ctx, gen.ID, generation.StatusContentFailed, "outline", longMessage))

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusContentFailed, reloaded.Status)
	require.NotNil(t, reloaded.ErrorMessage)
	assert.Len(t, *reloaded.ErrorMessage, 500)
	require.NotNil(t, reloaded.ErrorStage)
	assert.Equal(t, "outline", *reloaded.ErrorStage)
	assert.NotNil(t, reloaded.ErrorAt)
}

func TestCompleteGenerationClearsPriorError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.FailWithError(ctx, gen.ID, generation.StatusAudioFailed, "audio", "boom"))
	require.NoError(t, s.CompleteGeneration(ctx, gen.ID, "/audio/final.mp3"))

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.FinalAudioPath)
	assert.Equal(t, "/audio/final.mp3", *reloaded.FinalAudioPath)
	assert.Nil(t, reloaded.ErrorStage)
	assert.Nil(t, reloaded.ErrorMessage)
	assert.Nil(t, reloaded.ErrorAt)
}

func TestResetStuckLocksRevertsPastThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen := newGeneration(t, s, 2, "english")
	require.NoError(t, s.AdvanceStatus(ctx, gen.ID, generation.StatusProcessingLock))

	n, err := s.ResetStuckLocks(ctx, -time.Hour)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusPending, reloaded.Status)
	require.NotNil(t, reloaded.StuckNote)
	assert.Contains(t, *reloaded.StuckNote, "reset-from-stuck")
}

func TestResetStuckLocksLeavesRecentLocksAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen := newGeneration(t, s, 2, "english")
	require.NoError(t, s.AdvanceStatus(ctx, gen.ID, generation.StatusProcessingLock))

	n, err := s.ResetStuckLocks(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusProcessingLock, reloaded.Status)
}

func TestResetGenerationClearsDerivedFieldsAndChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen := newGeneration(t, s, 2, "english")
	require.NoError(t, s.SetOutline(ctx, gen.ID, "# outline", generation.StatusContentGenerating))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "Intro", Text: "hello"}))

	require.NoError(t, s.ResetGeneration(ctx, gen.ID))

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusPending, reloaded.Status)
	assert.Nil(t, reloaded.Outline)
	assert.Nil(t, reloaded.FinalAudioPath)

	counts, err := s.CountChunks(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}

func TestDeleteGenerationRemovesChunksAndRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen := newGeneration(t, s, 2, "english")
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "Intro", Text: "hello"}))

	require.NoError(t, s.DeleteGeneration(ctx, gen.ID))

	_, err := s.GetGeneration(ctx, gen.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	counts, err := s.CountChunks(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}

func TestHasNonTerminalGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: "topic-active", TaskType: generation.TaskTypeFromTopic, Language: "english",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)

	has, err := s.HasNonTerminalGeneration(ctx, "topic-active")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.CompleteGeneration(ctx, gen.ID, "/final.mp3"))
	has, err = s.HasNonTerminalGeneration(ctx, "topic-active")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSoftDeleteOldGenerationsRequiresPositiveRetention(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SoftDeleteOldGenerations(context.Background(), 0)
	assert.Error(t, err)
}

func TestSoftDeleteOldGenerationsLeavesRecentTerminalAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: "topic-old", TaskType: generation.TaskTypeFromTopic, Language: "english",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.CompleteGeneration(ctx, gen.ID, "/final.mp3"))

	// retention_days=36500 (100 years) means nothing is past cutoff yet, so a
	// just-completed Generation survives the sweep.
	n, err := s.SoftDeleteOldGenerations(ctx, 36500)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusCompleted, reloaded.Status)
}
