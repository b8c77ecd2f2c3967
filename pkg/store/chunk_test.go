package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/contentpipe/ent/scriptchunk"
	"github.com/mediaforge/contentpipe/pkg/store"
)

func TestUpsertChunkInsertsThenUpdatesWithoutTouchingAudio(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{
		GenerationID: gen.ID, SectionIndex: 0, Title: "Intro", Text: "hello world",
		Level: 0, ItemType: scriptchunk.ItemTypeIntro,
	}))

	chunks, err := s.AllChunksOrdered(ctx, gen.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.NoError(t, s.MarkChunkAudioSuccess(ctx, chunks[0].ID, "/audio/0.mp3"))

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{
		GenerationID: gen.ID, SectionIndex: 0, Title: "Intro Revised", Text: "hello world revised",
		Level: 0, ItemType: scriptchunk.ItemTypeIntro,
	}))

	chunks, err = s.AllChunksOrdered(ctx, gen.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Intro Revised", chunks[0].SectionTitle)
	assert.Equal(t, "hello world revised", chunks[0].TextContent)
	assert.True(t, chunks[0].AudioReady)
	require.NotNil(t, chunks[0].AudioPath)
	assert.Equal(t, "/audio/0.mp3", *chunks[0].AudioPath)
}

func TestDeleteChunksRemovesAllForGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "A", Text: "a"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 1, Title: "B", Text: "b"}))

	require.NoError(t, s.DeleteChunks(ctx, gen.ID))

	counts, err := s.CountChunks(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}

func TestMaxSectionIndexEmptyIsMinusOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	idx, err := s.MaxSectionIndex(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "A", Text: "a"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 4, Title: "E", Text: "e"}))

	idx, err = s.MaxSectionIndex(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, idx)
}

func TestExistingChunkTitlesOrderedBySectionIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 1, Title: "Second", Text: "b"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "First", Text: "a"}))

	titles, err := s.ExistingChunkTitles(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, titles)
}

func TestTextOfJoinsOrderedChunksWithBlankLine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 1, Title: "Second", Text: "second text"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "First", Text: "first text"}))

	text, err := s.TextOf(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, "first text\n\nsecond text", text)
	assert.True(t, strings.HasPrefix(text, "first text"))
}

func TestChunksNeedingAudioFiltersNotReadyOrErrored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "Ready", Text: "a"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 1, Title: "Pending", Text: "b"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 2, Title: "Errored", Text: "c"}))

	chunks, err := s.AllChunksOrdered(ctx, gen.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.NoError(t, s.MarkChunkAudioSuccess(ctx, chunks[0].ID, "/audio/0.mp3"))
	require.NoError(t, s.MarkChunkAudioFailure(ctx, chunks[2].ID, "synthesis failed"))

	needing, err := s.ChunksNeedingAudio(ctx, gen.ID)
	require.NoError(t, err)
	require.Len(t, needing, 2)
	assert.Equal(t, 1, needing[0].SectionIndex)
	assert.Equal(t, 2, needing[1].SectionIndex)
}

func TestCountChunksReportsTotalsReadyAndErrored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "A", Text: "a"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 1, Title: "B", Text: "b"}))

	chunks, err := s.AllChunksOrdered(ctx, gen.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkChunkAudioSuccess(ctx, chunks[0].ID, "/audio/0.mp3"))
	require.NoError(t, s.MarkChunkAudioFailure(ctx, chunks[1].ID, "boom"))

	counts, err := s.CountChunks(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ChunkCounts{Total: 2, Ready: 1, Error: 1}, counts)
}

func TestMarkChunkAudioFailureTruncatesMessageAndClearsPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := newGeneration(t, s, 2, "english")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "A", Text: "a"}))
	chunks, err := s.AllChunksOrdered(ctx, gen.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkChunkAudioSuccess(ctx, chunks[0].ID, "/audio/0.mp3"))

	longMessage := strings.Repeat("e", 600)
	require.NoError(t, s.MarkChunkAudioFailure(ctx, chunks[0].ID, longMessage))

	reloaded, err := s.AllChunksOrdered(ctx, gen.ID)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.False(t, reloaded[0].AudioReady)
	assert.Nil(t, reloaded[0].AudioPath)
	require.NotNil(t, reloaded[0].AudioError)
	assert.Len(t, *reloaded[0].AudioError, 500)
}

func TestUpsertChunkScopedPerGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	genA := newGeneration(t, s, 2, "english")
	genB := newGeneration(t, s, 2, "vietnamese")

	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: genA.ID, SectionIndex: 0, Title: "A0", Text: "a"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: genB.ID, SectionIndex: 0, Title: "B0", Text: "b"}))

	aCounts, err := s.CountChunks(ctx, genA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, aCounts.Total)

	bCounts, err := s.CountChunks(ctx, genB.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bCounts.Total)
}
