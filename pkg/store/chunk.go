package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/predicate"
	"github.com/mediaforge/contentpipe/ent/scriptchunk"
)

func scriptChunkGenerationEQ(generationID string) predicate.ScriptChunk {
	return scriptchunk.GenerationIDEQ(generationID)
}

// UpsertChunkParams are the fields of the §4.6.1 upsert contract.
type UpsertChunkParams struct {
	GenerationID string
	SectionIndex int
	Title        string
	Text         string
	Level        int
	ItemType     scriptchunk.ItemType
}

// UpsertChunk implements §4.6.1: match by (generation_ref, section_index).
// On match, only content fields are touched — audio_path/audio_ready/
// audio_error are left alone so successful audio survives a from_topic
// resumption pass. On insert, audio fields start at their zero values.
func (s *Store) UpsertChunk(ctx context.Context, p UpsertChunkParams) error {
	existing, err := s.client.ScriptChunk.Query().
		Where(
			scriptchunk.GenerationIDEQ(p.GenerationID),
			scriptchunk.SectionIndexEQ(p.SectionIndex),
		).
		Only(ctx)

	switch {
	case ent.IsNotFound(err):
		_, createErr := s.client.ScriptChunk.Create().
			SetID(uuid.New().String()).
			SetGenerationID(p.GenerationID).
			SetSectionIndex(p.SectionIndex).
			SetSectionTitle(p.Title).
			SetTextContent(p.Text).
			SetLevel(p.Level).
			SetItemType(p.ItemType).
			Save(ctx)
		if createErr != nil {
			return fmt.Errorf("insert chunk %d: %w", p.SectionIndex, createErr)
		}
		return nil
	case err != nil:
		return fmt.Errorf("query chunk %d: %w", p.SectionIndex, err)
	default:
		updateErr := existing.Update().
			SetSectionTitle(p.Title).
			SetTextContent(p.Text).
			SetLevel(p.Level).
			SetItemType(p.ItemType).
			Exec(ctx)
		if updateErr != nil {
			return fmt.Errorf("update chunk %d: %w", p.SectionIndex, updateErr)
		}
		return nil
	}
}

// DeleteChunks removes every ScriptChunk for a Generation. Called explicitly
// by the rewrite_script pipeline (§4.3.2 step 3) — never implicitly by
// UpsertChunk, per the audio-preservation open question resolved in
// SPEC_FULL.md §9. ResetGeneration and DeleteGeneration remove chunks inside
// their own transactions rather than through this function.
func (s *Store) DeleteChunks(ctx context.Context, generationID string) error {
	_, err := s.client.ScriptChunk.Delete().
		Where(scriptChunkGenerationEQ(generationID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete chunks for generation %s: %w", generationID, err)
	}
	return nil
}

// MaxSectionIndex returns the highest section_index persisted for a
// Generation, or -1 if it has no chunks (§4.3.1 step 5's start_index).
func (s *Store) MaxSectionIndex(ctx context.Context, generationID string) (int, error) {
	chunk, err := s.client.ScriptChunk.Query().
		Where(scriptChunkGenerationEQ(generationID)).
		Order(ent.Desc(scriptchunk.FieldSectionIndex)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return -1, nil
		}
		return -1, fmt.Errorf("query max section index: %w", err)
	}
	return chunk.SectionIndex, nil
}

// ExistingChunkTitles returns the section titles already persisted for a
// Generation, used by the §4.3.1 step 6 de-duplication preamble.
func (s *Store) ExistingChunkTitles(ctx context.Context, generationID string) ([]string, error) {
	chunks, err := s.client.ScriptChunk.Query().
		Where(scriptChunkGenerationEQ(generationID)).
		Order(ent.Asc(scriptchunk.FieldSectionIndex)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query existing chunk titles: %w", err)
	}
	titles := make([]string, 0, len(chunks))
	for _, c := range chunks {
		titles = append(titles, c.SectionTitle)
	}
	return titles, nil
}

// TextOf implements §4.6.3: all chunk text_content joined by a blank line,
// ordered by section_index.
func (s *Store) TextOf(ctx context.Context, generationID string) (string, error) {
	chunks, err := s.client.ScriptChunk.Query().
		Where(scriptChunkGenerationEQ(generationID)).
		Order(ent.Asc(scriptchunk.FieldSectionIndex)).
		All(ctx)
	if err != nil {
		return "", fmt.Errorf("query chunks for text_of: %w", err)
	}

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.TextContent)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}

// ChunksNeedingAudio returns chunks with audio_ready=false or audio_error set,
// sorted by section_index (§4.4 step 2).
func (s *Store) ChunksNeedingAudio(ctx context.Context, generationID string) ([]*ent.ScriptChunk, error) {
	chunks, err := s.client.ScriptChunk.Query().
		Where(
			scriptChunkGenerationEQ(generationID),
			scriptchunk.Or(
				scriptchunk.AudioReadyEQ(false),
				scriptchunk.AudioErrorNotNil(),
			),
		).
		Order(ent.Asc(scriptchunk.FieldSectionIndex)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chunks needing audio: %w", err)
	}
	return chunks, nil
}

// AllChunksOrdered returns every chunk of a Generation ordered by
// section_index (used for concatenation, §4.5.2).
func (s *Store) AllChunksOrdered(ctx context.Context, generationID string) ([]*ent.ScriptChunk, error) {
	chunks, err := s.client.ScriptChunk.Query().
		Where(scriptChunkGenerationEQ(generationID)).
		Order(ent.Asc(scriptchunk.FieldSectionIndex)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query all chunks: %w", err)
	}
	return chunks, nil
}

// ChunkCounts reports total/ready/error counts used by §4.4 step 4's
// post-batch decision.
type ChunkCounts struct {
	Total int
	Ready int
	Error int
}

// CountChunks computes ChunkCounts for a Generation.
func (s *Store) CountChunks(ctx context.Context, generationID string) (ChunkCounts, error) {
	total, err := s.client.ScriptChunk.Query().Where(scriptChunkGenerationEQ(generationID)).Count(ctx)
	if err != nil {
		return ChunkCounts{}, fmt.Errorf("count total chunks: %w", err)
	}
	ready, err := s.client.ScriptChunk.Query().
		Where(scriptChunkGenerationEQ(generationID), scriptchunk.AudioReadyEQ(true)).
		Count(ctx)
	if err != nil {
		return ChunkCounts{}, fmt.Errorf("count ready chunks: %w", err)
	}
	errored, err := s.client.ScriptChunk.Query().
		Where(scriptChunkGenerationEQ(generationID), scriptchunk.AudioErrorNotNil()).
		Count(ctx)
	if err != nil {
		return ChunkCounts{}, fmt.Errorf("count errored chunks: %w", err)
	}
	return ChunkCounts{Total: total, Ready: ready, Error: errored}, nil
}

// MarkChunkAudioSuccess records a successful TTS call (§4.5.1 step 6).
func (s *Store) MarkChunkAudioSuccess(ctx context.Context, chunkID, audioPath string) error {
	err := s.client.ScriptChunk.UpdateOneID(chunkID).
		SetAudioPath(audioPath).
		SetAudioReady(true).
		ClearAudioError().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark chunk %s audio success: %w", chunkID, err)
	}
	return nil
}

// MarkChunkAudioFailure records a failed TTS call, truncating the message to
// 500 chars (§4.5.1 step 6, §7).
func (s *Store) MarkChunkAudioFailure(ctx context.Context, chunkID, message string) error {
	if len(message) > 500 {
		message = message[:500]
	}
	err := s.client.ScriptChunk.UpdateOneID(chunkID).
		SetAudioReady(false).
		SetAudioError(message).
		ClearAudioPath().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark chunk %s audio failure: %w", chunkID, err)
	}
	return nil
}
