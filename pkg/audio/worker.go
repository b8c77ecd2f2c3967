// Package audio implements both Audio Worker variants (§4.4): the serial
// worker drains content_ready Generations in the primary language and
// synthesizes chunks one at a time; the parallel worker drains everything
// else with bounded per-task concurrency. They share identical claim and
// completion logic, differing only in how they dispatch chunk synthesis.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mediaforge/contentpipe/ent"
	"github.com/mediaforge/contentpipe/ent/generation"
	"github.com/mediaforge/contentpipe/pkg/config"
	"github.com/mediaforge/contentpipe/pkg/queue"
	"github.com/mediaforge/contentpipe/pkg/retry"
	"github.com/mediaforge/contentpipe/pkg/store"
	"github.com/mediaforge/contentpipe/pkg/tts"
)

type mode int

const (
	modeSerial mode = iota
	modeParallel
)

// Executor implements queue.TaskExecutor for both Audio Worker variants.
type Executor struct {
	store       *store.Store
	registry    *tts.Registry
	voices      *config.VoiceTable
	ttsCfg      config.TTSConfig
	mode        mode
	language    string
	concurrency int
	name        string
}

var _ queue.TaskExecutor = (*Executor)(nil)

// NewSerialExecutor builds the serial Audio Worker: claims only
// primaryLanguage Generations and synthesizes their chunks one at a time to
// respect provider rate limits or chunk-ordering concerns (§4.4).
func NewSerialExecutor(s *store.Store, registry *tts.Registry, voices *config.VoiceTable, ttsCfg config.TTSConfig, primaryLanguage string) *Executor {
	return &Executor{
		store: s, registry: registry, voices: voices, ttsCfg: ttsCfg,
		mode: modeSerial, language: primaryLanguage, concurrency: 1,
		name: "audio-serial",
	}
}

// NewParallelExecutor builds the parallel Audio Worker: claims every
// language other than primaryLanguage and synthesizes up to concurrency
// chunks at once per task (W in §4.4, default 4).
func NewParallelExecutor(s *store.Store, registry *tts.Registry, voices *config.VoiceTable, ttsCfg config.TTSConfig, primaryLanguage string, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Executor{
		store: s, registry: registry, voices: voices, ttsCfg: ttsCfg,
		mode: modeParallel, language: primaryLanguage, concurrency: concurrency,
		name: "audio-parallel",
	}
}

// Name identifies this executor in health reporting.
func (e *Executor) Name() string { return e.name }

// PollAndExecute implements §4.4 steps 1-5: claim, synthesize missing chunk
// audio, then decide the batch's terminal or self-reenqueue status.
func (e *Executor) PollAndExecute(ctx context.Context) error {
	statuses := []generation.Status{generation.StatusContentReady, generation.StatusAudioFailed}

	var gen *ent.Generation
	var err error
	if e.mode == modeSerial {
		gen, err = e.store.ClaimNext(ctx, statuses, e.language, generation.StatusAudioProcessingLock, store.ClaimOrderAudio)
	} else {
		gen, err = e.store.ClaimNextExcludingLanguage(ctx, statuses, e.language, generation.StatusAudioProcessingLock, store.ClaimOrderAudio)
	}
	if err != nil {
		return fmt.Errorf("claim next generation for audio: %w", err)
	}
	if gen == nil {
		return queue.ErrNoTasksAvailable
	}

	log := slog.With("generation_id", gen.ID, "worker", e.name, "language", gen.Language)
	log.Info("generation claimed for audio")

	if err := e.store.AdvanceStatus(ctx, gen.ID, generation.StatusAudioGenerating); err != nil {
		return fmt.Errorf("advance to audio_generating: %w", err)
	}

	if err := e.synthesizeChunks(ctx, gen); err != nil {
		log.Error("chunk synthesis pass encountered an error", "error", err)
	}

	if err := e.finalize(context.Background(), gen); err != nil {
		return fmt.Errorf("finalize audio batch: %w", err)
	}
	return nil
}

// synthesizeChunks implements §4.4 steps 2-3. Per-chunk failures are
// recorded on the chunk (via MarkChunkAudioFailure) and logged, never
// propagated — the batch still reaches finalize so the failure is reflected
// in the Generation's terminal status.
func (e *Executor) synthesizeChunks(ctx context.Context, gen *ent.Generation) error {
	chunks, err := e.store.ChunksNeedingAudio(ctx, gen.ID)
	if err != nil {
		return fmt.Errorf("load chunks needing audio: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	voice := e.voices.Lookup(gen.Language)
	settings := tts.VoiceSettings{
		Provider:     voice.Provider,
		VoiceName:    voice.VoiceName,
		SpeakingRate: voice.SpeakingRate,
	}

	if e.mode == modeSerial {
		for _, chunk := range chunks {
			if err := e.synthesizeOneChunk(ctx, gen, chunk, settings); err != nil {
				slog.Error("chunk synthesis failed", "chunk_id", chunk.ID, "section_index", chunk.SectionIndex, "error", err)
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, c := range chunks {
		chunk := c
		g.Go(func() error {
			if err := e.synthesizeOneChunk(gctx, gen, chunk, settings); err != nil {
				slog.Error("chunk synthesis failed", "chunk_id", chunk.ID, "section_index", chunk.SectionIndex, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// synthesizeOneChunk implements §4.5.1: retried TTS call writing a
// deterministically-named MP3, then a DB update recording the outcome
// (always the last step, per §4.5.1 step 6).
func (e *Executor) synthesizeOneChunk(ctx context.Context, gen *ent.Generation, chunk *ent.ScriptChunk, settings tts.VoiceSettings) error {
	scriptName := valueOrDefault(gen.ScriptName, gen.ID)
	filename := fmt.Sprintf("section_%04d_%d_%s.mp3", chunk.SectionIndex, time.Now().UnixNano(), languageCode(gen.Language))
	outputPath := filepath.Join(e.ttsCfg.AudioRoot, scriptName, filename)

	retryCfg := retry.Config{
		MaxAttempts: e.ttsCfg.RetryAttempts,
		BackoffMin:  e.ttsCfg.RetryWait,
		BackoffMax:  e.ttsCfg.RetryWait,
	}

	synthErr := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		return tts.ProduceChunkAudio(ctx, e.registry, settings, chunk.TextContent, e.ttsCfg.APICharLimit, e.ttsCfg.FFmpegPath, outputPath, e.ttsCfg.MinAudioFileSizeBytes)
	})

	if synthErr != nil {
		os.Remove(outputPath)
		if markErr := e.store.MarkChunkAudioFailure(context.Background(), chunk.ID, synthErr.Error()); markErr != nil {
			return fmt.Errorf("mark chunk audio failure after synth error %q: %w", synthErr, markErr)
		}
		return synthErr
	}

	if err := e.store.MarkChunkAudioSuccess(context.Background(), chunk.ID, outputPath); err != nil {
		return fmt.Errorf("mark chunk audio success: %w", err)
	}
	return nil
}

// finalize implements §4.4 step 4's post-batch decision.
func (e *Executor) finalize(ctx context.Context, gen *ent.Generation) error {
	counts, err := e.store.CountChunks(ctx, gen.ID)
	if err != nil {
		return fmt.Errorf("count chunks for finalize: %w", err)
	}

	switch {
	case counts.Error > 0:
		return e.store.FailWithError(ctx, gen.ID, generation.StatusAudioFailed, "audio_chunk",
			fmt.Sprintf("%d of %d chunks failed audio synthesis", counts.Error, counts.Total))
	case counts.Total == 0:
		return e.store.AdvanceStatus(ctx, gen.ID, generation.StatusContentReady)
	case counts.Ready < counts.Total:
		return e.store.AdvanceStatus(ctx, gen.ID, generation.StatusContentReady)
	default:
		return e.combineAndComplete(ctx, gen)
	}
}

// combineAndComplete implements §4.5.2 and the completed transition, written
// as a single status write so observers never see a partial completed (§5).
func (e *Executor) combineAndComplete(ctx context.Context, gen *ent.Generation) error {
	chunks, err := e.store.AllChunksOrdered(ctx, gen.ID)
	if err != nil {
		return fmt.Errorf("load chunks for concatenation: %w", err)
	}

	paths := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.AudioPath != nil {
			paths = append(paths, *c.AudioPath)
		}
	}

	scriptName := valueOrDefault(gen.ScriptName, gen.ID)
	finalPath := filepath.Join(e.ttsCfg.AudioRoot, scriptName, fmt.Sprintf("%s_combined_%s.mp3", scriptName, gen.ID))

	if err := tts.Concatenate(ctx, e.ttsCfg.FFmpegPath, paths, finalPath, e.ttsCfg.MinAudioFileSizeBytes); err != nil {
		return e.store.FailWithError(ctx, gen.ID, generation.StatusAudioFailed, "audio_combine", err.Error())
	}

	return e.store.CompleteGeneration(ctx, gen.ID, finalPath)
}

func valueOrDefault(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func languageCode(language string) string {
	if len(language) >= 2 {
		return strings.ToLower(language[:2])
	}
	return strings.ToLower(language)
}
