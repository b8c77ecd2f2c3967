package audio_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/contentpipe/ent/generation"
	"github.com/mediaforge/contentpipe/pkg/audio"
	"github.com/mediaforge/contentpipe/pkg/config"
	"github.com/mediaforge/contentpipe/pkg/queue"
	"github.com/mediaforge/contentpipe/pkg/store"
	"github.com/mediaforge/contentpipe/pkg/tts"

	testdb "github.com/mediaforge/contentpipe/test/database"
)

type fakeProvider struct {
	name    string
	failOn  map[string]bool // text -> force failure
	audio   []byte
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Synthesize(ctx context.Context, text, voiceName string, speed float64, outputPath string) error {
	if p.failOn[text] {
		return assertErr("synthesis rejected")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	body := p.audio
	if body == nil {
		body = make([]byte, 200)
	}
	return os.WriteFile(outputPath, body, 0o644)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newAudioTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbClient := testdb.NewTestClient(t)
	return store.New(dbClient.Client)
}

func fastTTSConfig(t *testing.T) config.TTSConfig {
	cfg := config.DefaultTTSConfig()
	cfg.AudioRoot = t.TempDir()
	cfg.RetryAttempts = 1
	cfg.RetryWait = time.Millisecond
	cfg.APICharLimit = 500
	cfg.MinAudioFileSizeBytes = 100
	return cfg
}

func inlineVoiceTable(t *testing.T, language, provider, voice string) *config.VoiceTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voices.json")
	body := `{"` + language + `": {"provider": "` + provider + `", "voice_name": "` + voice + `", "speaking_rate": 1.0}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	table, err := config.LoadVoiceTable(path)
	require.NoError(t, err)
	return table
}

func TestSerialExecutorSynthesizesAllChunksThenAwaitsCombine(t *testing.T) {
	s := newAudioTestStore(t)
	ctx := context.Background()

	topic, err := s.CreateOrGetTopic(ctx, "Audio Happy Path", "english", "")
	require.NoError(t, err)
	gen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: topic.ID, TaskType: generation.TaskTypeFromTopic, Language: "english",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "A", Text: "first chunk text"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 1, Title: "B", Text: "second chunk text"}))
	require.NoError(t, s.AdvanceStatus(ctx, gen.ID, generation.StatusContentReady))

	provider := &fakeProvider{name: "openai"}
	registry := tts.NewRegistry(provider)
	voices := inlineVoiceTable(t, "english", "openai", "alloy")
	ttsCfg := fastTTSConfig(t)

	executor := audio.NewSerialExecutor(s, registry, voices, ttsCfg, "english")
	require.NoError(t, executor.PollAndExecute(ctx))

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)

	if _, lookErr := exec.LookPath(ttsCfg.FFmpegPath); lookErr != nil {
		t.Skip("ffmpeg not available, skipping combine assertion")
	}
	assert.Equal(t, generation.StatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.FinalAudioPath)
	_, statErr := os.Stat(*reloaded.FinalAudioPath)
	assert.NoError(t, statErr)
}

func TestSerialExecutorMarksAudioFailedWhenAChunkFails(t *testing.T) {
	s := newAudioTestStore(t)
	ctx := context.Background()

	topic, err := s.CreateOrGetTopic(ctx, "Audio Failure Path", "english", "")
	require.NoError(t, err)
	gen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: topic.ID, TaskType: generation.TaskTypeFromTopic, Language: "english",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 0, Title: "A", Text: "good chunk"}))
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: gen.ID, SectionIndex: 1, Title: "B", Text: "bad chunk"}))
	require.NoError(t, s.AdvanceStatus(ctx, gen.ID, generation.StatusContentReady))

	provider := &fakeProvider{name: "openai", failOn: map[string]bool{"bad chunk": true}}
	registry := tts.NewRegistry(provider)
	voices := inlineVoiceTable(t, "english", "openai", "alloy")
	ttsCfg := fastTTSConfig(t)

	executor := audio.NewSerialExecutor(s, registry, voices, ttsCfg, "english")
	require.NoError(t, executor.PollAndExecute(ctx))

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusAudioFailed, reloaded.Status)
	require.NotNil(t, reloaded.ErrorStage)
	assert.Equal(t, "audio_chunk", *reloaded.ErrorStage)
	require.NotNil(t, reloaded.ErrorMessage)
	assert.Contains(t, *reloaded.ErrorMessage, "1 of 2")

	counts, err := s.CountChunks(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Ready)
	assert.Equal(t, 1, counts.Error)
}

func TestSerialExecutorReenqueuesWhenNoChunks(t *testing.T) {
	s := newAudioTestStore(t)
	ctx := context.Background()

	topic, err := s.CreateOrGetTopic(ctx, "Audio Partial", "english", "")
	require.NoError(t, err)
	gen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: topic.ID, TaskType: generation.TaskTypeFromTopic, Language: "english",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.AdvanceStatus(ctx, gen.ID, generation.StatusContentReady))
	// No chunks at all: finalize's counts.Total==0 branch returns to
	// content_ready rather than completing an empty batch.

	provider := &fakeProvider{name: "openai"}
	registry := tts.NewRegistry(provider)
	voices := inlineVoiceTable(t, "english", "openai", "alloy")
	ttsCfg := fastTTSConfig(t)

	executor := audio.NewSerialExecutor(s, registry, voices, ttsCfg, "english")
	require.NoError(t, executor.PollAndExecute(ctx))

	reloaded, err := s.GetGeneration(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusContentReady, reloaded.Status)
}

func TestParallelExecutorClaimsNonPrimaryLanguageOnly(t *testing.T) {
	s := newAudioTestStore(t)
	ctx := context.Background()

	enTopic, err := s.CreateOrGetTopic(ctx, "Primary Lang", "english", "")
	require.NoError(t, err)
	enGen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: enTopic.ID, TaskType: generation.TaskTypeFromTopic, Language: "english",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.AdvanceStatus(ctx, enGen.ID, generation.StatusContentReady))

	viTopic, err := s.CreateOrGetTopic(ctx, "Secondary Lang", "vietnamese", "")
	require.NoError(t, err)
	viGen, err := s.CreateGeneration(ctx, store.NewGenerationParams{
		TopicID: viTopic.ID, TaskType: generation.TaskTypeFromTopic, Language: "vietnamese",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.UpsertChunk(ctx, store.UpsertChunkParams{GenerationID: viGen.ID, SectionIndex: 0, Title: "A", Text: "vietnamese chunk text"}))
	require.NoError(t, s.AdvanceStatus(ctx, viGen.ID, generation.StatusContentReady))

	provider := &fakeProvider{name: "openai"}
	registry := tts.NewRegistry(provider)
	voices := inlineVoiceTable(t, "vietnamese", "openai", "alloy")
	ttsCfg := fastTTSConfig(t)

	executor := audio.NewParallelExecutor(s, registry, voices, ttsCfg, "english", 2)
	require.NoError(t, executor.PollAndExecute(ctx))

	reloadedVi, err := s.GetGeneration(ctx, viGen.ID)
	require.NoError(t, err)
	assert.NotEqual(t, generation.StatusContentReady, reloadedVi.Status)

	reloadedEn, err := s.GetGeneration(ctx, enGen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusContentReady, reloadedEn.Status)
}

func TestExecutorNoTasksAvailable(t *testing.T) {
	s := newAudioTestStore(t)
	provider := &fakeProvider{name: "openai"}
	registry := tts.NewRegistry(provider)
	voices := inlineVoiceTable(t, "english", "openai", "alloy")
	executor := audio.NewSerialExecutor(s, registry, voices, fastTTSConfig(t), "english")

	err := executor.PollAndExecute(context.Background())
	assert.ErrorIs(t, err, queue.ErrNoTasksAvailable)
}
