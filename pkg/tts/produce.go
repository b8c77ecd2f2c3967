package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediaforge/contentpipe/pkg/textsplit"
)

// VoiceSettings is the minimal shape ProduceChunkAudio needs from a resolved
// voice config entry (§6), decoupled from pkg/config to avoid an import
// cycle between the TTS subsystem and configuration loading.
type VoiceSettings struct {
	Provider     string
	VoiceName    string
	SpeakingRate float64
}

// ProduceChunkAudio synthesizes a single script chunk's text to outputPath,
// splitting it into provider-limit-sized sub-chunks and concatenating via
// ffmpeg when the text exceeds charLimit (§4.5.1 step 1-4).
func ProduceChunkAudio(ctx context.Context, registry *Registry, settings VoiceSettings, text string, charLimit int, ffmpegPath, outputPath string, minBytes int64) error {
	if settings.VoiceName == "" {
		return fmt.Errorf("missing voice_name in voice settings")
	}

	provider, err := registry.Get(settings.Provider)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	if len(text) <= charLimit {
		if err := provider.Synthesize(ctx, text, settings.VoiceName, settings.SpeakingRate, outputPath); err != nil {
			return err
		}
		return enforceMinSize(outputPath, minBytes)
	}

	subChunks := textsplit.Split(text, charLimit)
	if len(subChunks) == 0 {
		return fmt.Errorf("failed to split long chunk text for synthesis")
	}

	tempDir, err := os.MkdirTemp("", "tts-chunk-*")
	if err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	subPaths := make([]string, 0, len(subChunks))
	for i, sub := range subChunks {
		subPath := filepath.Join(tempDir, fmt.Sprintf("sub_%03d.mp3", i))
		if err := provider.Synthesize(ctx, sub, settings.VoiceName, settings.SpeakingRate, subPath); err != nil {
			return fmt.Errorf("synthesize sub-chunk %d/%d: %w", i+1, len(subChunks), err)
		}
		if err := enforceMinSize(subPath, minBytes); err != nil {
			return fmt.Errorf("sub-chunk %d/%d: %w", i+1, len(subChunks), err)
		}
		subPaths = append(subPaths, subPath)
	}

	return Concatenate(ctx, ffmpegPath, subPaths, outputPath, minBytes)
}

// enforceMinSize deletes outputPath and returns an error if its size is
// minBytes or less (§4.5.1 step 4's minimum-size failure rule).
func enforceMinSize(outputPath string, minBytes int64) error {
	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("stat synthesized audio: %w", err)
	}
	if info.Size() <= minBytes {
		os.Remove(outputPath)
		return fmt.Errorf("synthesized audio file empty or too small (%d bytes)", info.Size())
	}
	return nil
}
