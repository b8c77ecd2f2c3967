package config

import (
	"os"
	"time"
)

// TTSConfig configures the TTS subsystem (§4.5) and its filesystem layout
// (§6).
type TTSConfig struct {
	// AudioRoot is AUDIO_ROOT / LOCAL_AUDIO_OUTPUT_PATH: the base directory
	// under which per-script subdirectories of chunk/combined MP3s are
	// written.
	AudioRoot string

	// FFmpegPath is the path to the ffmpeg binary used for concatenation
	// (§4.5.2).
	FFmpegPath string

	// APICharLimit is the provider call-size cap before sub-chunking kicks
	// in (§4.5.1 step 1).
	APICharLimit int

	// MinAudioFileSizeBytes is the size an output MP3 must exceed to be
	// considered a success (§4.5.1 step 4).
	MinAudioFileSizeBytes int64

	// RetryAttempts / RetryWait implement the fixed-backoff retry policy of
	// §4.5.1 step 3.
	RetryAttempts int
	RetryWait     time.Duration

	// HTTPTimeout bounds provider HTTP calls (§5 "Per-call HTTP timeout").
	HTTPTimeout time.Duration

	// OpenAI-compatible provider settings.
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Pollinations/generic HTTP TTS provider settings.
	TTSAPIKey  string
	TTSBaseURL string
}

// DefaultTTSConfig returns the built-in TTS defaults.
func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		AudioRoot:              "./audio_output",
		FFmpegPath:             "ffmpeg",
		APICharLimit:           500,
		MinAudioFileSizeBytes:  100,
		RetryAttempts:          3,
		RetryWait:              5 * time.Second,
		HTTPTimeout:            120 * time.Second,
		OpenAIBaseURL:          "https://api.openai.com/v1",
		TTSBaseURL:             "https://text.pollinations.ai",
	}
}

// LoadTTSConfigFromEnv overlays environment overrides onto the defaults.
func LoadTTSConfigFromEnv() TTSConfig {
	cfg := DefaultTTSConfig()

	if v := os.Getenv("LOCAL_AUDIO_OUTPUT_PATH"); v != "" {
		cfg.AudioRoot = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.FFmpegPath = v
	}
	if v := envInt("TTS_CHUNK_CHAR_LIMIT"); v > 0 {
		cfg.APICharLimit = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("TTS_API_KEY"); v != "" {
		cfg.TTSAPIKey = v
	}
	if v := os.Getenv("TTS_BASE_URL"); v != "" {
		cfg.TTSBaseURL = v
	}

	return cfg
}
