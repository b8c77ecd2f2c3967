// Package config loads contentpipe's flat, environment-driven configuration.
//
// Unlike the teacher's YAML agent/chain/MCP registry tree, this system has no
// per-entity registries to load — every knob here is a single env-driven
// struct per concern, matching spec.md §6's environment variable list.
package config

import (
	"fmt"
	"os"
)

// Config is the umbrella object constructed once at startup and threaded
// through the workers, API server, and retention service.
type Config struct {
	HTTPPort  string
	Queue     QueueConfig
	Retention RetentionConfig
	CPM       CPMConfig
	TTS       TTSConfig
	Voices    *VoiceTable
}

// Load builds Config from the process environment. Callers are expected to
// have already called godotenv.Load() (see cmd/contentpipe/main.go) so that
// .env entries are visible via os.Getenv.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),
		Queue:     LoadQueueConfigFromEnv(),
		Retention: LoadRetentionConfigFromEnv(),
		CPM:       LoadCPMConfigFromEnv(),
		TTS:       LoadTTSConfigFromEnv(),
	}

	if path := os.Getenv("VOICE_CONFIG_FILE"); path != "" {
		table, err := LoadVoiceTable(path)
		if err != nil {
			return nil, fmt.Errorf("load voice config: %w", err)
		}
		cfg.Voices = table
	} else {
		cfg.Voices = &VoiceTable{}
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
