package config

import "time"

// RetentionConfig controls the background cleanup sweep of terminal
// Generations; Topics are not swept. Not part of the core state machine;
// purely janitorial.
type RetentionConfig struct {
	// GenerationRetentionDays is how many days to keep completed/failed
	// Generations before soft-deleting them.
	GenerationRetentionDays int

	// CleanupInterval is how often the retention loop runs.
	CleanupInterval time.Duration
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		GenerationRetentionDays: 90,
		CleanupInterval:         12 * time.Hour,
	}
}

// LoadRetentionConfigFromEnv overlays environment overrides onto the defaults.
func LoadRetentionConfigFromEnv() RetentionConfig {
	cfg := DefaultRetentionConfig()
	if v := envInt("GENERATION_RETENTION_DAYS"); v > 0 {
		cfg.GenerationRetentionDays = v
	}
	return cfg
}
