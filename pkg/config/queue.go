package config

import (
	"os"
	"strconv"
	"time"
)

// QueueConfig controls polling, claim batching, and concurrency across the
// Content Worker and both Audio Workers.
type QueueConfig struct {
	// MaxConcurrentTasks is M in §4.3: the Content Worker's bound on
	// concurrently-claimed Generations.
	MaxConcurrentTasks int

	// ChunkWorkers is the bounded worker pool size for per-chunk LLM calls
	// within a single claimed from_topic Generation (§4.3.1 step 5, default 4).
	ChunkWorkers int

	// AudioParallelWorkers is W in §4.4: bounded per-task concurrency for the
	// parallel Audio Worker.
	AudioParallelWorkers int

	// PollInterval is the base interval between claim attempts when no task
	// was available on the previous tick.
	PollInterval time.Duration

	// PollIntervalJitter is random jitter added on top of PollInterval so
	// multiple worker processes don't thunder the store in lockstep.
	PollIntervalJitter time.Duration

	// StuckLockThreshold is how long a *_lock status may go without a write
	// before it is considered stuck and force-reset (§5).
	StuckLockThreshold time.Duration

	// OrphanDetectionInterval is how often the stuck-lock scan runs.
	OrphanDetectionInterval time.Duration

	// GracefulShutdownTimeout bounds how long Stop() waits for in-flight
	// tasks to finish before returning.
	GracefulShutdownTimeout time.Duration

	// PrimaryLanguage is the language claimed by the serial Audio Worker;
	// the parallel worker claims everything else (§4.4).
	PrimaryLanguage string

	// SerialAudioInterval / ParallelAudioInterval set the poll cadence for
	// each Audio Worker independently (VI_AUDIO_INTERVAL_MINUTES /
	// OTHER_AUDIO_INTERVAL_MINUTES in the source system).
	SerialAudioInterval   time.Duration
	ParallelAudioInterval time.Duration

	// AudioClaimBatch is the "limit 10 per poll" in §4.4 step 1.
	AudioClaimBatch int
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxConcurrentTasks:      2,
		ChunkWorkers:            4,
		AudioParallelWorkers:    4,
		PollInterval:            2 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		StuckLockThreshold:      1 * time.Hour,
		OrphanDetectionInterval: 5 * time.Minute,
		GracefulShutdownTimeout: 2 * time.Minute,
		PrimaryLanguage:         "vietnamese",
		SerialAudioInterval:     5 * time.Minute,
		ParallelAudioInterval:   5 * time.Minute,
		AudioClaimBatch:         10,
	}
}

// LoadQueueConfigFromEnv overlays environment overrides onto the defaults.
func LoadQueueConfigFromEnv() QueueConfig {
	cfg := DefaultQueueConfig()

	if v := envInt("MAX_CONCURRENT_TASKS"); v > 0 {
		cfg.MaxConcurrentTasks = v
	}
	if v := envInt("AUDIO_MAX_CONCURRENT_CHUNKS"); v > 0 {
		cfg.AudioParallelWorkers = v
	}
	if v := envInt("VI_AUDIO_INTERVAL_MINUTES"); v > 0 {
		cfg.SerialAudioInterval = time.Duration(v) * time.Minute
	}
	if v := envInt("OTHER_AUDIO_INTERVAL_MINUTES"); v > 0 {
		cfg.ParallelAudioInterval = time.Duration(v) * time.Minute
	}
	if v := os.Getenv("PRIMARY_AUDIO_LANGUAGE"); v != "" {
		cfg.PrimaryLanguage = v
	}

	return cfg
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
