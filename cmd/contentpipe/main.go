// Command contentpipe runs the content pipeline: the Intake API, the
// Content Worker pool, both Audio Worker pools, and the Retention Service,
// all sharing one Store over one database connection.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mediaforge/contentpipe/pkg/api"
	"github.com/mediaforge/contentpipe/pkg/audio"
	"github.com/mediaforge/contentpipe/pkg/config"
	"github.com/mediaforge/contentpipe/pkg/content"
	"github.com/mediaforge/contentpipe/pkg/database"
	"github.com/mediaforge/contentpipe/pkg/llm"
	"github.com/mediaforge/contentpipe/pkg/queue"
	"github.com/mediaforge/contentpipe/pkg/retention"
	"github.com/mediaforge/contentpipe/pkg/store"
	"github.com/mediaforge/contentpipe/pkg/tts"

	"github.com/gin-gonic/gin"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	gin.SetMode(getEnv("GIN_MODE", "release"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	slog.Info("connected to postgres and applied migrations")

	st := store.New(dbClient.Client)

	llmAddr := getEnv("CONTENT_LLM_ADDR", "localhost:50051")
	llmClient, err := llm.NewClient(llmAddr)
	if err != nil {
		log.Fatalf("failed to connect to content generation sidecar: %v", err)
	}
	defer llmClient.Close()

	ttsRegistry := tts.NewRegistry(
		&tts.OpenAICompatibleProvider{
			APIKey:     cfg.TTS.OpenAIAPIKey,
			BaseURL:    cfg.TTS.OpenAIBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.TTS.HTTPTimeout},
		},
		&tts.PollinationsProvider{
			HTTPClient: &http.Client{Timeout: cfg.TTS.HTTPTimeout},
		},
	)

	contentPool := queue.NewPool(
		"content", cfg.Queue.MaxConcurrentTasks,
		func(int) queue.TaskExecutor {
			return content.NewExecutor(st, llmClient, cfg.CPM, cfg.Queue.ChunkWorkers)
		},
		cfg.Queue.PollInterval, cfg.Queue.PollIntervalJitter,
		func(ctx context.Context) (int, error) { return st.ResetStuckLocks(ctx, cfg.Queue.StuckLockThreshold) },
		cfg.Queue.OrphanDetectionInterval,
	)

	audioSerialPool := queue.NewPool(
		"audio-serial", 1,
		func(int) queue.TaskExecutor {
			return audio.NewSerialExecutor(st, ttsRegistry, cfg.Voices, cfg.TTS, cfg.Queue.PrimaryLanguage)
		},
		cfg.Queue.SerialAudioInterval, cfg.Queue.PollIntervalJitter,
		nil, 0,
	)

	audioParallelPool := queue.NewPool(
		"audio-parallel", 1,
		func(int) queue.TaskExecutor {
			return audio.NewParallelExecutor(st, ttsRegistry, cfg.Voices, cfg.TTS, cfg.Queue.PrimaryLanguage, cfg.Queue.AudioParallelWorkers)
		},
		cfg.Queue.ParallelAudioInterval, cfg.Queue.PollIntervalJitter,
		nil, 0,
	)

	retentionService := retention.NewService(cfg.Retention, st)

	contentPool.Start(ctx)
	audioSerialPool.Start(ctx)
	audioParallelPool.Start(ctx)
	retentionService.Start(ctx)

	apiServer := api.NewServer(st, llmClient, dbClient.DB())

	addr := ":" + cfg.HTTPPort
	go func() {
		slog.Info("intake api listening", "addr", addr)
		if err := apiServer.Start(addr); err != nil {
			log.Fatalf("intake api server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutdown signal received, draining workers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("intake api shutdown error", "error", err)
	}

	contentPool.Stop()
	audioSerialPool.Stop()
	audioParallelPool.Stop()
	retentionService.Stop()

	slog.Info("shutdown complete")
}
