// Package api implements the Intake API (§4.2, §6): the form-encoded HTTP
// boundary through which topics and source scripts are submitted, and
// through which an operator inspects or resets a Generation.
package api

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediaforge/contentpipe/pkg/database"
	"github.com/mediaforge/contentpipe/pkg/llm"
	"github.com/mediaforge/contentpipe/pkg/store"
)

// Server holds the dependencies every handler needs. Constructed once at
// startup and handed to gin, matching the Store's own "constructed once"
// design note (§9).
type Server struct {
	store      *store.Store
	llm        *llm.Client
	db         *stdsql.DB
	httpServer *http.Server
}

// NewServer builds a Server. db is the raw pool handle used only for
// GET /health's connection-pool report (pkg/database.Health); every other
// operation goes through store.
func NewServer(s *store.Store, llmClient *llm.Client, db *stdsql.DB) *Server {
	return &Server{store: s, llm: llmClient, db: db}
}

// Router builds the gin engine with every route from §6 registered.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()

	router.GET("/health", s.handleHealth)
	router.POST("/handle_initial_submission", s.handleInitialSubmission)
	router.POST("/submit_selected_for_generation", s.handleSubmitSelectedForGeneration)
	router.DELETE("/delete_topic/:id", s.handleDeleteTopic)
	router.DELETE("/delete_generation/:id", s.handleDeleteGeneration)
	router.POST("/reset_generation/:id", s.handleResetGeneration)
	router.POST("/reset_topic_link/:id", s.handleResetTopicLink)
	router.GET("/api/generation_status/:id", s.handleGenerationStatus)

	return router
}

// Start runs the HTTP server on addr (blocking until Shutdown is called).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Router()}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports database pool health and the Content Worker's queue
// backlog, mirroring the teacher's tri-state health check translated to this
// system's two dependencies.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]HealthCheck{}
	status := "healthy"

	if dbHealth, err := database.Health(ctx, s.db); err != nil {
		checks["database"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
		status = "unhealthy"
	} else {
		checks["database"] = HealthCheck{
			Status: dbHealth.Status,
			Details: map[string]any{
				"open_connections": dbHealth.OpenConnections,
				"in_use":           dbHealth.InUse,
				"idle":             dbHealth.Idle,
				"wait_count":       dbHealth.WaitCount,
			},
		}
	}

	if backlog, err := s.store.PendingContentBacklog(ctx); err != nil {
		checks["content_queue"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
		status = "unhealthy"
	} else {
		checks["content_queue"] = HealthCheck{
			Status:  "healthy",
			Message: fmt.Sprintf("%d generation(s) awaiting content", backlog),
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{Status: status, Checks: checks})
}
