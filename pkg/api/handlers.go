package api

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mediaforge/contentpipe/pkg/models"
	"github.com/mediaforge/contentpipe/pkg/store"
)

func optionsFrom(duration int, priorityLabel, model string) models.SubmissionOptions {
	if duration == 0 {
		duration = 10
	}
	opts := models.SubmissionOptions{
		TargetDurationMinutes: duration,
		Priority:              models.PriorityFromLabel(priorityLabel),
		Model:                 model,
	}
	opts.Clamp()
	return opts
}

// handleInitialSubmission implements POST /handle_initial_submission (§6).
func (s *Server) handleInitialSubmission(c *gin.Context) {
	var req models.InitialSubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		writeServiceError(c, store.NewValidationError("form", err.Error()))
		return
	}
	opts := optionsFrom(req.TargetDurationMinutes, req.PriorityLabel, req.Model)

	switch req.TaskType {
	case "from_topic":
		suggestions, err := s.suggestTitles(c.Request.Context(), req.SeedTopic, req.Language, opts.Model)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderSuggestionsFragment(suggestions)))

	case "rewrite_script":
		outcome, err := s.enqueueRewrite(c.Request.Context(), req.SourceScript, req.Language, opts)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderEnqueuedFragment(outcome)))

	default:
		writeServiceError(c, store.NewValidationError("task_type", "must be from_topic or rewrite_script"))
	}
}

// handleSubmitSelectedForGeneration implements POST /submit_selected_for_generation (§6).
func (s *Server) handleSubmitSelectedForGeneration(c *gin.Context) {
	var req models.SubmitSelectedRequest
	if err := c.ShouldBind(&req); err != nil {
		writeServiceError(c, store.NewValidationError("form", err.Error()))
		return
	}
	if len(req.Selected) == 0 {
		writeServiceError(c, errMissingField("selected_suggestion"))
		return
	}
	opts := optionsFrom(req.TargetDurationMinutes, req.PriorityLabel, req.Model)

	var rows []string
	for _, selection := range req.Selected {
		original, translated, ok := strings.Cut(selection, "||")
		if !ok {
			original = selection
		}
		outcome, err := s.enqueueFromTopic(c.Request.Context(), original, translated, req.Language, opts)
		switch {
		case err != nil:
			rows = append(rows, fmt.Sprintf("<li class=\"error\">%s: %s</li>", html.EscapeString(original), html.EscapeString(err.Error())))
		case outcome.Skipped:
			rows = append(rows, fmt.Sprintf("<li class=\"skipped\">%s: already in progress</li>", html.EscapeString(original)))
		default:
			rows = append(rows, fmt.Sprintf("<li class=\"enqueued\">%s: generation %s enqueued</li>", html.EscapeString(original), html.EscapeString(outcome.GenerationID)))
		}
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<ul>"+strings.Join(rows, "")+"</ul>"))
}

// handleDeleteTopic implements DELETE /delete_topic/:id (§4.2): only a
// suggested, unlinked Topic may be removed.
func (s *Server) handleDeleteTopic(c *gin.Context) {
	if err := s.store.DeleteTopic(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleDeleteGeneration implements DELETE /delete_generation/:id: deletes
// chunks, then the generation, then unlinks its Topic (§4.2 ordering).
func (s *Server) handleDeleteGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	gen, err := s.store.GetGeneration(ctx, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if err := s.store.DeleteGeneration(ctx, id); err != nil {
		writeServiceError(c, err)
		return
	}

	if err := s.store.UnlinkTopic(ctx, gen.TopicID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleResetGeneration implements POST /reset_generation/:id.
func (s *Server) handleResetGeneration(c *gin.Context) {
	if err := s.store.ResetGeneration(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// handleResetTopicLink implements POST /reset_topic_link/:id.
func (s *Server) handleResetTopicLink(c *gin.Context) {
	if err := s.store.ResetTopicLink(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// handleGenerationStatus implements GET /api/generation_status/:id (§6).
func (s *Server) handleGenerationStatus(c *gin.Context) {
	gen, err := s.store.GetGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := models.GenerationStatusResponse{
		Status:    string(gen.Status),
		UpdatedAt: gen.UpdatedAt,
	}
	if gen.ErrorMessage != nil {
		info := models.ErrorInfo{Message: *gen.ErrorMessage}
		if gen.ErrorStage != nil {
			info.Stage = *gen.ErrorStage
		}
		if gen.ErrorAt != nil {
			info.Timestamp = *gen.ErrorAt
		}
		resp.Error = &info
	}
	c.JSON(http.StatusOK, resp)
}

func renderSuggestionsFragment(suggestions []models.Suggestion) string {
	var b strings.Builder
	b.WriteString("<ul class=\"suggestions\">")
	for _, sug := range suggestions {
		fmt.Fprintf(&b, "<li data-original=\"%s\" data-translation-vi=\"%s\">%s (%s)</li>",
			html.EscapeString(sug.Original), html.EscapeString(sug.TranslationVI), html.EscapeString(sug.Original), html.EscapeString(sug.TranslationVI))
	}
	b.WriteString("</ul>")
	return b.String()
}

func renderEnqueuedFragment(outcome enqueueOutcome) string {
	if outcome.Skipped {
		return "<p class=\"skipped\">a generation is already in progress for this topic</p>"
	}
	return fmt.Sprintf("<p class=\"enqueued\">generation %s enqueued</p>", html.EscapeString(outcome.GenerationID))
}
