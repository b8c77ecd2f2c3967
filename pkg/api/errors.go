package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mediaforge/contentpipe/pkg/store"
)

// errMissingField builds the validation error used when a required form
// field is absent (§4.2's "missing required field").
func errMissingField(field string) error {
	return store.NewValidationError(field, "is required")
}

// writeServiceError maps a store/domain error to the HTTP status and body
// the Intake API's callers expect (§4.2's enumerated error surface:
// invalid id, database unavailable, duplicate active generation, missing
// required field).
func writeServiceError(c *gin.Context, err error) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrDuplicateActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotDeletable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("intake api internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
