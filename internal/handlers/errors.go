package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/courtkeeper/internal/apperr"
)

// respondError maps an apperr.Kind to its HTTP status and writes the body
// shape the collaborator contract promises: {error, conflictDetails?}.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	if e, ok := apperr.As(err); ok {
		body["error"] = e.Message
		switch e.Kind {
		case apperr.BadRequest:
			status = http.StatusBadRequest
		case apperr.Forbidden:
			status = http.StatusForbidden
		case apperr.NotFound:
			status = http.StatusNotFound
		case apperr.Conflict:
			status = http.StatusConflict
			if e.Details != nil {
				body["conflictDetails"] = e.Details
			}
		case apperr.Unavailable:
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusInternalServerError
		}
	}

	c.JSON(status, body)
}
