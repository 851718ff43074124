// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridedesk/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID ensures trip ids are UUIDs (matches the trip id generator).
func isValidID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeAppError maps error kinds to status codes. Anything without a kind is
// logged by the caller's middleware and reported as a bare 500.
func writeAppError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	switch appErr.Kind {
	case apperr.KindBadRequest:
		writeError(c, http.StatusBadRequest, appErr.Reason)
	case apperr.KindUnauthorized:
		writeError(c, http.StatusUnauthorized, appErr.Reason)
	case apperr.KindForbidden:
		writeError(c, http.StatusForbidden, appErr.Reason)
	case apperr.KindNotFound:
		writeError(c, http.StatusNotFound, appErr.Reason)
	case apperr.KindConflict:
		writeError(c, http.StatusConflict, appErr.Reason)
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// tripIDParam reads and validates the :id path parameter.
func tripIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid trip id")
		return "", false
	}
	return id, true
}
