package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jewelfinder-go/internal/platform/errors"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, APIResponse{Success: false, Error: err.Error()})
}

// statusFor maps domain error kinds onto HTTP statuses. Capture and session
// problems are the caller's fault; everything else is ours.
func statusFor(err error) int {
	switch {
	case errors.IsKind(err, errors.KindCapture),
		errors.IsKind(err, errors.KindSession):
		return http.StatusBadRequest
	case errors.IsKind(err, errors.KindVoice):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
