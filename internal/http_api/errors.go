package http_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/core-coin/tabula/internal/fault"
)

// statusFor maps error kinds to HTTP statuses. Untyped errors are internal.
func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.Validation:
		return http.StatusBadRequest
	case fault.Authorization:
		return http.StatusUnauthorized
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Conflict:
		return http.StatusConflict
	case fault.StoreUnavailable:
		return http.StatusServiceUnavailable
	case fault.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed: ", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	s.logger.Debug("Request rejected: ", err)
	c.JSON(status, gin.H{"error": err.Error()})
}
