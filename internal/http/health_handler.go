package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"user-service/internal/health"
)

// HealthHandler expone el estado agregado de las dependencias.
type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health maneja GET /health. Sólo una dependencia crítica caída devuelve 503.
func (h *HealthHandler) Health(c *gin.Context) {
	report, critical := h.checker.Check(c.Request.Context())
	if critical {
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}
	c.JSON(http.StatusOK, report)
}
