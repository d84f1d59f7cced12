package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keywheel/keywheel/internal/domain/service"
)

// HealthHandler serves liveness and readiness probes. The service is not
// ready until the first rotation has installed a signing key.
type HealthHandler struct {
	active service.ActiveKeyProvider
}

func NewHealthHandler(active service.ActiveKeyProvider) *HealthHandler {
	return &HealthHandler{active: active}
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readiness(c *gin.Context) {
	if _, ok := h.active.ActiveKey(); !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no active signing key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
