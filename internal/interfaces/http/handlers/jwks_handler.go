package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keywheel/keywheel/internal/domain/service"
	"github.com/keywheel/keywheel/pkg/logger"
)

// JWKSHandler publishes the public keys of this service's namespace as a
// JWK Set. The active key is always included, even when its registry
// publish failed, so local clients can still verify fresh tokens.
type JWKSHandler struct {
	active    service.ActiveKeyProvider
	registry  service.KeyRegistry
	namespace string
	log       logger.Logger
}

func NewJWKSHandler(active service.ActiveKeyProvider, registry service.KeyRegistry, namespace string, log logger.Logger) *JWKSHandler {
	return &JWKSHandler{
		active:    active,
		registry:  registry,
		namespace: namespace,
		log:       log.WithComponent("jwks_handler"),
	}
}

type jwksResponse struct {
	Keys []json.RawMessage `json:"keys"`
}

// JWKS handles GET /.well-known/jwks.json.
func (h *JWKSHandler) JWKS(c *gin.Context) {
	seen := make(map[string]bool)
	var keys []json.RawMessage

	if key, ok := h.active.ActiveKey(); ok {
		keys = append(keys, key.PublicJWK)
		seen[key.ID] = true
	}

	records, err := h.registry.List(c.Request.Context(), h.namespace)
	if err != nil {
		h.log.Error(c.Request.Context(), "failed to list registry keys for jwks", err)
		if len(keys) == 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registry unavailable"})
			return
		}
		// Serve what we have; the active key alone is better than nothing.
	}
	for _, record := range records {
		if seen[record.KeyID] {
			continue
		}
		keys = append(keys, record.PublicJWK)
		seen[record.KeyID] = true
	}

	if keys == nil {
		keys = []json.RawMessage{}
	}
	c.JSON(http.StatusOK, jwksResponse{Keys: keys})
}
