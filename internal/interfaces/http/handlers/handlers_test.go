package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywheel/keywheel/internal/application"
	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/infrastructure/cache"
	"github.com/keywheel/keywheel/internal/infrastructure/crypto"
	"github.com/keywheel/keywheel/internal/infrastructure/registry"
	"github.com/keywheel/keywheel/pkg/logger"
)

type fixture struct {
	router   *gin.Engine
	rotation *application.RotationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.KeyConfig{
		Issuer:                  "default.issuer",
		Namespace:               "default",
		Algorithm:               "ES256",
		ExpirationSeconds:       300,
		RotationIntervalSeconds: 60,
	}
	reg := registry.NewMemoryRegistry()
	rotation := application.NewRotationService(crypto.NewGenerator(), reg, nil, cfg, nil, logger.NewNop())
	tokens := application.NewTokenService(rotation, reg, cache.NewVerificationCache(), cfg, nil, nil, logger.NewNop())

	router := gin.New()
	tokenHandler := NewTokenHandler(tokens, logger.NewNop())
	jwksHandler := NewJWKSHandler(rotation, reg, "default", logger.NewNop())
	healthHandler := NewHealthHandler(rotation)
	router.POST("/v1/tokens", tokenHandler.Sign)
	router.POST("/v1/tokens/verify", tokenHandler.Verify)
	router.GET("/.well-known/jwks.json", jwksHandler.JWKS)
	router.GET("/readyz", healthHandler.Readiness)

	return &fixture{router: router, rotation: rotation}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSignEndpoint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rotation.Rotate(context.Background()))

	w := f.do(t, http.MethodPost, "/v1/tokens", gin.H{
		"claims":             gin.H{"sub": "user-42", "aud": "billing"},
		"expires_in_seconds": 60,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	verify := f.do(t, http.MethodPost, "/v1/tokens/verify", gin.H{
		"token":    resp.Token,
		"audience": "billing",
	})
	require.Equal(t, http.StatusOK, verify.Code)

	var verified struct {
		Valid  bool                   `json:"valid"`
		Claims map[string]interface{} `json:"claims"`
	}
	require.NoError(t, json.Unmarshal(verify.Body.Bytes(), &verified))
	assert.True(t, verified.Valid)
	assert.Equal(t, "user-42", verified.Claims["sub"])
}

func TestSignEndpointBeforeFirstRotation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/tokens", gin.H{
		"claims":             gin.H{"sub": "user-42"},
		"expires_in_seconds": 60,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignEndpointRejectsBadBody(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rotation.Rotate(context.Background()))

	w := f.do(t, http.MethodPost, "/v1/tokens", gin.H{"claims": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpointInvalidToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rotation.Rotate(context.Background()))

	w := f.do(t, http.MethodPost, "/v1/tokens/verify", gin.H{"token": "not.a.token"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.NotEmpty(t, resp.Reason)
}

func TestJWKSEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))
	require.NoError(t, f.rotation.Rotate(ctx))

	w := f.do(t, http.MethodGet, "/.well-known/jwks.json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Both rotations published records; the active key must not repeat.
	assert.Len(t, resp.Keys, 2)
	for _, key := range resp.Keys {
		assert.Equal(t, "EC", key["kty"])
		assert.Equal(t, "sig", key["use"])
		assert.NotContains(t, key, "d")
	}
}

func TestJWKSEndpointEmpty(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/.well-known/jwks.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"keys":[]}`, w.Body.String())
}

func TestReadiness(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, f.rotation.Rotate(context.Background()))
	w = f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
