// Package handlers contains the HTTP endpoint handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/keywheel/keywheel/internal/domain/service"
	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

// TokenHandler serves the signing and verification endpoints.
type TokenHandler struct {
	tokens service.TokenService
	log    logger.Logger
}

func NewTokenHandler(tokens service.TokenService, log logger.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, log: log.WithComponent("token_handler")}
}

type signRequest struct {
	Claims    map[string]interface{} `json:"claims"`
	ExpiresIn int                    `json:"expires_in_seconds" binding:"required,gt=0"`
}

type signResponse struct {
	Token string `json:"token"`
}

// Sign handles POST /v1/tokens.
func (h *TokenHandler) Sign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	expiresAt := time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
	token, err := h.tokens.SignToken(c.Request.Context(), req.Claims, expiresAt)
	if err != nil {
		if errors.Is(err, errors.ErrPrivateKeyMissing) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active signing key"})
			return
		}
		h.log.Error(c.Request.Context(), "failed to sign token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
		return
	}
	c.JSON(http.StatusOK, signResponse{Token: token})
}

type verifyRequest struct {
	Token    string `json:"token" binding:"required"`
	Audience string `json:"audience"`
}

type verifyResponse struct {
	Valid  bool                   `json:"valid"`
	Claims map[string]interface{} `json:"claims,omitempty"`
	Reason string                 `json:"reason,omitempty"`
}

// Verify handles POST /v1/tokens/verify. Verification failures are a
// normal outcome for this endpoint and return 200 with valid=false;
// only infrastructure failures produce a 5xx.
func (h *TokenHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	claims, err := h.tokens.VerifyToken(c.Request.Context(), req.Token, req.Audience)
	if err != nil {
		if verificationOutcome(err) {
			c.JSON(http.StatusOK, verifyResponse{Valid: false, Reason: err.Error()})
			return
		}
		h.log.Error(c.Request.Context(), "token verification hit an infrastructure failure", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification unavailable"})
		return
	}
	c.JSON(http.StatusOK, verifyResponse{Valid: true, Claims: claims})
}

// verificationOutcome reports whether err describes a property of the
// token itself rather than a backend failure.
func verificationOutcome(err error) bool {
	switch {
	case errors.Is(err, errors.ErrKeyIDMissing),
		errors.Is(err, errors.ErrKeyMissing),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return true
	case errors.CodeOf(err) == errors.CodeInvalidArgument:
		return true
	}
	return false
}
