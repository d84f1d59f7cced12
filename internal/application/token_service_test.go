package application

import (
	"context"
	goerrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/internal/infrastructure/cache"
	"github.com/keywheel/keywheel/internal/infrastructure/crypto"
	"github.com/keywheel/keywheel/internal/infrastructure/registry"
	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

// countingRegistry counts Fetch calls so tests can prove which resolution
// layer served a lookup.
type countingRegistry struct {
	*registry.MemoryRegistry
	fetches atomic.Int32
}

func (r *countingRegistry) Fetch(ctx context.Context, namespace, keyID string) (*models.KeyRecord, error) {
	r.fetches.Add(1)
	return r.MemoryRegistry.Fetch(ctx, namespace, keyID)
}

type tokenFixture struct {
	rotation *RotationService
	tokens   *TokenService
	registry *countingRegistry
	cache    *cache.VerificationCache
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	reg := &countingRegistry{MemoryRegistry: registry.NewMemoryRegistry()}
	verCache := cache.NewVerificationCache()
	cfg := testKeyConfig()
	rotation := NewRotationService(crypto.NewGenerator(), reg, nil, cfg, nil, logger.NewNop())
	tokens := NewTokenService(rotation, reg, verCache, cfg, nil, nil, logger.NewNop())
	return &tokenFixture{rotation: rotation, tokens: tokens, registry: reg, cache: verCache}
}

func TestTokenService_SignBeforeFirstRotation(t *testing.T) {
	f := newTokenFixture(t)

	_, err := f.tokens.SignToken(context.Background(), nil, time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, errors.ErrPrivateKeyMissing)
}

func TestTokenService_SignAndVerifyRoundTrip(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	payload := map[string]interface{}{
		"sub": "user-42",
		"aud": "billing",
	}
	token, err := f.tokens.SignToken(ctx, payload, time.Now().Add(time.Minute))
	require.NoError(t, err)

	claims, err := f.tokens.VerifyToken(ctx, token, "billing")
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims["sub"])
	assert.Equal(t, "default.issuer", claims["iss"])

	// Own tokens resolve through the active key, never the registry.
	assert.Equal(t, int32(0), f.registry.fetches.Load())
	assert.Equal(t, 0, f.cache.Len())
}

func TestTokenService_VerifyAfterRotationUsesRegistryThenCache(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	token, err := f.tokens.SignToken(ctx, map[string]interface{}{"aud": "billing"}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	// The signing key is replaced, so the old kid is no longer active and
	// must be resolved from the registry.
	require.NoError(t, f.rotation.Rotate(ctx))

	_, err = f.tokens.VerifyToken(ctx, token, "billing")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.registry.fetches.Load())
	assert.Equal(t, 1, f.cache.Len())

	// Second verification of the same kid is served from the cache.
	_, err = f.tokens.VerifyToken(ctx, token, "billing")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.registry.fetches.Load())
}

func TestTokenService_VerifyMissingKidSkipsRegistry(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	key, _ := f.rotation.ActiveKey()
	unstamped := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	token, err := unstamped.SignedString(key.PrivateKey)
	require.NoError(t, err)

	_, err = f.tokens.VerifyToken(ctx, token, "")
	assert.ErrorIs(t, err, errors.ErrKeyIDMissing)
	assert.Equal(t, int32(0), f.registry.fetches.Load())
}

func TestTokenService_VerifyUnknownKid(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	// A token signed by a peer whose key was never published.
	stranger, err := crypto.NewGenerator().Generate("ES256")
	require.NoError(t, err)
	unknown := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	unknown.Header["kid"] = stranger.ID
	token, err := unknown.SignedString(stranger.PrivateKey)
	require.NoError(t, err)

	_, err = f.tokens.VerifyToken(ctx, token, "")
	assert.ErrorIs(t, err, errors.ErrKeyMissing)
}

func TestTokenService_VerifyPeerTokenFromRegistry(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	// A peer publishes its key to the shared registry, then signs.
	peer, err := crypto.NewGenerator().Generate("ES256")
	require.NoError(t, err)
	require.NoError(t, f.registry.Create(ctx, &models.KeyRecord{
		Namespace: "default",
		KeyID:     peer.ID,
		PublicJWK: peer.PublicJWK,
		Issuer:    "peer.issuer",
		ExpiresOn: time.Now().Add(time.Hour),
	}))

	peerToken := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub": "peer-user",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	peerToken.Header["kid"] = peer.ID
	token, err := peerToken.SignedString(peer.PrivateKey)
	require.NoError(t, err)

	claims, err := f.tokens.VerifyToken(ctx, token, "")
	require.NoError(t, err)
	assert.Equal(t, "peer-user", claims["sub"])
}

func TestTokenService_VerifyAudienceMismatch(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	token, err := f.tokens.SignToken(ctx, map[string]interface{}{"aud": "billing"}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = f.tokens.VerifyToken(ctx, token, "shipping")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestTokenService_VerifyExpiredToken(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	token, err := f.tokens.SignToken(ctx, nil, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = f.tokens.VerifyToken(ctx, token, "")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenService_VerifyMalformedToken(t *testing.T) {
	f := newTokenFixture(t)

	_, err := f.tokens.VerifyToken(context.Background(), "not.a.token", "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrKeyIDMissing)
}

func TestTokenService_VerifyTamperedToken(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rotation.Rotate(ctx))

	token, err := f.tokens.SignToken(ctx, map[string]interface{}{"sub": "user-42"}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = f.tokens.VerifyToken(ctx, tampered, "")
	assert.Error(t, err)
}

// brokenRegistry simulates a registry outage on reads.
type brokenRegistry struct {
	*registry.MemoryRegistry
	fetchErr error
}

func (r *brokenRegistry) Fetch(context.Context, string, string) (*models.KeyRecord, error) {
	return nil, r.fetchErr
}

func TestTokenService_RegistryOutagePropagatesUnchanged(t *testing.T) {
	outage := goerrors.New("registry timeout")
	reg := &brokenRegistry{MemoryRegistry: registry.NewMemoryRegistry(), fetchErr: outage}
	verCache := cache.NewVerificationCache()
	cfg := testKeyConfig()
	rotation := NewRotationService(crypto.NewGenerator(), reg, nil, cfg, nil, logger.NewNop())
	tokens := NewTokenService(rotation, reg, verCache, cfg, nil, nil, logger.NewNop())
	ctx := context.Background()
	require.NoError(t, rotation.Rotate(ctx))

	stranger, err := crypto.NewGenerator().Generate("ES256")
	require.NoError(t, err)
	peerToken := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	peerToken.Header["kid"] = stranger.ID
	token, err := peerToken.SignedString(stranger.PrivateKey)
	require.NoError(t, err)

	_, err = tokens.VerifyToken(ctx, token, "")
	assert.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, errors.ErrKeyMissing)
}
