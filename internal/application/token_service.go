package application

import (
	"context"
	stdcrypto "crypto"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/service"
	"github.com/keywheel/keywheel/internal/infrastructure/crypto"
	"github.com/keywheel/keywheel/internal/infrastructure/monitoring"
	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

// TokenService signs tokens with the active key and verifies tokens
// through layered key resolution: active key first, then the verification
// cache, then the shared registry.
type TokenService struct {
	active   service.ActiveKeyProvider
	registry service.KeyRegistry
	cache    service.VerificationCache
	cfg      *config.KeyConfig
	metrics  *monitoring.Metrics
	tracing  *monitoring.TracingManager
	log      logger.Logger
}

// NewTokenService wires a token service. tracing and metrics may be nil.
func NewTokenService(
	active service.ActiveKeyProvider,
	registry service.KeyRegistry,
	cache service.VerificationCache,
	cfg *config.KeyConfig,
	metrics *monitoring.Metrics,
	tracing *monitoring.TracingManager,
	log logger.Logger,
) *TokenService {
	return &TokenService{
		active:   active,
		registry: registry,
		cache:    cache,
		cfg:      cfg,
		metrics:  metrics,
		tracing:  tracing,
		log:      log.WithComponent("tokens"),
	}
}

// SignToken signs the payload claims with the active key. The issuer,
// issued-at and not-before claims are stamped from service configuration;
// expiresAt becomes the exp claim. Returns ErrPrivateKeyMissing before the
// first rotation has installed a key.
func (s *TokenService) SignToken(ctx context.Context, payload map[string]interface{}, expiresAt time.Time) (string, error) {
	ctx, span := s.tracing.StartSpan(ctx, "TokenService.SignToken")
	defer span.End()

	key, ok := s.active.ActiveKey()
	if !ok {
		s.metrics.RecordTokenSigned("no_key")
		return "", errors.ErrPrivateKeyMissing
	}

	now := time.Now()
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	claims["iss"] = s.cfg.Issuer
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()
	claims["exp"] = expiresAt.Unix()

	method, err := crypto.SigningMethodFor(key.Algorithm)
	if err != nil {
		s.metrics.RecordTokenSigned("error")
		return "", err
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = key.ID

	signed, err := token.SignedString(key.PrivateKey)
	if err != nil {
		s.metrics.RecordTokenSigned("error")
		return "", errors.Wrap(err, errors.CodeInternal, "failed to sign token")
	}
	s.metrics.RecordTokenSigned("success")
	return signed, nil
}

// VerifyToken checks the token's signature against the key named by its
// kid header and validates the standard claims, including the expected
// audience. The resolved claims are returned on success.
//
// Resolution order for the kid is active key, verification cache, then
// registry; a registry hit is cached for the configured key expiration. A
// token without a kid header fails immediately, no registry call is made.
func (s *TokenService) VerifyToken(ctx context.Context, tokenString, audience string) (map[string]interface{}, error) {
	ctx, span := s.tracing.StartSpan(ctx, "TokenService.VerifyToken")
	defer span.End()

	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		s.metrics.RecordTokenVerified("malformed")
		return nil, errors.Wrap(err, errors.CodeInvalidArgument, "malformed token")
	}
	kid, ok := unverified.Header["kid"].(string)
	if !ok || kid == "" {
		s.metrics.RecordTokenVerified("no_kid")
		return nil, errors.ErrKeyIDMissing
	}

	publicKey, err := s.resolvePublicKey(ctx, kid)
	if err != nil {
		s.metrics.RecordTokenVerified("key_resolution_failed")
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(crypto.SupportedMethods()),
		jwt.WithIssuedAt(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return publicKey, nil
	}, opts...)
	if err != nil {
		s.metrics.RecordTokenVerified("invalid")
		return nil, err
	}

	s.metrics.RecordTokenVerified("success")
	return claims, nil
}

// resolvePublicKey maps a kid to its verification key. The active key is
// checked first so the common verify-own-token path costs no I/O, then the
// cache, then the registry. Registry transport failures are returned to
// the caller unchanged; only a confirmed missing record becomes
// ErrKeyMissing.
func (s *TokenService) resolvePublicKey(ctx context.Context, kid string) (stdcrypto.PublicKey, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveResolveDuration(time.Since(start)) }()

	if key, ok := s.active.ActiveKey(); ok && key.ID == kid {
		s.metrics.RecordKeyResolution("active")
		return key.PublicKey, nil
	}

	if record, ok := s.cache.Get(kid); ok {
		s.metrics.RecordKeyResolution("cache")
		return crypto.DecodePublicJWK(record.PublicJWK)
	}

	record, err := s.registry.Fetch(ctx, s.cfg.Namespace, kid)
	if errors.IsNotFound(err) {
		s.metrics.RecordKeyResolution("miss")
		s.metrics.RecordRegistryOp("fetch", "not_found")
		return nil, errors.ErrKeyMissing.WithCause(err)
	}
	if err != nil {
		s.metrics.RecordRegistryOp("fetch", "error")
		return nil, err
	}
	s.metrics.RecordKeyResolution("registry")
	s.metrics.RecordRegistryOp("fetch", "success")

	s.cache.Put(kid, record, s.cfg.Expiration())
	return crypto.DecodePublicJWK(record.PublicJWK)
}
