// Package crypto implements key generation and JWK encoding for the
// signing-key lifecycle.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/pkg/errors"
)

const rsaKeyBits = 2048

// Generator creates signing keypairs. Key ids are random UUIDs, so a kid
// is never reused across the life of the deployment.
type Generator struct{}

// NewGenerator returns a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate creates a keypair for the given JWS algorithm name. Supported
// algorithms are ES256, ES384, RS256 and RS384. Anything else returns
// ErrUnsupportedAlgorithm with the offending name attached.
func (g *Generator) Generate(algorithm string) (*models.SigningKey, error) {
	key := &models.SigningKey{
		ID:        uuid.NewString(),
		Algorithm: algorithm,
		CreatedAt: time.Now().UTC(),
	}

	switch algorithm {
	case "ES256", "ES384":
		curve := elliptic.P256()
		if algorithm == "ES384" {
			curve = elliptic.P384()
		}
		priv, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to generate ecdsa key")
		}
		key.PrivateKey = priv
		key.PublicKey = &priv.PublicKey
	case "RS256", "RS384":
		priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to generate rsa key")
		}
		key.PrivateKey = priv
		key.PublicKey = &priv.PublicKey
	default:
		return nil, errors.ErrUnsupportedAlgorithm.WithCause(
			errors.Newf(errors.CodeUnsupportedAlgorithm, "algorithm %q", algorithm))
	}

	jwk, err := EncodePublicJWK(key.ID, algorithm, key.PublicKey)
	if err != nil {
		return nil, err
	}
	key.PublicJWK = jwk

	return key, nil
}

// SigningMethodFor maps an algorithm name to its JWT signing method, or
// ErrUnsupportedAlgorithm for names Generate does not support.
func SigningMethodFor(algorithm string) (jwt.SigningMethod, error) {
	switch algorithm {
	case "ES256":
		return jwt.SigningMethodES256, nil
	case "ES384":
		return jwt.SigningMethodES384, nil
	case "RS256":
		return jwt.SigningMethodRS256, nil
	case "RS384":
		return jwt.SigningMethodRS384, nil
	default:
		return nil, errors.ErrUnsupportedAlgorithm.WithCause(
			errors.Newf(errors.CodeUnsupportedAlgorithm, "algorithm %q", algorithm))
	}
}

// SupportedMethods lists the algorithm names accepted during verification.
func SupportedMethods() []string {
	return []string{"ES256", "ES384", "RS256", "RS384"}
}
