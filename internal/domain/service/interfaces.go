// Package service defines the interfaces between the keywheel application
// layer and its collaborators. Implementations live under
// internal/infrastructure; the application layer depends only on these.
package service

import (
	"context"
	"time"

	"github.com/keywheel/keywheel/internal/domain/models"
)

// KeyGenerator produces fresh signing keypairs for a named algorithm.
type KeyGenerator interface {
	// Generate creates a keypair with a fresh key id. It returns
	// errors.ErrUnsupportedAlgorithm for algorithm names it does not
	// implement; that is a configuration error and is not retried.
	Generate(algorithm string) (*models.SigningKey, error)
}

// KeyRegistry is the shared, namespaced store of public key records that
// peers resolve verification keys from. Failures are opaque transport or
// storage errors; Fetch reports a missing record as errors.ErrRecordNotFound.
type KeyRegistry interface {
	Create(ctx context.Context, record *models.KeyRecord) error
	Fetch(ctx context.Context, namespace, keyID string) (*models.KeyRecord, error)
	List(ctx context.Context, namespace string) ([]*models.KeyRecord, error)
}

// VerificationCache is the time-bounded kid → record mapping that shields
// the registry from repeated reads.
type VerificationCache interface {
	// Get returns the cached record only while its TTL has not passed.
	// An expired entry is reported as absent but left in place; removal
	// is Sweep's job.
	Get(keyID string) (*models.KeyRecord, bool)
	// Put inserts or fully replaces the entry for keyID.
	Put(keyID string, record *models.KeyRecord, ttl time.Duration)
	// Sweep removes every expired entry and returns how many it removed.
	Sweep() int
	// Len reports the number of entries, expired ones included.
	Len() int
}

// ActiveKeyProvider exposes the single active signing key. The rotation
// controller is the sole writer; signers and verifiers read through this.
type ActiveKeyProvider interface {
	// ActiveKey returns a consistent snapshot of the active key, or
	// false before the first rotation completes.
	ActiveKey() (*models.SigningKey, bool)
}

// TokenService is the public surface other subsystems depend on. Rotation
// and caching internals are not part of the contract.
type TokenService interface {
	// SignToken signs the payload claims with the active key, stamping
	// issuer, issued-at, not-before and the supplied expiration.
	SignToken(ctx context.Context, payload map[string]interface{}, expiresAt time.Time) (string, error)
	// VerifyToken resolves the token's kid to a public key and verifies
	// signature, audience and standard claims, returning the claims.
	VerifyToken(ctx context.Context, token, audience string) (map[string]interface{}, error)
}

// AuditService receives key lifecycle events.
type AuditService interface {
	LogEvent(ctx context.Context, event models.AuditEvent) error
	Close() error
}
