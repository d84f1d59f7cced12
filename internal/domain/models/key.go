// Package models holds the domain types of the keywheel service.
package models

import (
	"crypto"
	"encoding/json"
	"time"
)

// SigningKey is a generated keypair held in process memory. The private
// half is owned exclusively by the rotation controller and token signer;
// it is never serialized and never leaves the process.
type SigningKey struct {
	// ID is the key identifier (kid), assigned at generation time and
	// never reused.
	ID string
	// Algorithm is the JWS algorithm name the key was generated for,
	// fixed for the key's lifetime.
	Algorithm string
	// PrivateKey signs tokens. Never logged, never exported.
	PrivateKey crypto.Signer
	// PublicKey verifies tokens signed with PrivateKey.
	PublicKey crypto.PublicKey
	// PublicJWK is the public half rendered as a JSON Web Key, ready to
	// be published to the registry.
	PublicJWK json.RawMessage
	// CreatedAt is when the key was generated.
	CreatedAt time.Time
	// ExpiresAt is the advisory validity deadline stamped on the key's
	// registry record.
	ExpiresAt time.Time
}

// KeyRecord is the public key record exchanged with the shared registry.
// One record exists per generated key; records are never deleted by this
// service, they simply age out.
type KeyRecord struct {
	Namespace string          `json:"namespace"`
	KeyID     string          `json:"key_id"`
	PublicJWK json.RawMessage `json:"public_jwk"`
	Issuer    string          `json:"issuer"`
	ExpiresOn time.Time       `json:"expires_on"`
}

// Clone returns a deep copy so registry backends can hand out records
// without sharing the underlying JWK buffer.
func (r *KeyRecord) Clone() *KeyRecord {
	cp := *r
	cp.PublicJWK = append(json.RawMessage(nil), r.PublicJWK...)
	return &cp
}
