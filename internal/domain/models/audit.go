package models

import "time"

// Audit event types emitted by the key lifecycle.
const (
	AuditEventKeyRotated        = "key.rotated"
	AuditEventKeyPublishFailed  = "key.publish_failed"
	AuditEventRotationSkipped   = "key.rotation_skipped"
	AuditEventRotationGenFailed = "key.generation_failed"
)

// AuditEvent records a key lifecycle transition for the audit stream.
// It carries key identifiers only, never key material.
type AuditEvent struct {
	Type      string            `json:"type"`
	Namespace string            `json:"namespace"`
	KeyID     string            `json:"key_id,omitempty"`
	Issuer    string            `json:"issuer,omitempty"`
	At        time.Time         `json:"at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
