// Package application implements the keywheel use cases on top of the
// domain interfaces: rotating the signing key and signing and verifying
// tokens.
package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/internal/domain/service"
	"github.com/keywheel/keywheel/internal/infrastructure/monitoring"
	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

// RotationService owns the single active signing key. It is the only
// writer of the active slot; signers and verifiers read through ActiveKey.
type RotationService struct {
	generator service.KeyGenerator
	registry  service.KeyRegistry
	audit     service.AuditService
	cfg       *config.KeyConfig
	metrics   *monitoring.Metrics
	log       logger.Logger

	mu     sync.RWMutex
	active *models.SigningKey

	rotating atomic.Bool
}

// NewRotationService wires a rotation controller. No key is active until
// the first Rotate completes.
func NewRotationService(
	generator service.KeyGenerator,
	registry service.KeyRegistry,
	auditSvc service.AuditService,
	cfg *config.KeyConfig,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *RotationService {
	return &RotationService{
		generator: generator,
		registry:  registry,
		audit:     auditSvc,
		cfg:       cfg,
		metrics:   metrics,
		log:       log.WithComponent("rotation"),
	}
}

// ActiveKey returns the current signing key, or false before the first
// successful rotation.
func (s *RotationService) ActiveKey() (*models.SigningKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, false
	}
	return s.active, true
}

// Rotate generates a fresh key, installs it as the active signing key and
// publishes its public record to the registry. The new key is installed
// before the publish, so local signing moves to the new key even if the
// registry write fails; the failure is surfaced to the caller and audited,
// and the next rotation publishes a fresh key anyway.
//
// Overlapping calls do not queue: if a rotation is already in flight the
// call is skipped. A skip is not an error, the in-flight rotation is doing
// the same work.
func (s *RotationService) Rotate(ctx context.Context) error {
	if !s.rotating.CompareAndSwap(false, true) {
		s.log.Warn(ctx, "rotation already in progress, skipping")
		s.metrics.RecordRotation("skipped")
		s.auditEvent(ctx, models.AuditEvent{
			Type:      models.AuditEventRotationSkipped,
			Namespace: s.cfg.Namespace,
			At:        time.Now().UTC(),
		})
		return nil
	}
	defer s.rotating.Store(false)

	key, err := s.generator.Generate(s.cfg.Algorithm)
	if err != nil {
		s.metrics.RecordRotation("generate_error")
		s.auditEvent(ctx, models.AuditEvent{
			Type:      models.AuditEventRotationGenFailed,
			Namespace: s.cfg.Namespace,
			At:        time.Now().UTC(),
			Metadata:  map[string]string{"error": err.Error()},
		})
		return err
	}
	key.ExpiresAt = time.Now().Add(s.cfg.Expiration()).UTC()

	s.mu.Lock()
	s.active = key
	s.mu.Unlock()

	s.log.Info(ctx, "new signing key installed",
		logger.String("key_id", key.ID),
		logger.String("algorithm", key.Algorithm),
		logger.Time("expires_at", key.ExpiresAt),
	)

	record := &models.KeyRecord{
		Namespace: s.cfg.Namespace,
		KeyID:     key.ID,
		PublicJWK: key.PublicJWK,
		Issuer:    s.cfg.Issuer,
		ExpiresOn: key.ExpiresAt,
	}
	if err := s.registry.Create(ctx, record); err != nil {
		s.metrics.RecordRotation("publish_error")
		s.metrics.RecordRegistryOp("create", "error")
		s.log.Error(ctx, "failed to publish key record, peers cannot verify tokens signed with this key", err,
			logger.String("key_id", key.ID),
		)
		s.auditEvent(ctx, models.AuditEvent{
			Type:      models.AuditEventKeyPublishFailed,
			Namespace: s.cfg.Namespace,
			KeyID:     key.ID,
			Issuer:    s.cfg.Issuer,
			At:        time.Now().UTC(),
		})
		return errors.Wrap(err, errors.CodeUnavailable, "failed to publish key record")
	}
	s.metrics.RecordRegistryOp("create", "success")
	s.metrics.RecordRotation("success")

	s.auditEvent(ctx, models.AuditEvent{
		Type:      models.AuditEventKeyRotated,
		Namespace: s.cfg.Namespace,
		KeyID:     key.ID,
		Issuer:    s.cfg.Issuer,
		At:        time.Now().UTC(),
	})
	return nil
}

func (s *RotationService) auditEvent(ctx context.Context, event models.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.log.Warn(ctx, "failed to record audit event", logger.String("type", event.Type))
	}
}
