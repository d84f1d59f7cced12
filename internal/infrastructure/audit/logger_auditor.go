// Package audit emits key lifecycle events to an audit sink. The Kafka
// producer is the production sink; the logger auditor serves deployments
// without a broker.
package audit

import (
	"context"

	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/pkg/logger"
)

// LoggerAuditor writes audit events to the structured log.
type LoggerAuditor struct {
	log logger.Logger
}

// NewLoggerAuditor returns an auditor backed by log.
func NewLoggerAuditor(log logger.Logger) *LoggerAuditor {
	return &LoggerAuditor{log: log.WithComponent("audit")}
}

func (a *LoggerAuditor) LogEvent(ctx context.Context, event models.AuditEvent) error {
	a.log.Info(ctx, "audit event",
		logger.String("type", event.Type),
		logger.String("namespace", event.Namespace),
		logger.String("key_id", event.KeyID),
		logger.String("issuer", event.Issuer),
		logger.Time("at", event.At),
	)
	return nil
}

func (a *LoggerAuditor) Close() error { return nil }
