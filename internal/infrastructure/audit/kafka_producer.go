package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

// KafkaProducer publishes audit events to a Kafka topic, keyed by key id
// so events for one key stay ordered within a partition.
type KafkaProducer struct {
	writer *kafka.Writer
	log    logger.Logger
}

// NewKafkaProducer builds a producer from the Kafka configuration.
func NewKafkaProducer(cfg *config.KafkaConfig, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BatchTimeout: time.Duration(cfg.BatchTimeoutMS) * time.Millisecond,
	}
	return &KafkaProducer{
		writer: writer,
		log:    log.WithComponent("audit"),
	}
}

func (p *KafkaProducer) LogEvent(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to marshal audit event")
	}
	msg := kafka.Message{
		Key:   []byte(event.KeyID),
		Value: payload,
		Time:  event.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error(ctx, "failed to publish audit event", err,
			logger.String("type", event.Type),
			logger.String("key_id", event.KeyID),
		)
		return errors.Wrap(err, errors.CodeUnavailable, "failed to publish audit event")
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
