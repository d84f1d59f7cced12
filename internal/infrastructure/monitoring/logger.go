// Package monitoring wires the observability stack: structured logging,
// Prometheus metrics and OpenTelemetry tracing.
package monitoring

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/pkg/logger"
)

// zapLogger implements logger.Logger on top of zap.
type zapLogger struct {
	log *zap.Logger
}

// NewZapLogger builds the production logger. Unknown levels fall back to
// info rather than failing startup.
func NewZapLogger(cfg *config.LogConfig) (logger.Logger, error) {
	level := zapcore.InfoLevel
	if cfg != nil {
		if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &zapLogger{log: log}, nil
}

func toZapFields(fields []logger.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (l *zapLogger) Debug(_ context.Context, msg string, fields ...logger.Field) {
	l.log.Debug(msg, toZapFields(fields)...)
}

func (l *zapLogger) Info(_ context.Context, msg string, fields ...logger.Field) {
	l.log.Info(msg, toZapFields(fields)...)
}

func (l *zapLogger) Warn(_ context.Context, msg string, fields ...logger.Field) {
	l.log.Warn(msg, toZapFields(fields)...)
}

func (l *zapLogger) Error(_ context.Context, msg string, err error, fields ...logger.Field) {
	l.log.Error(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (l *zapLogger) Fatal(_ context.Context, msg string, err error, fields ...logger.Field) {
	l.log.Fatal(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{log: l.log.With(zap.String("component", component))}
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &zapLogger{log: l.log.With(toZapFields(fields)...)}
}
