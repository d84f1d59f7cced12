// Command server runs the keywheel service: it rotates the signing key on
// a fixed interval, publishes public keys to the shared registry, sweeps
// the verification cache and serves the token HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/keywheel/keywheel/internal/application"
	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/service"
	"github.com/keywheel/keywheel/internal/infrastructure/audit"
	"github.com/keywheel/keywheel/internal/infrastructure/cache"
	"github.com/keywheel/keywheel/internal/infrastructure/crypto"
	"github.com/keywheel/keywheel/internal/infrastructure/monitoring"
	"github.com/keywheel/keywheel/internal/infrastructure/registry"
	httpiface "github.com/keywheel/keywheel/internal/interfaces/http"
	"github.com/keywheel/keywheel/internal/scheduler"
	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	bootLog := logger.NewNop()
	cfg, err := config.LoadConfig(bootLog)
	if err != nil {
		return err
	}

	log, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return err
	}
	for _, warning := range cfg.Warnings() {
		log.Warn(context.Background(), warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := monitoring.NewTracingManager(&cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn(context.Background(), "failed to flush traces", logger.Error(err))
		}
	}()

	promRegistry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(promRegistry)

	keyRegistry, err := buildRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}

	auditSvc := buildAudit(cfg, log)
	defer auditSvc.Close()

	verCache := cache.NewVerificationCache()
	rotation := application.NewRotationService(
		crypto.NewGenerator(), keyRegistry, auditSvc, &cfg.Keys, metrics, log)
	tokens := application.NewTokenService(
		rotation, keyRegistry, verCache, &cfg.Keys, metrics, tracing, log)

	// The first rotation runs synchronously so the service starts with an
	// active key. A registry outage at startup is logged but not fatal;
	// signing works locally and the next scheduled rotation republishes.
	// An unsupported algorithm, by contrast, will never fix itself.
	if err := rotation.Rotate(ctx); err != nil {
		if errors.Is(err, errors.ErrUnsupportedAlgorithm) {
			return err
		}
		log.Error(ctx, "initial key publish failed, continuing with local signing", err)
	}

	rotateTask := scheduler.Every(cfg.Keys.RotationInterval(), "key_rotation", log, rotation.Rotate)
	defer rotateTask.Stop()
	sweepTask := scheduler.Every(cfg.Cache.SweepInterval(), "cache_sweep", log, func(context.Context) error {
		metrics.RecordCacheSweep(verCache.Sweep())
		return nil
	})
	defer sweepTask.Stop()

	server := httpiface.NewServer(&cfg.Server, tokens, rotation, keyRegistry, cfg.Keys.Namespace, promRegistry, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildRegistry selects the registry backend from configuration.
func buildRegistry(ctx context.Context, cfg *config.Config, log logger.Logger) (service.KeyRegistry, error) {
	switch cfg.Registry.Backend {
	case "memory":
		log.Warn(ctx, "using in-memory registry, peers cannot resolve this service's keys")
		return registry.NewMemoryRegistry(), nil
	case "redis":
		client, err := registry.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		return registry.NewRedisRegistry(client), nil
	case "postgres":
		db, err := registry.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		return registry.NewSQLRegistry(db)
	case "vault":
		return registry.NewVaultRegistry(&cfg.Vault)
	default:
		// Validate has already rejected unknown backends.
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

// buildAudit prefers Kafka when brokers are configured, otherwise the
// structured log is the audit sink.
func buildAudit(cfg *config.Config, log logger.Logger) service.AuditService {
	if len(cfg.Kafka.Brokers) > 0 {
		return audit.NewKafkaProducer(&cfg.Kafka, log)
	}
	return audit.NewLoggerAuditor(log)
}
