package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

// LoadConfig loads the configuration from file and environment variables,
// searching /etc/keywheel/ and the working directory for config.yaml.
func LoadConfig(log logger.Logger) (*Config, error) {
	return LoadConfigFrom(log, "")
}

// LoadConfigFrom is LoadConfig with an explicit search directory, used by
// tests and the CLI's config check command.
func LoadConfigFrom(log logger.Logger, dir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath("/etc/keywheel/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.CodeInvalidArgument, "failed to read config file")
		}
	}

	v.SetEnvPrefix("KEYWHEEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidArgument, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, warning := range cfg.Warnings() {
		log.Warn(context.Background(), warning)
	}

	// Hot-reload hook: log config file changes so operators can confirm a
	// rollout landed. Lifecycle options still require a restart.
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info(context.Background(), "config file changed", logger.String("file", e.Name))
	})
	v.WatchConfig()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)

	v.SetDefault("keys.issuer", "default.issuer")
	v.SetDefault("keys.namespace", "default")
	v.SetDefault("keys.algorithm", "ES256")
	// Zero defaults keep these keys visible to viper so environment
	// overrides bind; Validate rejects the zero values.
	v.SetDefault("keys.expiration_seconds", 0)
	v.SetDefault("keys.rotation_interval_seconds", 0)

	v.SetDefault("registry.backend", "memory")
	v.SetDefault("cache.sweep_interval_seconds", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("kafka.audit_topic", "keywheel.audit")
	v.SetDefault("kafka.write_timeout", 10)
	v.SetDefault("kafka.batch_timeout_ms", 100)

	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "keywheel")
	v.SetDefault("tracing.sampling_rate", 0.1)
}
