package config

import (
	"fmt"
	"time"

	"github.com/keywheel/keywheel/pkg/errors"
)

// Config holds the service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Keys     KeyConfig      `mapstructure:"keys"`
	Registry RegistryConfig `mapstructure:"registry"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Environment  string `mapstructure:"environment"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KeyConfig governs the signing-key lifecycle: what gets generated, under
// which registry namespace it is published, and how long keys live.
type KeyConfig struct {
	Issuer    string `mapstructure:"issuer"`
	Namespace string `mapstructure:"namespace"`
	Algorithm string `mapstructure:"algorithm"`
	// ExpirationSeconds is both the registry-record validity window and
	// the verification-cache TTL. Required.
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
	// RotationIntervalSeconds is the rotation period. Required.
	RotationIntervalSeconds int `mapstructure:"rotation_interval_seconds"`
}

func (c *KeyConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationSeconds) * time.Second
}

func (c *KeyConfig) RotationInterval() time.Duration {
	return time.Duration(c.RotationIntervalSeconds) * time.Second
}

// RegistryConfig selects the key-registry backend.
type RegistryConfig struct {
	// Backend is one of "memory", "redis", "postgres", "vault".
	Backend string `mapstructure:"backend"`
}

type CacheConfig struct {
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

func (c *CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"` // in seconds
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	AuditTopic     string   `mapstructure:"audit_topic"`
	WriteTimeout   int      `mapstructure:"write_timeout"`    // in seconds
	BatchTimeoutMS int      `mapstructure:"batch_timeout_ms"` // in milliseconds
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

var validBackends = map[string]bool{
	"memory":   true,
	"redis":    true,
	"postgres": true,
	"vault":    true,
}

// Validate checks the hard configuration requirements. Soft problems, such
// as a key expiration shorter than the rotation interval, are reported by
// Warnings instead so the loader can log them without refusing to start.
func (c *Config) Validate() error {
	if c.Keys.ExpirationSeconds <= 0 {
		return errors.New(errors.CodeInvalidArgument, "keys.expiration_seconds is required and must be positive")
	}
	if c.Keys.RotationIntervalSeconds <= 0 {
		return errors.New(errors.CodeInvalidArgument, "keys.rotation_interval_seconds is required and must be positive")
	}
	if !validBackends[c.Registry.Backend] {
		return errors.Newf(errors.CodeInvalidArgument, "unknown registry backend %q", c.Registry.Backend)
	}
	return nil
}

// Warnings returns configuration smells that are allowed but worth logging.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Keys.ExpirationSeconds < c.Keys.RotationIntervalSeconds {
		warnings = append(warnings, fmt.Sprintf(
			"keys.expiration_seconds (%d) is shorter than keys.rotation_interval_seconds (%d); keys may expire from the cache and registry before the next rotation publishes a successor",
			c.Keys.ExpirationSeconds, c.Keys.RotationIntervalSeconds))
	}
	return warnings
}
