package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/pkg/errors"
)

// RedisRegistry stores key records as JSON values under
// "registry:{namespace}:{key_id}". Records carry their own expiry, so each
// value is written with a matching Redis TTL and ages out on its own.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisClient dials Redis with the configured pool settings and verifies
// the connection with a ping.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to connect to redis")
	}
	return client, nil
}

// NewRedisRegistry returns a registry backed by the given client.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func redisKey(namespace, keyID string) string {
	return "registry:" + namespace + ":" + keyID
}

func (r *RedisRegistry) Create(ctx context.Context, record *models.KeyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to marshal key record")
	}
	var ttl time.Duration
	if until := time.Until(record.ExpiresOn); until > 0 {
		ttl = until
	}
	if err := r.client.Set(ctx, redisKey(record.Namespace, record.KeyID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to write key record to redis")
	}
	return nil
}

func (r *RedisRegistry) Fetch(ctx context.Context, namespace, keyID string) (*models.KeyRecord, error) {
	data, err := r.client.Get(ctx, redisKey(namespace, keyID)).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to read key record from redis")
	}
	var record models.KeyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to unmarshal key record")
	}
	return &record, nil
}

func (r *RedisRegistry) List(ctx context.Context, namespace string) ([]*models.KeyRecord, error) {
	var out []*models.KeyRecord
	iter := r.client.Scan(ctx, 0, redisKey(namespace, "*"), 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			// Expired between scan and read.
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to read key record from redis")
		}
		var record models.KeyRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to unmarshal key record")
		}
		out = append(out, &record)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to scan redis registry keys")
	}
	return out, nil
}
