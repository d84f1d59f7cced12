// Package cache provides the verification cache, a TTL-bounded mapping
// from key id to registry record that shields the registry from repeated
// resolution reads.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/keywheel/keywheel/internal/domain/models"
)

// VerificationCache stores key records under their key id for a bounded
// time. Expired entries stay in place, invisible to Get, until Sweep
// removes them; there is no background janitor, eviction timing is fully
// owned by the caller's sweep schedule.
type VerificationCache struct {
	store *gocache.Cache
}

// NewVerificationCache returns an empty cache with no background janitor.
func NewVerificationCache() *VerificationCache {
	return &VerificationCache{
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the record for keyID while its TTL has not passed. An
// expired entry reads as a miss but is not removed.
func (c *VerificationCache) Get(keyID string) (*models.KeyRecord, bool) {
	v, ok := c.store.Get(keyID)
	if !ok {
		return nil, false
	}
	return v.(*models.KeyRecord), true
}

// Put inserts or fully replaces the entry for keyID, restarting its TTL.
func (c *VerificationCache) Put(keyID string, record *models.KeyRecord, ttl time.Duration) {
	c.store.Set(keyID, record, ttl)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *VerificationCache) Sweep() int {
	before := c.store.ItemCount()
	c.store.DeleteExpired()
	return before - c.store.ItemCount()
}

// Len reports the number of stored entries, expired ones included.
func (c *VerificationCache) Len() int {
	return c.store.ItemCount()
}
