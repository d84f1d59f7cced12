package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywheel/keywheel/internal/domain/models"
)

func record(kid string) *models.KeyRecord {
	return &models.KeyRecord{
		Namespace: "default",
		KeyID:     kid,
		PublicJWK: []byte(`{"kty":"EC"}`),
		Issuer:    "default.issuer",
		ExpiresOn: time.Now().Add(time.Hour),
	}
}

func TestVerificationCache_GetPut(t *testing.T) {
	c := NewVerificationCache()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("kid-1", record("kid-1"), time.Minute)
	got, ok := c.Get("kid-1")
	require.True(t, ok)
	assert.Equal(t, "kid-1", got.KeyID)
}

func TestVerificationCache_PutReplacesEntry(t *testing.T) {
	c := NewVerificationCache()

	old := record("kid-1")
	old.Issuer = "old.issuer"
	c.Put("kid-1", old, time.Minute)

	fresh := record("kid-1")
	c.Put("kid-1", fresh, time.Minute)

	got, ok := c.Get("kid-1")
	require.True(t, ok)
	assert.Equal(t, "default.issuer", got.Issuer)
	assert.Equal(t, 1, c.Len())
}

func TestVerificationCache_ExpiredEntryHiddenUntilSwept(t *testing.T) {
	c := NewVerificationCache()

	c.Put("kid-1", record("kid-1"), time.Millisecond)
	c.Put("kid-2", record("kid-2"), time.Minute)
	time.Sleep(5 * time.Millisecond)

	// Expired entry is invisible to Get but still occupies a slot.
	_, ok := c.Get("kid-1")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("kid-2")
	assert.True(t, ok)
}

func TestVerificationCache_SweepEmpty(t *testing.T) {
	c := NewVerificationCache()
	assert.Equal(t, 0, c.Sweep())
}
