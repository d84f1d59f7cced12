package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/internal/domain/service"
	"github.com/keywheel/keywheel/internal/infrastructure/crypto"
	"github.com/keywheel/keywheel/internal/infrastructure/registry"
	"github.com/keywheel/keywheel/pkg/errors"
	"github.com/keywheel/keywheel/pkg/logger"
)

func testKeyConfig() *config.KeyConfig {
	return &config.KeyConfig{
		Issuer:                  "default.issuer",
		Namespace:               "default",
		Algorithm:               "ES256",
		ExpirationSeconds:       300,
		RotationIntervalSeconds: 60,
	}
}

// blockingGenerator delegates to the real generator but can hold Generate
// open until released, to exercise overlapping rotations.
type blockingGenerator struct {
	inner   *crypto.Generator
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) Generate(algorithm string) (*models.SigningKey, error) {
	if g.entered != nil {
		close(g.entered)
		<-g.release
	}
	return g.inner.Generate(algorithm)
}

// failingRegistry rejects every write.
type failingRegistry struct {
	registry.MemoryRegistry
}

func (r *failingRegistry) Create(context.Context, *models.KeyRecord) error {
	return errors.New(errors.CodeUnavailable, "registry is down")
}

func newRotationService(t *testing.T, reg service.KeyRegistry) *RotationService {
	t.Helper()
	return NewRotationService(crypto.NewGenerator(), reg, nil, testKeyConfig(), nil, logger.NewNop())
}

func TestRotationService_NoKeyBeforeFirstRotation(t *testing.T) {
	svc := newRotationService(t, registry.NewMemoryRegistry())

	_, ok := svc.ActiveKey()
	assert.False(t, ok)
}

func TestRotationService_RotateInstallsAndPublishes(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	svc := newRotationService(t, reg)
	ctx := context.Background()

	require.NoError(t, svc.Rotate(ctx))

	key, ok := svc.ActiveKey()
	require.True(t, ok)
	assert.Equal(t, "ES256", key.Algorithm)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), key.ExpiresAt, 5*time.Second)

	record, err := reg.Fetch(ctx, "default", key.ID)
	require.NoError(t, err)
	assert.Equal(t, "default.issuer", record.Issuer)
	assert.JSONEq(t, string(key.PublicJWK), string(record.PublicJWK))
	assert.Equal(t, key.ExpiresAt.Unix(), record.ExpiresOn.Unix())
}

func TestRotationService_RotateReplacesActiveKey(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	svc := newRotationService(t, reg)
	ctx := context.Background()

	require.NoError(t, svc.Rotate(ctx))
	first, _ := svc.ActiveKey()
	require.NoError(t, svc.Rotate(ctx))
	second, _ := svc.ActiveKey()

	assert.NotEqual(t, first.ID, second.ID)

	// The previous key's record stays in the registry for late verifiers.
	_, err := reg.Fetch(ctx, "default", first.ID)
	assert.NoError(t, err)
}

func TestRotationService_PublishFailureStillInstallsKey(t *testing.T) {
	svc := newRotationService(t, &failingRegistry{})
	ctx := context.Background()

	err := svc.Rotate(ctx)
	require.Error(t, err)

	// Local signing proceeds on the new key despite the failed publish.
	key, ok := svc.ActiveKey()
	assert.True(t, ok)
	assert.NotEmpty(t, key.ID)
}

func TestRotationService_UnsupportedAlgorithmLeavesActiveKeyAlone(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	svc := newRotationService(t, reg)
	ctx := context.Background()

	require.NoError(t, svc.Rotate(ctx))
	before, _ := svc.ActiveKey()

	svc.cfg.Algorithm = "HS256"
	err := svc.Rotate(ctx)
	assert.ErrorIs(t, err, errors.ErrUnsupportedAlgorithm)

	after, ok := svc.ActiveKey()
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
}

func TestRotationService_OverlappingRotationIsSkipped(t *testing.T) {
	gen := &blockingGenerator{
		inner:   crypto.NewGenerator(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := registry.NewMemoryRegistry()
	svc := NewRotationService(gen, reg, nil, testKeyConfig(), nil, logger.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.Rotate(ctx))
	}()

	// Wait until the first rotation is inside Generate, then fire a second
	// one. It must return immediately without installing anything.
	<-gen.entered
	require.NoError(t, svc.Rotate(ctx))
	_, ok := svc.ActiveKey()
	assert.False(t, ok)

	close(gen.release)
	wg.Wait()

	_, ok = svc.ActiveKey()
	assert.True(t, ok)
}
