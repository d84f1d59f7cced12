// Package registry implements the shared public-key registry over several
// storage backends. All backends present the same contract: Create
// publishes a record, Fetch resolves one by namespace and key id and
// reports absence as errors.ErrRecordNotFound, List returns every record
// in a namespace.
package registry

import (
	"context"
	"sync"

	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/pkg/errors"
)

// MemoryRegistry is an in-process registry used in development and tests.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]*models.KeyRecord
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]*models.KeyRecord)}
}

func memoryKey(namespace, keyID string) string {
	return namespace + "/" + keyID
}

func (r *MemoryRegistry) Create(_ context.Context, record *models.KeyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[memoryKey(record.Namespace, record.KeyID)] = record.Clone()
	return nil
}

func (r *MemoryRegistry) Fetch(_ context.Context, namespace, keyID string) (*models.KeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[memoryKey(namespace, keyID)]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (r *MemoryRegistry) List(_ context.Context, namespace string) ([]*models.KeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.KeyRecord
	for _, record := range r.records {
		if record.Namespace == namespace {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}
