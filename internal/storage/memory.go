package storage

import (
	"context"
	"sync"

	"github.com/earthquake-city/quake-alerts/internal/dedup"
)

// MemoryStore is an in-process SeenStore used for dry runs and tests
type MemoryStore struct {
	mu  sync.RWMutex
	ids dedup.IDSet
}

var _ SeenStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store seeded with ids
func NewMemoryStore(ids ...string) *MemoryStore {
	return &MemoryStore{ids: dedup.NewIDSet(ids...)}
}

// GetIDs returns a copy of the stored set
func (m *MemoryStore) GetIDs(ctx context.Context) (dedup.IDSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := dedup.NewIDSet()
	for id := range m.ids {
		out.Add(id)
	}
	return out, nil
}

func (m *MemoryStore) AddIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		m.ids.Add(id)
	}
	return nil
}

func (m *MemoryStore) RemoveIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.ids, id)
	}
	return nil
}

// MemoryBlobStore is an in-process BlobStore
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryBlobStore)(nil)

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Store(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[name] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobStore) Retrieve(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
