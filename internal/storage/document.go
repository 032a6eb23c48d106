package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/dedup"
	"github.com/sirupsen/logrus"
)

// DefaultDocumentName is the blob holding the alerted id list
const DefaultDocumentName = "alerted_ids.json"

type seenDocument struct {
	IDs       []string  `json:"ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentStore keeps the seen-id set as one JSON document in a BlobStore.
// Writes are read-modify-write and serialised within the process only.
type DocumentStore struct {
	blobs BlobStore
	name  string
	now   func() time.Time
	mu    sync.Mutex
}

var _ SeenStore = (*DocumentStore)(nil)

// NewDocumentStore wraps blobs. An empty name uses DefaultDocumentName.
func NewDocumentStore(blobs BlobStore, name string) *DocumentStore {
	if name == "" {
		name = DefaultDocumentName
	}
	return &DocumentStore{blobs: blobs, name: name, now: time.Now}
}

// NewAzureStore opens the seen-id document in an Azure container
func NewAzureStore(ctx context.Context, accountName, containerName string) (*DocumentStore, error) {
	blobs, err := NewAzureStorage(ctx, accountName, containerName)
	if err != nil {
		return nil, err
	}
	return NewDocumentStore(blobs, DefaultDocumentName), nil
}

func (d *DocumentStore) GetIDs(ctx context.Context) (dedup.IDSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(ctx)
}

func (d *DocumentStore) AddIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	set, err := d.load(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		set.Add(id)
	}
	return d.save(ctx, set)
}

func (d *DocumentStore) RemoveIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	set, err := d.load(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(set, id)
	}
	return d.save(ctx, set)
}

func (d *DocumentStore) load(ctx context.Context) (dedup.IDSet, error) {
	data, err := d.blobs.Retrieve(ctx, d.name)
	if err != nil {
		if IsNotFound(err) {
			logrus.Infof("No seen-id document at %s yet, starting empty", d.name)
			return dedup.NewIDSet(), nil
		}
		return nil, fmt.Errorf("failed to load seen ids: %w", err)
	}

	var doc seenDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode seen ids document %s: %w", d.name, err)
	}

	return dedup.NewIDSet(doc.IDs...), nil
}

func (d *DocumentStore) save(ctx context.Context, set dedup.IDSet) error {
	data, err := json.MarshalIndent(seenDocument{IDs: set.Sorted(), UpdatedAt: d.now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode seen ids: %w", err)
	}

	if err := d.blobs.Store(ctx, d.name, data); err != nil {
		return fmt.Errorf("failed to save seen ids: %w", err)
	}
	return nil
}
