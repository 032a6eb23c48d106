package storage

import (
	"context"
	"errors"

	"github.com/earthquake-city/quake-alerts/internal/dedup"
)

// ErrNotFound is returned by a BlobStore when the named object does not exist
var ErrNotFound = errors.New("storage: object not found")

// SeenStore persists the ids of events that have already been alerted
type SeenStore interface {
	GetIDs(ctx context.Context) (dedup.IDSet, error)
	AddIDs(ctx context.Context, ids []string) error
	RemoveIDs(ctx context.Context, ids []string) error
}

// BlobStore defines the contract for whole-object storage operations
type BlobStore interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
}
