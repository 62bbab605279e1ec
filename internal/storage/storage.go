// Package storage provides key/value blob stores for client state.
//
// A blob store holds opaque string values under fixed keys. It is the
// persistence engine behind the persist package; the stores here differ only
// in where the bytes end up.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// ErrInvalidKey is returned for keys that cannot be stored.
var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore is a string key/value store.
type BlobStore interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Close releases resources held by the store.
	Close() error
}

// Backend names a blob store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendBolt   Backend = "bolt"
	BackendSQLite Backend = "sqlite"
	BackendNATS   Backend = "nats"
	BackendMemory Backend = "memory"
)

// Open creates a local blob store rooted at dataDir. The NATS backend needs a
// live connection and is opened by the nats package instead.
func Open(backend Backend, dataDir string) (BlobStore, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(filepath.Join(dataDir, "blobs"))
	case BackendBolt:
		return NewBoltStore(filepath.Join(dataDir, "state.db"))
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, "state.sqlite"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", backend)
	}
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = value
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
