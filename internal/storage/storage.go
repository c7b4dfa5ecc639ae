// Package storage provides the durable key/value store that backs the wide
// event queue and the session token, mirroring the semantics of browser
// local storage.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage: store is closed")

// Local is a string key/value store with whole-value reads and writes.
type Local interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Store is a Local that owns resources.
type Store interface {
	Local
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend. dbPath is only used by the sqlite backend.
func Open(backend, dbPath string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}
