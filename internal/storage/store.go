// Package storage provides the replica stores a DHT node keeps its share of
// entries in. All stores are plain key/value: keys are hex DHT keys, values
// are opaque encoded content.
package storage

import (
	"context"
)

// Store is a node-local key/value store.
//
// Get returns common.ErrNotFound (possibly wrapped) when key is absent.
// Delete of a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// Name identifies the backend in logs.
	Name() string
}
