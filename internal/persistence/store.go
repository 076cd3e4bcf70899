// Package persistence provides the key-value stores that hold serialized
// container state, addressed by container id. The engine does not care
// about the on-disk representation beyond round-tripping the bytes it
// hands over.
package persistence

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no state exists for a container id.
// A fresh container starts empty in that case.
var ErrNotFound = errors.New("no persisted state")

// Store is the backend contract. Implementations must be safe for use from
// the async save writer and the engine's eviction path concurrently.
type Store interface {
	// Load returns the serialized slot map for a container, or ErrNotFound.
	Load(ctx context.Context, id string) ([]byte, error)
	// Save writes the serialized slot map for a container.
	Save(ctx context.Context, id string, data []byte) error
	Close() error
}
