// Package archive provides cold storage for serialized run reports.
package archive

import (
	"context"
	"io"
)

// Storage defines the interface for cold/archive storage backends
type Storage interface {
	// Store writes the contents of r at the given key
	Store(ctx context.Context, key string, r io.Reader) error

	// Load opens the object at the given key for reading
	Load(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns all keys matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at the given key
	Delete(ctx context.Context, key string) error
}
