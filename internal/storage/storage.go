package storage

import (
	"context"
)

// DocumentReader provides read access to instruction documents keyed by region
type DocumentReader interface {
	// Exists checks if an instruction document exists for the given key
	Exists(ctx context.Context, key string) (bool, error)

	// Read returns the full document text for the given key
	Read(ctx context.Context, key string) (string, error)
}

// DocumentLister enumerates available region keys
type DocumentLister interface {
	DocumentReader

	// List returns all region keys in sorted order
	List(ctx context.Context) ([]string, error)
}
