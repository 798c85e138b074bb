// Package storage abstracts where pipeline outputs land. Batch runs write
// xyz extracts, climatology reports, and manifests through a Sink; local
// disk is the default and a GCS bucket serves deployed runs.
package storage

import "context"

// Sink stores pipeline output files. Store replaces any existing object at
// the same path, which keeps re-runs idempotent. List returns the stored
// paths under prefix in lexical order.
type Sink interface {
	Store(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
