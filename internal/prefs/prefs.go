package prefs

import "context"

// Store is a small key-value slot for per-profile preferences. Values are
// opaque to the store. Get returns (nil, nil) when nothing is stored.
type Store interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
}
