package persist

import (
	"context"
	"fmt"
)

// KV is the durable key/value space the bridge writes into.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the KV backend named by backend, rooted at path.
func Open(backend, path string) (KV, error) {
	switch backend {
	case "", BackendFile:
		return NewFileKV(path), nil
	case BackendSQLite:
		return NewSQLiteKV(path)
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
