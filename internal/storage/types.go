package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: key not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
//
// Driver values: "memory" (also "" and "none"), "file", "sqlite", "redis".
type Config struct {
	Driver      string
	Path        string        // file, sqlite
	BusyTimeout time.Duration // sqlite only; 0 means default

	Addr     string // redis
	Password string // redis
	DB       int    // redis
	Prefix   string // redis key prefix
}

// Store is a flat key-value store of opaque byte values.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}
