// Package storage persists opaque values under string keys. It mirrors the
// browser's local storage: one serialized expense collection lives under a
// single fixed key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultKey is the key the expense collection is stored under.
const DefaultKey = "smartExpenseTracker"

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// KeyValue is a minimal persistent key-value store.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
