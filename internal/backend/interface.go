package backend

import (
	"context"

	"spendlog/internal/storage"
	"spendlog/internal/tracker"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the loaded store, the key-value backend under it
// and the cleanup releasing both.
type BackendResult struct {
	Store       *tracker.Store
	KV          storage.KeyValue
	AMQPEnabled bool
	Cleanup     CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	DataDirectory string
	SQLiteDBPath  string
	StorageKey    string

	// AMQP is optional; an empty URL disables change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names a key-value implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
)

func (t BackendType) IsValid() bool {
	switch t {
	case MemoryBackend, FileBackend, SQLiteBackend:
		return true
	}
	return false
}

func (t BackendType) String() string { return string(t) }
