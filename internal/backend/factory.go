package backend

import (
	"context"
	"errors"
	"fmt"

	"spendlog/internal/amqp"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
	"spendlog/internal/tracker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
	opts   []tracker.Option
}

// NewFactory creates a new backend factory. opts are passed to every store
// it builds.
func NewFactory(logger *applog.Logger, opts ...tracker.Option) Factory {
	if logger == nil {
		logger = applog.Default()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
		opts:   opts,
	}
}

// CreateBackend opens the key-value backend, connects the optional AMQP
// publisher and loads the store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	kv, err := f.openKV(config)
	if err != nil {
		return nil, err
	}

	opts := []tracker.Option{
		tracker.WithKey(config.StorageKey),
		tracker.WithLogger(f.logger),
	}

	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", applog.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts = append(opts, tracker.WithNotifier(amqpClient))
		}
	}

	cleanup := func() error {
		var errs []error
		if amqpClient != nil {
			errs = append(errs, amqpClient.Close())
		}
		errs = append(errs, kv.Close())
		return errors.Join(errs...)
	}

	store, err := tracker.New(ctx, kv, append(opts, f.opts...)...)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to load expenses: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		applog.FieldBackend, config.Type.String(),
		"expenses", store.Len(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Store:       store,
		KV:          kv,
		AMQPEnabled: amqpClient != nil,
		Cleanup:     cleanup,
	}, nil
}

func (f *DefaultFactory) openKV(config Config) (storage.KeyValue, error) {
	switch config.Type {
	case MemoryBackend:
		return storage.NewMemoryKV(), nil
	case FileBackend:
		kv, err := storage.NewFileKV(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		return kv, nil
	case SQLiteBackend:
		kv, err := storage.NewSQLiteKV(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
