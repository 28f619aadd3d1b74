package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
	"expensetracker/internal/storage/memory"
	"expensetracker/internal/storage/mongostore"
	"expensetracker/internal/storage/postgres"
	"expensetracker/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		gateway storage.Gateway
		err     error
	)
	switch config.Type {
	case MongoBackend:
		gateway, err = f.createMongoGateway(ctx, config)
	case SQLiteBackend:
		gateway, err = f.createSQLiteGateway(config)
	case PostgresBackend:
		gateway, err = f.createPostgresGateway(ctx, config)
	case MemoryBackend:
		gateway = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	publisher := f.createPublisher(config)

	return &BackendResult{
		Gateway:   gateway,
		Publisher: publisher,
		Cleanup:   cleanup(gateway, publisher),
	}, nil
}

// cleanup closes the gateway and then the publisher, reporting both failures.
func cleanup(gateway storage.Gateway, publisher services.EventPublisher) CleanupFunc {
	return func(ctx context.Context) error {
		var errs []error
		if err := gateway.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		return errors.Join(errs...)
	}
}

func (f *DefaultFactory) createMongoGateway(ctx context.Context, config Config) (storage.Gateway, error) {
	store, err := mongostore.Connect(ctx, config.MongoURI, config.MongoDatabase, config.MongoCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB gateway: %w", err)
	}

	f.logger.Info("Initialized MongoDB backend",
		"database", config.MongoDatabase,
		"collection", config.MongoCollection)
	return store, nil
}

func (f *DefaultFactory) createSQLiteGateway(config Config) (storage.Gateway, error) {
	repo, err := sqlite.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createPostgresGateway(ctx context.Context, config Config) (storage.Gateway, error) {
	store, err := postgres.NewPostgresStorage(ctx, config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL storage: %w", err)
	}

	f.logger.Info("Initialized PostgreSQL backend")
	return store, nil
}

// createPublisher dials AMQP when configured. A broker that cannot be reached
// disables events instead of failing startup.
func (f *DefaultFactory) createPublisher(config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP not configured, expense events disabled")
		return nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"routing_key", config.AMQPRoutingKey)
	return client
}
