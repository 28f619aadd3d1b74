package backend

import (
	"context"

	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func(ctx context.Context) error

// BackendResult contains the gateway, the optional event publisher and the
// cleanup releasing both.
type BackendResult struct {
	Gateway   storage.Gateway
	Publisher services.EventPublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// MongoDB specific
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// SQLite specific
	SQLiteDBPath string

	// PostgreSQL specific
	PostgresURL string

	// Events, shared by every backend
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// BackendType represents the type of backend
type BackendType string

const (
	MongoBackend    BackendType = "mongo"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MongoBackend, SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
