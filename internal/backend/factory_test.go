package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/amqp"
	"expensetracker/internal/config"
	"expensetracker/internal/storage/memory"
	"expensetracker/internal/storage/sqlite"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		assert.True(t, bt.IsValid(), bt.String())
	}
	assert.False(t, BackendType("sheets").IsValid())
	assert.Equal(t, []string{"mongo", "sqlite", "postgres", "memory"}, GetBackendTypeStrings())
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:     "mongo",
		MongoURI:        "mongodb://db:27017",
		MongoDatabase:   "expense_tracker",
		MongoCollection: "expenses",
		AMQPURL:         "amqp://localhost",
		AMQPExchange:    "expenses",
		AMQPRoutingKey:  "expense.events",
	})
	require.NoError(t, err)
	assert.Equal(t, MongoBackend, cfg.Type)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, "expense.events", cfg.AMQPRoutingKey)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"mongo without collection", Config{Type: MongoBackend, MongoURI: "mongodb://x", MongoDatabase: "db"}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	result, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)

	assert.IsType(t, &memory.Store{}, result.Gateway)
	assert.Nil(t, result.Publisher)
	assert.NoError(t, result.Cleanup(context.Background()))
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	result, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer result.Cleanup(context.Background())

	assert.IsType(t, &sqlite.SQLiteRepository{}, result.Gateway)
	assert.NoError(t, result.Gateway.Ping(context.Background()))
}

func TestCreateBackend_UnreachableBrokerDisablesEvents(t *testing.T) {
	result, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:           MemoryBackend,
		AMQPURL:        "not-a-url",
		AMQPExchange:   "expenses",
		AMQPRoutingKey: "expense.events",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Publisher)
}

func TestCreateBackend_InvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: PostgresBackend})
	assert.Error(t, err)
}

type closingPublisher struct{ err error }

func (p closingPublisher) PublishExpenseEvent(context.Context, *amqp.ExpenseEvent) error { return nil }
func (p closingPublisher) Close() error                                                  { return p.err }

func TestCleanup_JoinsErrors(t *testing.T) {
	err := cleanup(memory.New(), closingPublisher{err: errors.New("channel gone")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amqp: channel gone")
}
