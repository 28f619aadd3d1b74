// Package storage defines the expense store gateway contract shared by every
// backend (MongoDB, SQLite, PostgreSQL and the in-memory store).
package storage

import (
	"context"
	"sort"

	"expensetracker/internal/core"
)

// Gateway translates CRUD intents into operations on a single expense collection.
//
// Every method that takes an id rejects malformed ids with core.ErrInvalidID
// before touching the store and reports absent ids with core.ErrNotFound.
// Unexpected database failures come back as *core.StoreError.
type Gateway interface {
	// ListAll returns every expense, newest date first. An empty store yields
	// an empty slice.
	ListAll(ctx context.Context) ([]core.Expense, error)

	// Get returns the expense stored under id.
	Get(ctx context.Context, id string) (core.Expense, error)

	// Create inserts a new expense with a store-generated id.
	Create(ctx context.Context, p core.Payload) (core.Expense, error)

	// UpdatePartial merges the supplied fields into the stored expense and
	// returns the result. An empty payload fails with core.ErrEmptyPayload.
	UpdatePartial(ctx context.Context, id string, p core.Payload) (core.Expense, error)

	// Delete removes the expense stored under id.
	Delete(ctx context.Context, id string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// SortByDateDesc orders expenses newest first, breaking ties by id descending
// so listings are deterministic.
func SortByDateDesc(expenses []core.Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		a, b := expenses[i], expenses[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})
}
