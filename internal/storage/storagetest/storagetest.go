// Package storagetest holds the behavioural test-suite every storage.Gateway
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// Factory returns a fresh, empty gateway for one sub-test.
type Factory func(t *testing.T) storage.Gateway

// Run exercises the gateway contract against gateways built by newGateway.
func Run(t *testing.T, newGateway Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, g storage.Gateway)
	}{
		{"EmptyListIsEmptySlice", testEmptyList},
		{"CreateThenListOnce", testCreateThenList},
		{"CreateAssignsIDAndNullCategory", testCreateAssignsID},
		{"ListOrderedByDateDesc", testListOrdering},
		{"UpdatePartialChangesOnlySuppliedFields", testUpdatePartial},
		{"UpdateUnchangedValuesStillFound", testUpdateUnchanged},
		{"UpdateCategoryToNull", testUpdateCategoryNull},
		{"UpdateRejectsEmptyPayload", testUpdateEmpty},
		{"DeleteThenLookupNotFound", testDelete},
		{"MissingIDsNotFound", testMissing},
		{"MalformedIDsInvalid", testMalformed},
		{"Ping", testPing},
		{"ConcurrentWritesOnDistinctIDs", testConcurrentWrites},
		{"DateRangeBoundaries", testDateBoundaries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newGateway(t))
		})
	}
}

// NewPayload builds a complete create payload.
func NewPayload(title string, amount float64, date time.Time, category *string) core.Payload {
	return core.Payload{
		Title:       &title,
		Amount:      &amount,
		Date:        &date,
		Category:    category,
		CategorySet: true,
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

func str(s string) *string { return &s }

func testEmptyList(t *testing.T, g storage.Gateway) {
	got, err := g.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func testCreateThenList(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	created, err := g.Create(ctx, NewPayload("Coffee", 4.5, day(1), nil))
	require.NoError(t, err)

	all, err := g.ListAll(ctx)
	require.NoError(t, err)

	count := 0
	for _, e := range all {
		if e.ID == created.ID {
			count++
			assert.Equal(t, "Coffee", e.Title)
			assert.Equal(t, 4.5, e.Amount)
			assert.True(t, day(1).Equal(e.Date))
		}
	}
	assert.Equal(t, 1, count, "created record must be listed exactly once")
}

func testCreateAssignsID(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	a, err := g.Create(ctx, NewPayload("Coffee", 4.5, day(1), nil))
	require.NoError(t, err)
	b, err := g.Create(ctx, NewPayload("Bagel", 3, day(1), str("Food")))
	require.NoError(t, err)

	assert.True(t, core.ValidID(a.ID), "id %q does not match identifier format", a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Nil(t, a.Category)
	require.NotNil(t, b.Category)
	assert.Equal(t, "Food", *b.Category)

	got, err := g.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Nil(t, got.Category)
}

func testListOrdering(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	for _, d := range []int{3, 1, 7, 5, 5, 2} {
		_, err := g.Create(ctx, NewPayload("Expense", float64(d), day(d), nil))
		require.NoError(t, err)
	}

	all, err := g.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Date.After(all[i-1].Date),
			"listing not non-increasing by date at %d: %v then %v", i, all[i-1].Date, all[i].Date)
	}
}

func testUpdatePartial(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	created, err := g.Create(ctx, NewPayload("Coffee", 4.5, day(1), str("Food")))
	require.NoError(t, err)

	amount := 50.0
	updated, err := g.UpdatePartial(ctx, created.ID, core.Payload{Amount: &amount})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 50.0, updated.Amount)
	assert.Equal(t, "Coffee", updated.Title)
	assert.True(t, created.Date.Equal(updated.Date))
	require.NotNil(t, updated.Category)
	assert.Equal(t, "Food", *updated.Category)

	stored, err := g.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, stored.Amount)
	assert.Equal(t, "Coffee", stored.Title)
}

func testUpdateUnchanged(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	created, err := g.Create(ctx, NewPayload("Coffee", 4.5, day(1), nil))
	require.NoError(t, err)

	title := "Coffee"
	updated, err := g.UpdatePartial(ctx, created.ID, core.Payload{Title: &title})
	require.NoError(t, err, "matched-but-unchanged must not be reported as not found")
	assert.Equal(t, created.ID, updated.ID)
}

func testUpdateCategoryNull(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	created, err := g.Create(ctx, NewPayload("Coffee", 4.5, day(1), str("Food")))
	require.NoError(t, err)

	updated, err := g.UpdatePartial(ctx, created.ID, core.Payload{CategorySet: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Category)
	assert.Equal(t, "Coffee", updated.Title)
}

func testUpdateEmpty(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	created, err := g.Create(ctx, NewPayload("Coffee", 4.5, day(1), nil))
	require.NoError(t, err)

	_, err = g.UpdatePartial(ctx, created.ID, core.Payload{})
	assert.ErrorIs(t, err, core.ErrEmptyPayload)
}

func testDelete(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	created, err := g.Create(ctx, NewPayload("Coffee", 4.5, day(1), nil))
	require.NoError(t, err)

	require.NoError(t, g.Delete(ctx, created.ID))

	_, err = g.Get(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	amount := 1.0
	_, err = g.UpdatePartial(ctx, created.ID, core.Payload{Amount: &amount})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, g.Delete(ctx, created.ID), core.ErrNotFound)

	all, err := g.ListAll(ctx)
	require.NoError(t, err)
	for _, e := range all {
		assert.NotEqual(t, created.ID, e.ID)
	}
}

func testMissing(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	id := core.NewID()
	amount := 1.0

	_, err := g.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = g.UpdatePartial(ctx, id, core.Payload{Amount: &amount})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, g.Delete(ctx, id), core.ErrNotFound)
}

func testMalformed(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	amount := 1.0
	for _, id := range []string{"", "bad-id", "12345", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		_, err := g.Get(ctx, id)
		assert.ErrorIs(t, err, core.ErrInvalidID, "get %q", id)
		_, err = g.UpdatePartial(ctx, id, core.Payload{Amount: &amount})
		assert.ErrorIs(t, err, core.ErrInvalidID, "update %q", id)
		assert.ErrorIs(t, g.Delete(ctx, id), core.ErrInvalidID, "delete %q", id)
	}
}

func testPing(t *testing.T, g storage.Gateway) {
	assert.NoError(t, g.Ping(context.Background()))
}

// testConcurrentWrites runs creates, then updates and deletes on distinct ids
// in parallel. None of them may fail because another write holds the store.
func testConcurrentWrites(t *testing.T, g storage.Gateway) {
	const writers = 32
	ctx := context.Background()

	ids := make([]string, writers)
	var eg errgroup.Group
	for i := 0; i < writers; i++ {
		eg.Go(func() error {
			e, err := g.Create(ctx, NewPayload(fmt.Sprintf("Expense %02d", i), float64(i+1), day(1+i%28), nil))
			if err != nil {
				return fmt.Errorf("create %d: %w", i, err)
			}
			ids[i] = e.ID
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	for i, id := range ids {
		eg.Go(func() error {
			if i%2 == 0 {
				return g.Delete(ctx, id)
			}
			amount := 1000.0 + float64(i)
			_, err := g.UpdatePartial(ctx, id, core.Payload{Amount: &amount})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	all, err := g.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, writers/2)
	for _, e := range all {
		assert.Greater(t, e.Amount, 1000.0, "update of %s lost", e.ID)
	}
}

// testDateBoundaries stores the earliest and latest instants the validator
// accepts and reads them back unchanged.
func testDateBoundaries(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	for _, ms := range []int64{-210866803200000, 0, 8640000000000000} {
		date := time.UnixMilli(ms).UTC()
		created, err := g.Create(ctx, NewPayload("Boundary", 1, date, nil))
		require.NoError(t, err, "create at %d", ms)

		got, err := g.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, date.Equal(got.Date), "stored %v, read %v", date, got.Date)
	}
}
