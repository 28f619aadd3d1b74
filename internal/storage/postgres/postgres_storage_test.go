package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

func TestListQuery(t *testing.T) {
	query, args, err := listQuery().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, title, amount, date, category FROM expenses ORDER BY date DESC, id DESC", query)
	assert.Empty(t, args)
}

func TestGetQuery(t *testing.T) {
	query, args, err := getQuery("65a1b2c3d4e5f60718293a4b").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, title, amount, date, category FROM expenses WHERE id = $1", query)
	assert.Equal(t, []interface{}{"65a1b2c3d4e5f60718293a4b"}, args)
}

func TestInsertQuery(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := core.Expense{ID: "65a1b2c3d4e5f60718293a4b", Title: "Coffee", Amount: 4.5, Date: date}

	query, args, err := insertQuery(e).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO expenses (id,title,amount,date,category) VALUES ($1,$2,$3,$4,$5)", query)
	require.Len(t, args, 5)
	assert.Equal(t, "Coffee", args[1])
	assert.Nil(t, args[4])
}

func TestUpdateQuery(t *testing.T) {
	tests := []struct {
		name      string
		payload   core.Payload
		wantQuery string
		wantArgs  int
	}{
		{
			name:      "amount only",
			payload:   core.Payload{Amount: ptr(50.0)},
			wantQuery: "UPDATE expenses SET amount = $1 WHERE id = $2 RETURNING id, title, amount, date, category",
			wantArgs:  2,
		},
		{
			name:      "title and category null",
			payload:   core.Payload{Title: ptr("Tea"), CategorySet: true},
			wantQuery: "UPDATE expenses SET title = $1, category = $2 WHERE id = $3 RETURNING id, title, amount, date, category",
			wantArgs:  3,
		},
		{
			name: "every field",
			payload: core.Payload{
				Title:       ptr("Tea"),
				Amount:      ptr(2.0),
				Date:        ptr(time.Now().UTC()),
				Category:    ptr("Food"),
				CategorySet: true,
			},
			wantQuery: "UPDATE expenses SET title = $1, amount = $2, date = $3, category = $4 WHERE id = $5 RETURNING id, title, amount, date, category",
			wantArgs:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := updateQuery("65a1b2c3d4e5f60718293a4b", tt.payload).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, query)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestDeleteQuery(t *testing.T) {
	query, args, err := deleteQuery("65a1b2c3d4e5f60718293a4b").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM expenses WHERE id = $1", query)
	assert.Len(t, args, 1)
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows, "get"), core.ErrNotFound)

	other := errors.New("connection reset")
	err := notFound(other, "get")
	assert.ErrorIs(t, err, other)
	assert.Contains(t, err.Error(), "get: connection reset")
}

func ptr[T any](v T) *T { return &v }
