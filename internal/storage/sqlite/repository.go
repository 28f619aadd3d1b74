package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"

	_ "modernc.org/sqlite"
)

const selectColumns = "id, title, amount, date, category"

type SQLiteRepository struct {
	db *sql.DB
}

var _ storage.Gateway = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time; a single connection queues writes
	// in the pool instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// dsn adds the pragmas every connection needs: wait on a locked database
// rather than fail, and use WAL so readers do not block the writer.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close(_ context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM expenses ORDER BY date DESC, id DESC")
	if err != nil {
		return nil, core.NewStoreError("list", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, core.NewStoreError("list", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("list", err)
	}

	return expenses, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM expenses WHERE id = ?", oid.Hex())
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, core.NewStoreError("get", notFound(err))
	}
	return e, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, p core.Payload) (core.Expense, error) {
	e, err := p.NewExpense(core.NewID())
	if err != nil {
		return core.Expense{}, err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO expenses (id, title, amount, date, category) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.Title, e.Amount, e.Date.UnixMilli(), nullString(e.Category))
	if err != nil {
		return core.Expense{}, core.NewStoreError("insert", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite", "id", e.ID, "title", e.Title)
	return e, nil
}

// UpdatePartial sets only the supplied columns. RETURNING reads the row back
// inside the same statement, so no rows means the id does not exist even if
// the new values equal the old ones.
func (r *SQLiteRepository) UpdatePartial(ctx context.Context, id string, p core.Payload) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}
	if p.IsEmpty() {
		return core.Expense{}, core.ErrEmptyPayload
	}

	sets, args := updateAssignments(p)
	query := "UPDATE expenses SET " + strings.Join(sets, ", ") +
		" WHERE id = ? RETURNING " + selectColumns
	args = append(args, oid.Hex())

	e, err := scanExpense(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.Expense{}, core.NewStoreError("update", notFound(err))
	}
	return e, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	oid, err := core.ParseID(id)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", oid.Hex())
	if err != nil {
		return core.NewStoreError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStoreError("delete", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// updateAssignments returns the SET clauses and their arguments for p.
func updateAssignments(p core.Payload) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *p.Amount)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, p.Date.UnixMilli())
	}
	if p.CategorySet {
		sets = append(sets, "category = ?")
		args = append(args, nullString(p.Category))
	}
	return sets, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e        core.Expense
		dateMs   int64
		category sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Title, &e.Amount, &dateMs, &category); err != nil {
		return core.Expense{}, err
	}
	e.Date = time.UnixMilli(dateMs).UTC()
	if category.Valid {
		c := category.String
		e.Category = &c
	}
	return e, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}
