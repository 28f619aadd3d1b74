// Package postgres implements the expense gateway on PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var expenseColumns = []string{"id", "title", "amount", "date", "category"}

type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ storage.Gateway = (*PostgresStorage)(nil)

// NewPostgresStorage migrates the schema at url, then opens a pool and pings it.
func NewPostgresStorage(ctx context.Context, url string) (*PostgresStorage, error) {
	if err := RunMigrations(url); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "cannot connect to database")
	}

	slog.InfoContext(ctx, "Connected to PostgreSQL")
	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStorage) ListAll(ctx context.Context) ([]core.Expense, error) {
	query, args, err := listQuery().ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewStoreError("list", errors.Wrap(err, "get expenses"))
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, core.NewStoreError("list", errors.Wrap(err, "get expenses"))
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("list", errors.Wrap(err, "get expenses"))
	}
	return expenses, nil
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}

	query, args, err := getQuery(oid.Hex()).ToSql()
	if err != nil {
		return core.Expense{}, errors.Wrap(err, "build get query")
	}

	e, err := scanExpense(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return core.Expense{}, core.NewStoreError("get", notFound(err, "get expense"))
	}
	return e, nil
}

func (s *PostgresStorage) Create(ctx context.Context, p core.Payload) (core.Expense, error) {
	e, err := p.NewExpense(core.NewID())
	if err != nil {
		return core.Expense{}, err
	}

	query, args, err := insertQuery(e).ToSql()
	if err != nil {
		return core.Expense{}, errors.Wrap(err, "build insert query")
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return core.Expense{}, core.NewStoreError("insert", errors.Wrap(err, "save expense"))
	}
	return e, nil
}

// UpdatePartial uses UPDATE ... RETURNING so a matched row is always returned,
// whether or not its values changed.
func (s *PostgresStorage) UpdatePartial(ctx context.Context, id string, p core.Payload) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}
	if p.IsEmpty() {
		return core.Expense{}, core.ErrEmptyPayload
	}

	query, args, err := updateQuery(oid.Hex(), p).ToSql()
	if err != nil {
		return core.Expense{}, errors.Wrap(err, "build update query")
	}

	e, err := scanExpense(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return core.Expense{}, core.NewStoreError("update", notFound(err, "update expense"))
	}
	return e, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, id string) error {
	oid, err := core.ParseID(id)
	if err != nil {
		return err
	}

	query, args, err := deleteQuery(oid.Hex()).ToSql()
	if err != nil {
		return errors.Wrap(err, "build delete query")
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return core.NewStoreError("delete", errors.Wrap(err, "delete expense"))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func listQuery() sq.SelectBuilder {
	return psql.Select(expenseColumns...).
		From("expenses").
		OrderBy("date DESC", "id DESC")
}

func getQuery(id string) sq.SelectBuilder {
	return psql.Select(expenseColumns...).
		From("expenses").
		Where(sq.Eq{"id": id})
}

func insertQuery(e core.Expense) sq.InsertBuilder {
	return psql.Insert("expenses").
		Columns(expenseColumns...).
		Values(e.ID, e.Title, e.Amount, e.Date, e.Category)
}

func updateQuery(id string, p core.Payload) sq.UpdateBuilder {
	q := psql.Update("expenses")
	if p.Title != nil {
		q = q.Set("title", *p.Title)
	}
	if p.Amount != nil {
		q = q.Set("amount", *p.Amount)
	}
	if p.Date != nil {
		q = q.Set("date", *p.Date)
	}
	if p.CategorySet {
		q = q.Set("category", p.Category)
	}
	return q.Where(sq.Eq{"id": id}).Suffix("RETURNING id, title, amount, date, category")
}

func deleteQuery(id string) sq.DeleteBuilder {
	return psql.Delete("expenses").Where(sq.Eq{"id": id})
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e    core.Expense
		date time.Time
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Amount, &date, &e.Category); err != nil {
		return core.Expense{}, err
	}
	e.Date = date.UTC()
	return e, nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return errors.Wrap(err, msg)
}
