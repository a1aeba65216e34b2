package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Querier is satisfied by *sql.Tx and *sql.DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// queryRow scans a single row and reports whether one was found.
func queryRow(ctx context.Context, q Querier, stmt string, args []any, scans []any) (bool, error) {
	err := q.QueryRowContext(ctx, stmt, args...).Scan(scans...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// queryOne scans the single row of stmt with scan. The zero T is returned
// when there is no row.
func queryOne[T any](ctx context.Context, q Querier, stmt string, args []any, scan func(scanner) (T, error)) (T, error) {
	v, err := scan(q.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, nil
	}
	return v, err
}

// queryAll scans every row of stmt with scan.
func queryAll[T any](ctx context.Context, q Querier, stmt string, args []any, scan func(scanner) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryUpdateDelete runs a statement and reports whether any row was affected.
func queryUpdateDelete(ctx context.Context, q Querier, stmt string, args ...any) (bool, error) {
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func exec(ctx context.Context, q Querier, stmt string, args ...any) error {
	_, err := q.ExecContext(ctx, stmt, args...)
	return err
}

// count runs a select count(*) style statement.
func count(ctx context.Context, q Querier, stmt string, args ...any) (int, error) {
	var n int
	if _, err := queryRow(ctx, q, stmt, args, []any{&n}); err != nil {
		return 0, err
	}
	return n, nil
}

// placeholders returns "$start, $start+1, ..." for n parameters.
func placeholders(start, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	return b.String()
}

// upsertAll applies fn to every item in order, stopping at the first error.
func upsertAll[T any](ctx context.Context, q Querier, items []T, fn func(context.Context, Querier, T) error) error {
	for _, it := range items {
		if err := fn(ctx, q, it); err != nil {
			return err
		}
	}
	return nil
}
