package storage

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IntegrityError is a violated database constraint, most often a row written
// before its parent.
type IntegrityError struct {
	Err error
}

func (e *IntegrityError) Error() string {
	return "integrity constraint violated: " + e.Err.Error()
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

func classify(err error) error {
	if err == nil || IsIntegrityError(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return &IntegrityError{Err: err}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return &IntegrityError{Err: err}
	}
	return err
}
