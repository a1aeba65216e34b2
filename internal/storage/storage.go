package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var (
	//go:embed schema_postgres.sql
	schemaPostgres string
	//go:embed schema_sqlite.sql
	schemaSQLite string
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

type Storage struct {
	ctx     context.Context
	logger  *zap.Logger
	db      *sql.DB
	dialect Dialect
}

func NewStorage(ctx context.Context, l *zap.Logger) *Storage {
	return &Storage{ctx: ctx, logger: l}
}

// Connect opens the database named by dsn. postgres:// and postgresql://
// URLs use Postgres, anything else is a SQLite file path, optionally prefixed
// with sqlite:.
func (s *Storage) Connect(dsn string) error {
	driver, source := parseDSN(dsn)
	db, err := sql.Open(driver, source)
	if err != nil {
		return err
	}
	if driver == "sqlite" {
		s.dialect = SQLite
		db.SetMaxOpenConns(1)
	} else {
		s.dialect = Postgres
	}
	if err := db.PingContext(s.ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("could not reach %s database: %w", s.dialect, err)
	}
	s.db = db
	return nil
}

func parseDSN(dsn string) (driver, source string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", dsn
	}
	source = strings.TrimPrefix(dsn, "sqlite:")
	if strings.Contains(source, "?") {
		source += "&" + sqlitePragmas
	} else {
		source += "?" + sqlitePragmas
	}
	return "sqlite", source
}

func (s *Storage) Dialect() Dialect {
	return s.dialect
}

// Migrate creates any missing tables and indexes.
func (s *Storage) Migrate(ctx context.Context) error {
	schema := schemaPostgres
	if s.dialect == SQLite {
		schema = schemaSQLite
	}
	return s.Begin(ctx, func(q entity.Querier) error {
		for _, stmt := range strings.Split(schema, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("could not apply schema: %w", err)
			}
		}
		return nil
	})
}

// Begin runs fn in a transaction, committing if it returns nil and rolling back
// otherwise. Constraint violations come back as *IntegrityError.
func (s *Storage) Begin(ctx context.Context, fn func(entity.Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			s.logger.Sugar().Warnf("Failed to roll back transaction: %s.", rerr)
		}
		return classify(err)
	}
	return classify(tx.Commit())
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
