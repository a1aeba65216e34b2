// Package storagetest opens migrated databases for tests.
package storagetest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pkg.mon.icu/wumpus/internal/storage"
	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// PostgresEnv names the variable holding a Postgres DSN for tests. Postgres
// tests are skipped when it is unset.
const PostgresEnv = "WUMPUS_TEST_POSTGRES_DSN"

// New returns a migrated SQLite database in a temporary directory.
func New(t testing.TB) *storage.Storage {
	t.Helper()
	return open(t, filepath.Join(t.TempDir(), "wumpus.db"))
}

// NewPostgres returns the migrated, emptied Postgres database named by
// PostgresEnv.
func NewPostgres(t testing.TB) *storage.Storage {
	t.Helper()
	dsn := os.Getenv(PostgresEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresEnv)
	}
	s := open(t, dsn)
	err := s.Begin(context.Background(), func(q entity.Querier) error {
		_, err := q.ExecContext(context.Background(), `truncate guilds, users cascade`)
		return err
	})
	require.NoError(t, err)
	return s
}

func open(t testing.TB, dsn string) *storage.Storage {
	ctx := context.Background()
	s := storage.NewStorage(ctx, zaptest.NewLogger(t))
	require.NoError(t, s.Connect(dsn))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}
