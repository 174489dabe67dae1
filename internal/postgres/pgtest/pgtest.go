// Package pgtest connects integration tests to the database named by
// TEST_POSTGRES_DSN. Tests skip when it is unset.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/agro-market/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const EnvDSN = "TEST_POSTGRES_DSN"

// Pool returns a migrated pool closed at test cleanup. Tests share the
// database, so they must use fresh ids for every row they create.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}
