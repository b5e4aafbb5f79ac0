package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminkit/internal/store"
	"adminkit/internal/testutil"
)

func TestBootstrap_CreatesSystemTables(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	for _, table := range []string{"roles", "permissions", "role_permissions", "_role_migrations", "_role_events"} {
		exists, err := s.Dialect.TableExists(ctx, s.DB, table)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}

	// Idempotent
	require.NoError(t, s.Bootstrap(ctx))
}

func TestQueryHelpers_RoundTrip(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	n, err := store.Exec(ctx, s.DB, "INSERT INTO roles (id, name) VALUES (?1, ?2)", "r1", "admin")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	row, err := store.QueryRow(ctx, s.DB, "SELECT id, name FROM roles WHERE name = ?1", "admin")
	require.NoError(t, err)
	assert.Equal(t, "r1", row["id"])
	assert.Equal(t, "admin", row["name"])

	_, err = store.QueryRow(ctx, s.DB, "SELECT id FROM roles WHERE name = ?1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = store.Exec(ctx, s.DB, "INSERT INTO roles (id, name) VALUES (?1, ?2)", "r2", "admin")
	require.Error(t, err)
	assert.ErrorIs(t, store.MapError(s.Dialect, err), store.ErrUniqueViolation)
}
