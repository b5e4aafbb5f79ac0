// Package testutil opens throwaway SQLite-backed stores for package tests.
package testutil

import (
	"context"
	"testing"

	"adminkit/internal/config"
	"adminkit/internal/store"
)

// NewSQLiteStore opens a bootstrapped store backed by a SQLite file in a
// per-test temp directory. The connection is closed via t.Cleanup.
func NewSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	s, err := store.New(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		Name:   "adminkit_test",
		Path:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s
}
