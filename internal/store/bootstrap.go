package store

import (
	"context"
	"fmt"
	"strings"
)

// Bootstrap creates the system tables. Every statement is IF NOT EXISTS.
func (s *Store) Bootstrap(ctx context.Context) error {
	// One statement per Exec keeps both drivers on the same path.
	for _, stmt := range strings.Split(s.Dialect.SystemTablesSQL(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap system tables: %w", err)
		}
	}
	return nil
}
