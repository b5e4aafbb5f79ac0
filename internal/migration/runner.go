package migration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"adminkit/internal/permission"
	"adminkit/internal/store"
)

var (
	ErrDuplicateID      = errors.New("migration: duplicate id")
	ErrEmptyID          = errors.New("migration: empty id")
	ErrUnknownMigration = errors.New("migration: applied migration not found")
)

// Recorder receives one call per migration step the runner attempts.
type Recorder interface {
	RecordMigration(ctx context.Context, action, id string, took time.Duration, err error)
}

const (
	actionUp   = "migration.up"
	actionDown = "migration.down"
)

// Status describes one known migration and whether it has been applied.
type Status struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Applied     bool       `json:"applied"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// Runner applies and reverts migrations in ID order, recording applied IDs in
// the _role_migrations table. Steps are not wrapped in a transaction: a
// failure leaves earlier steps of the same migration committed.
type Runner struct {
	store      *store.Store
	sync       *permission.Synchronizer
	migrations []*Migration
	byID       map[string]*Migration
	recorder   Recorder
}

func NewRunner(s *store.Store, sync *permission.Synchronizer, migrations []*Migration) (*Runner, error) {
	byID := make(map[string]*Migration, len(migrations))
	sorted := make([]*Migration, 0, len(migrations))
	for _, m := range migrations {
		if m.ID == "" {
			return nil, ErrEmptyID
		}
		if _, ok := byID[m.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		}
		byID[m.ID] = m
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &Runner{store: s, sync: sync, migrations: sorted, byID: byID}, nil
}

// SetRecorder attaches an audit recorder. nil disables recording.
func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

func (r *Runner) record(ctx context.Context, action, id string, start time.Time, err error) {
	if r.recorder != nil {
		r.recorder.RecordMigration(ctx, action, id, time.Since(start), err)
	}
}

// Up applies every pending migration and returns the applied IDs.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	d := r.store.Dialect
	insertSQL := fmt.Sprintf("INSERT INTO _role_migrations (id, description) VALUES (%s, %s)",
		d.Placeholder(1), d.Placeholder(2))

	var done []string
	for _, m := range r.migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		start := time.Now()
		if err := m.Up(ctx, r.sync); err != nil {
			r.record(ctx, actionUp, m.ID, start, err)
			return done, fmt.Errorf("apply %s: %w", m.ID, err)
		}
		if _, err := store.Exec(ctx, r.store.DB, insertSQL, m.ID, m.Description); err != nil {
			r.record(ctx, actionUp, m.ID, start, err)
			return done, fmt.Errorf("record %s: %w", m.ID, err)
		}
		r.record(ctx, actionUp, m.ID, start, nil)
		log.Printf("Applied role migration %s", m.ID)
		done = append(done, m.ID)
	}
	return done, nil
}

// Down reverts the last n applied migrations (at least one) and returns the
// reverted IDs.
func (r *Runner) Down(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = 1
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if len(ids) > n {
		ids = ids[:n]
	}

	deleteSQL := fmt.Sprintf("DELETE FROM _role_migrations WHERE id = %s", r.store.Dialect.Placeholder(1))

	var done []string
	for _, id := range ids {
		m, ok := r.byID[id]
		if !ok {
			return done, fmt.Errorf("%w: %s", ErrUnknownMigration, id)
		}
		start := time.Now()
		if err := m.Down(ctx, r.sync); err != nil {
			r.record(ctx, actionDown, id, start, err)
			return done, fmt.Errorf("revert %s: %w", id, err)
		}
		if _, err := store.Exec(ctx, r.store.DB, deleteSQL, id); err != nil {
			r.record(ctx, actionDown, id, start, err)
			return done, fmt.Errorf("unrecord %s: %w", id, err)
		}
		r.record(ctx, actionDown, id, start, nil)
		log.Printf("Reverted role migration %s", id)
		done = append(done, id)
	}
	return done, nil
}

// Status lists every known migration in order with its applied state.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(r.migrations))
	for _, m := range r.migrations {
		st := Status{ID: m.ID, Description: m.Description}
		if at, ok := applied[m.ID]; ok {
			st.Applied = true
			if !at.IsZero() {
				at := at
				st.AppliedAt = &at
			}
		}
		statuses = append(statuses, st)
	}
	for id := range applied {
		if _, ok := r.byID[id]; !ok {
			log.Printf("WARN: role migration %s is recorded as applied but has no definition", id)
		}
	}
	return statuses, nil
}

// applied reads the ledger, creating the system tables on first use.
func (r *Runner) applied(ctx context.Context) (map[string]time.Time, error) {
	exists, err := r.store.Dialect.TableExists(ctx, r.store.DB, "_role_migrations")
	if err != nil {
		return nil, fmt.Errorf("check migration ledger: %w", err)
	}
	if !exists {
		if err := r.store.Bootstrap(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := r.store.DB.QueryContext(ctx, "SELECT id, applied_at FROM _role_migrations")
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer rows.Close()

	applied := map[string]time.Time{}
	for rows.Next() {
		var (
			id string
			at any
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan migration ledger: %w", err)
		}
		applied[id], _ = store.ParseTime(at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return applied, nil
}
