// Package instrument records an audit trail of role migration runs in the
// _role_events table.
package instrument

import (
	"context"
	"time"
)

const (
	ActionMigrationUp   = "migration.up"
	ActionMigrationDown = "migration.down"

	StatusOK    = "ok"
	StatusError = "error"
)

// Event is one audited operation.
type Event struct {
	Action     string
	Subject    string
	Status     string
	DurationMs float64
	UserID     string
	Metadata   map[string]any
}

type userKey struct{}

// WithUserID attaches the acting user to ctx so recorded events carry it.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// NewMigrationEvent builds the event for one applied or reverted migration.
func NewMigrationEvent(ctx context.Context, action, id string, took time.Duration, err error) Event {
	e := Event{
		Action:     action,
		Subject:    id,
		Status:     StatusOK,
		DurationMs: float64(took.Microseconds()) / 1000,
		UserID:     UserID(ctx),
	}
	if err != nil {
		e.Status = StatusError
		e.Metadata = map[string]any{"error": err.Error()}
	}
	return e
}
