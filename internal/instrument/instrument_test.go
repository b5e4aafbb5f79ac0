package instrument_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminkit/internal/instrument"
	"adminkit/internal/store"
	"adminkit/internal/testutil"
)

func countEvents(t *testing.T, s *store.Store) int64 {
	t.Helper()
	row, err := store.QueryRow(context.Background(), s.DB, "SELECT COUNT(*) AS count FROM _role_events")
	require.NoError(t, err)
	return row["count"].(int64)
}

func TestNewMigrationEvent(t *testing.T) {
	ctx := instrument.WithUserID(context.Background(), "ops")

	e := instrument.NewMigrationEvent(ctx, instrument.ActionMigrationUp, "001", 1500*time.Microsecond, nil)
	assert.Equal(t, instrument.Event{
		Action: "migration.up", Subject: "001", Status: "ok", DurationMs: 1.5, UserID: "ops",
	}, e)

	e = instrument.NewMigrationEvent(context.Background(), instrument.ActionMigrationDown, "001", 0, errors.New("boom"))
	assert.Equal(t, "error", e.Status)
	assert.Equal(t, "boom", e.Metadata["error"])
	assert.Empty(t, e.UserID)
}

func TestEventBuffer_FlushAndStop(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	eb := instrument.NewEventBuffer(s, 1000, time.Hour)

	ctx := instrument.WithUserID(context.Background(), "ops")
	for i := 0; i < 150; i++ {
		eb.RecordMigration(ctx, instrument.ActionMigrationUp, "001", time.Millisecond, nil)
	}
	assert.Equal(t, 150, eb.Pending())

	eb.Flush()
	assert.Zero(t, eb.Pending())
	assert.Equal(t, int64(150), countEvents(t, s))

	eb.RecordMigration(ctx, instrument.ActionMigrationDown, "001", time.Millisecond, errors.New("boom"))
	eb.Stop()
	eb.Stop()
	assert.Equal(t, int64(151), countEvents(t, s))

	row, err := store.QueryRow(context.Background(), s.DB,
		"SELECT status, user_id, metadata FROM _role_events WHERE action = 'migration.down'")
	require.NoError(t, err)
	assert.Equal(t, "error", row["status"])
	assert.Equal(t, "ops", row["user_id"])
	assert.JSONEq(t, `{"error":"boom"}`, row["metadata"].(string))
}

func TestEventBuffer_FlushContinuesAfterFailedBatch(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	eb := instrument.NewEventBuffer(s, 1000, time.Hour)
	defer eb.Stop()

	// Unencodable metadata fails the first batch only.
	eb.Enqueue(instrument.Event{Action: instrument.ActionMigrationUp, Subject: "bad", Metadata: map[string]any{"ch": make(chan int)}})
	for i := 0; i < 149; i++ {
		eb.RecordMigration(context.Background(), instrument.ActionMigrationUp, "001", time.Millisecond, nil)
	}

	eb.Flush()
	assert.Zero(t, eb.Pending())
	assert.Equal(t, int64(50), countEvents(t, s))
}

func TestCleanupOldEvents(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewSQLiteStore(t)

	_, err := store.Exec(ctx, s.DB, `INSERT INTO _role_events (id, action, created_at) VALUES
		('a', 'migration.up', '2020-01-01 00:00:00'),
		('b', 'migration.up', datetime('now'))`)
	require.NoError(t, err)

	n, err := instrument.CleanupOldEvents(ctx, s, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), countEvents(t, s))
}

func TestEventHandler(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewSQLiteStore(t)
	_, err := store.Exec(ctx, s.DB, `INSERT INTO _role_events (id, action, subject, status, duration_ms, created_at) VALUES
		('a', 'migration.up', '001_blog', 'ok', 2, '2024-01-01 09:00:00'),
		('b', 'migration.up', '002_rename', 'ok', 4, '2024-01-02 09:00:00'),
		('c', 'migration.down', '002_rename', 'error', 1, '2024-01-03 09:00:00')`)
	require.NoError(t, err)

	app := fiber.New()
	instrument.RegisterEventRoutes(app.Group("/api/_admin"), instrument.NewEventHandler(s, nil))

	get := func(path string, query url.Values) map[string]any {
		if query != nil {
			path += "?" + query.Encode()
		}
		req, _ := http.NewRequest("GET", path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		var out map[string]any
		require.NoError(t, json.Unmarshal(body, &out))
		return out
	}
	ids := func(body map[string]any) []string {
		out := []string{}
		for _, r := range body["data"].([]any) {
			out = append(out, r.(map[string]any)["id"].(string))
		}
		return out
	}

	body := get("/api/_admin/events", nil)
	assert.Equal(t, []string{"c", "b", "a"}, ids(body))
	assert.Equal(t, float64(3), body["meta"].(map[string]any)["total"])

	body = get("/api/_admin/events", url.Values{"filter[subject]": {"002"}, "sort": {"created_at"}})
	assert.Equal(t, []string{"b", "c"}, ids(body))

	body = get("/api/_admin/events", url.Values{
		"filter[action]":     {"migration.up"},
		"filter[created_at]": {`{"from":"2024-01-02","to":"2024-01-05"}`},
	})
	assert.Equal(t, []string{"b"}, ids(body))

	body = get("/api/_admin/events/stats", nil)
	stats := body["data"].([]any)
	require.Len(t, stats, 2)
	down := stats[0].(map[string]any)
	assert.Equal(t, "migration.down", down["action"])
	assert.Equal(t, float64(1), down["count"])
	up := stats[1].(map[string]any)
	assert.Equal(t, float64(2), up["count"])
	assert.Equal(t, float64(3), up["avg_ms"])
}
