package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"adminkit/internal/store"
)

// batchSize bounds one INSERT so SQLite stays under its variable limit.
const batchSize = 100

var eventColumns = []string{"id", "action", "subject", "status", "duration_ms", "user_id", "metadata"}

// EventBuffer collects events in memory and periodically flushes them
// to the _role_events table in a batch insert.
type EventBuffer struct {
	mu       sync.Mutex
	events   []Event
	store    *store.Store
	maxSize  int
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

// NewEventBuffer creates a buffer that flushes on a timer or when full.
func NewEventBuffer(s *store.Store, maxSize int, flushInterval time.Duration) *EventBuffer {
	if maxSize <= 0 {
		maxSize = batchSize
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	eb := &EventBuffer{
		store:   s,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	eb.ticker = time.NewTicker(flushInterval)
	go eb.run()
	return eb
}

func (eb *EventBuffer) run() {
	for {
		select {
		case <-eb.done:
			return
		case <-eb.ticker.C:
			eb.Flush()
		}
	}
}

// Enqueue adds an event to the buffer. If the buffer is full, a flush
// is triggered asynchronously.
func (eb *EventBuffer) Enqueue(event Event) {
	eb.mu.Lock()
	eb.events = append(eb.events, event)
	shouldFlush := len(eb.events) >= eb.maxSize
	eb.mu.Unlock()
	if shouldFlush {
		go eb.Flush()
	}
}

// RecordMigration enqueues the audit event for one migration step.
func (eb *EventBuffer) RecordMigration(ctx context.Context, action, id string, took time.Duration, err error) {
	eb.Enqueue(NewMigrationEvent(ctx, action, id, took, err))
}

// Pending returns the number of events not yet flushed.
func (eb *EventBuffer) Pending() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.events)
}

// Flush writes all buffered events to the database. A batch that fails to
// insert is logged and dropped; later batches are still written.
func (eb *EventBuffer) Flush() {
	eb.mu.Lock()
	if len(eb.events) == 0 {
		eb.mu.Unlock()
		return
	}
	batch := eb.events
	eb.events = nil
	eb.mu.Unlock()

	ctx := context.Background()
	dropped := 0
	for start := 0; start < len(batch); start += batchSize {
		end := min(start+batchSize, len(batch))
		if err := eb.insert(ctx, batch[start:end]); err != nil {
			log.Printf("ERROR: event buffer insert: %v", err)
			dropped += end - start
		}
	}
	if dropped > 0 {
		log.Printf("WARN: event buffer dropped %d of %d events", dropped, len(batch))
	}
}

func (eb *EventBuffer) insert(ctx context.Context, batch []Event) error {
	pb := eb.store.Dialect.NewParamBuilder()
	placeholders := make([]string, 0, len(batch))
	for _, e := range batch {
		var metaJSON any
		if e.Metadata != nil {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			metaJSON = string(b)
		}
		var userID any
		if e.UserID != "" {
			userID = e.UserID
		}
		ph := []string{
			pb.Add(uuid.NewString()), pb.Add(e.Action), pb.Add(e.Subject), pb.Add(e.Status),
			pb.Add(e.DurationMs), pb.Add(userID), pb.Add(metaJSON),
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
	}

	tx, err := eb.store.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	sqlStr := fmt.Sprintf("INSERT INTO _role_events (%s) VALUES %s",
		strings.Join(eventColumns, ", "), strings.Join(placeholders, ", "))
	if _, err := store.Exec(ctx, tx, sqlStr, pb.Params()...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Stop halts the background ticker and flushes remaining events.
func (eb *EventBuffer) Stop() {
	eb.stopOnce.Do(func() {
		eb.ticker.Stop()
		close(eb.done)
		eb.Flush()
	})
}
