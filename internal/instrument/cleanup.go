package instrument

import (
	"context"
	"fmt"
	"log"
	"time"

	"adminkit/internal/store"
)

// CleanupOldEvents deletes events older than retention from _role_events.
func CleanupOldEvents(ctx context.Context, s *store.Store, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.DateTime)
	sqlStr := fmt.Sprintf("DELETE FROM _role_events WHERE created_at < %s", s.Dialect.Placeholder(1))
	n, err := store.Exec(ctx, s.DB, sqlStr, cutoff)
	if err != nil {
		return 0, fmt.Errorf("event cleanup: %w", err)
	}
	if n > 0 {
		log.Printf("Event cleanup: deleted %d old events", n)
	}
	return n, nil
}

// CleanupScheduler runs CleanupOldEvents on a fixed interval.
type CleanupScheduler struct {
	store     *store.Store
	retention time.Duration
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
}

func NewCleanupScheduler(s *store.Store, retention, interval time.Duration) *CleanupScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupScheduler{store: s, retention: retention, interval: interval}
}

// Start begins the background ticker.
func (cs *CleanupScheduler) Start() {
	cs.done = make(chan struct{})
	cs.ticker = time.NewTicker(cs.interval)
	go cs.run()
	log.Printf("Event cleanup scheduler started (retention: %s, every %s)", cs.retention, cs.interval)
}

// Stop halts the background ticker.
func (cs *CleanupScheduler) Stop() {
	if cs.ticker != nil {
		cs.ticker.Stop()
	}
	if cs.done != nil {
		close(cs.done)
	}
}

func (cs *CleanupScheduler) run() {
	for {
		select {
		case <-cs.done:
			return
		case <-cs.ticker.C:
			if _, err := CleanupOldEvents(context.Background(), cs.store, cs.retention); err != nil {
				log.Printf("ERROR: %v", err)
			}
		}
	}
}
