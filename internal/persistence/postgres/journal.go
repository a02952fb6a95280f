// Package postgres persists the engine's audit trail. Writes go through a
// buffered worker so a slow database delays the journal, never a cycle.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/events"
)

const insertEventQuery = `
	INSERT INTO engine_events (id, kind, symbol, horizon, at, payload)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Open connects and verifies the database is reachable.
func Open(dsn string, timeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// JournalSink implements events.Sink on a Postgres table.
type JournalSink struct {
	db      *sqlx.DB
	timeout time.Duration

	ch   chan events.Event
	wg   sync.WaitGroup
	once sync.Once
}

func NewJournalSink(db *sqlx.DB, timeout time.Duration) *JournalSink {
	s := &JournalSink{
		db:      db,
		timeout: timeout,
		ch:      make(chan events.Event, 256),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Emit queues the event. When the buffer is full the event is dropped and
// counted in the log; trading never blocks on the journal.
func (s *JournalSink) Emit(_ context.Context, ev events.Event) {
	select {
	case s.ch <- ev:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Str("symbol", ev.Symbol).Msg("Event journal buffer full, dropping event")
	}
}

// Close drains the buffer and stops the worker.
func (s *JournalSink) Close() error {
	s.once.Do(func() { close(s.ch) })
	s.wg.Wait()
	return nil
}

func (s *JournalSink) run() {
	defer s.wg.Done()
	for ev := range s.ch {
		if err := s.insert(ev); err != nil {
			log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to journal event")
		}
	}
}

func (s *JournalSink) insert(ev events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.db.ExecContext(ctx, insertEventQuery,
		id, string(ev.Kind), ev.Symbol, ev.Horizon, ev.At, payloadJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate event: %w", err)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}
