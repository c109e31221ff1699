// Package storage provides the audit journal of the zoo server: every
// event of every game, plus one row per game, kept in SQLite.
// The simulation never reads from it; nothing here is needed to run a game.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// EventRecord is the persisted form of an event.
type EventRecord struct {
	ID         string          `json:"id" db:"id"`
	SessionID  string          `json:"session_id" db:"session_id"`
	Generation uint64          `json:"generation" db:"generation"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
	EventType  string          `json:"event_type" db:"event_type"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	TargetID   string          `json:"target_id" db:"target_id"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
}

// EventQuery selects events. Zero fields match everything; results are
// the most recent Limit events, oldest first.
type EventQuery struct {
	SessionID  string
	EventType  string
	Generation uint64
	Limit      int
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event EventRecord) error

	// List retrieves events matching q in chronological order.
	List(ctx context.Context, q EventQuery) ([]EventRecord, error)
}

// GameRecord summarizes one population lifetime.
type GameRecord struct {
	SessionID  string     `json:"session_id" db:"session_id"`
	Generation uint64     `json:"generation" db:"generation"`
	Population int        `json:"population" db:"population"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Ticks      uint64     `json:"ticks" db:"ticks"`
}

// GameRepository defines the interface for per-game bookkeeping.
type GameRepository interface {
	// RecordGameStarted inserts a game row.
	RecordGameStarted(ctx context.Context, game GameRecord) error

	// RecordGameEnded stamps the end time and tick count of a game.
	RecordGameEnded(ctx context.Context, sessionID string, generation uint64, endedAt time.Time, ticks uint64) error

	// Games lists the games of a session, oldest first. An empty session lists every game.
	Games(ctx context.Context, sessionID string) ([]GameRecord, error)
}
