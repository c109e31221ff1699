package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event EventRecord) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "null"
	}

	query := `
		INSERT INTO events (id, session_id, generation, timestamp, event_type, actor_id, target_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Generation, event.Timestamp, event.EventType,
		event.ActorID, event.TargetID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) List(ctx context.Context, q EventQuery) ([]EventRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, q.EventType)
	}
	if q.Generation != 0 {
		where = append(where, "generation = ?")
		args = append(args, q.Generation)
	}

	query := `SELECT seq, id, session_id, generation, timestamp, event_type, actor_id, target_id, payload FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Limit > 0 {
		query = `SELECT * FROM (` + query + ` ORDER BY timestamp DESC, seq DESC LIMIT ?)`
		args = append(args, q.Limit)
	}
	query += ` ORDER BY timestamp ASC, seq ASC`

	return r.getMany(ctx, query, args...)
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var (
			e       EventRecord
			seq     int64
			payload string
		)
		err := rows.Scan(
			&seq, &e.ID, &e.SessionID, &e.Generation, &e.Timestamp, &e.EventType,
			&e.ActorID, &e.TargetID, &payload,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ---------------------------------------------------------
// SQLiteGameRepository
// ---------------------------------------------------------

type SQLiteGameRepository struct {
	db *sql.DB
}

func NewSQLiteGameRepository(db *sql.DB) *SQLiteGameRepository {
	return &SQLiteGameRepository{db: db}
}

func (r *SQLiteGameRepository) RecordGameStarted(ctx context.Context, game GameRecord) error {
	query := `
		INSERT INTO games (session_id, generation, population, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, generation) DO UPDATE SET
			population=excluded.population,
			started_at=excluded.started_at
	`
	_, err := r.db.ExecContext(ctx, query, game.SessionID, game.Generation, game.Population, game.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record game start: %w", err)
	}
	return nil
}

// RecordGameEnded upserts so that it does not depend on the start row
// having been written first.
func (r *SQLiteGameRepository) RecordGameEnded(ctx context.Context, sessionID string, generation uint64, endedAt time.Time, ticks uint64) error {
	query := `
		INSERT INTO games (session_id, generation, population, started_at, ended_at, ticks)
		VALUES (?, ?, 0, ?, ?, ?)
		ON CONFLICT(session_id, generation) DO UPDATE SET
			ended_at=excluded.ended_at,
			ticks=excluded.ticks
	`
	_, err := r.db.ExecContext(ctx, query, sessionID, generation, endedAt, endedAt, ticks)
	if err != nil {
		return fmt.Errorf("failed to record game end: %w", err)
	}
	return nil
}

func (r *SQLiteGameRepository) Games(ctx context.Context, sessionID string) ([]GameRecord, error) {
	query := `SELECT session_id, generation, population, started_at, ended_at, ticks FROM games`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at ASC, generation ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var (
			g     GameRecord
			ended sql.NullTime
		)
		if err := rows.Scan(&g.SessionID, &g.Generation, &g.Population, &g.StartedAt, &ended, &g.Ticks); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			g.EndedAt = &t
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
