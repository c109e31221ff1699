package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

// writeTimeout bounds a single journal write.
const writeTimeout = 5 * time.Second

// Journal persists the event log of one session. It implements
// events.EventPersister and keeps the games table in step with the
// ZOO_GENERATED and GAME_ENDED events it sees.
type Journal struct {
	sessionID string
	events    EventRepository
	games     GameRepository
	metrics   *metrics.Collector
}

// NewJournal creates a journal writing through the given repositories.
func NewJournal(sessionID string, eventRepo EventRepository, gameRepo GameRepository, m *metrics.Collector) *Journal {
	if m == nil {
		m = metrics.Get()
	}
	return &Journal{sessionID: sessionID, events: eventRepo, games: gameRepo, metrics: m}
}

// OpenJournal opens the SQLite database at dbPath and returns a journal
// over it. The caller closes the returned database.
func OpenJournal(dbPath, sessionID string, m *metrics.Collector) (*Journal, *sql.DB, error) {
	db, err := InitSQLite(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return NewJournal(sessionID, NewSQLiteEventRepository(db), NewSQLiteGameRepository(db), m), db, nil
}

// SessionID returns the session this journal writes for.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Append implements events.EventPersister.
func (j *Journal) Append(e events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := j.append(ctx, e)
	j.metrics.RecordJournalWrite(err)
	return err
}

func (j *Journal) append(ctx context.Context, e events.GameEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	record := EventRecord{
		ID:         e.ID,
		SessionID:  j.sessionID,
		Generation: e.Generation,
		Timestamp:  e.Timestamp,
		EventType:  string(e.Type),
		ActorID:    e.ActorID,
		TargetID:   e.TargetID,
		Payload:    payload,
	}
	if err := j.events.Append(ctx, record); err != nil {
		return err
	}

	switch p := e.Payload.(type) {
	case events.ZooGeneratedPayload:
		return j.games.RecordGameStarted(ctx, GameRecord{
			SessionID:  j.sessionID,
			Generation: e.Generation,
			Population: p.Population,
			StartedAt:  e.Timestamp,
		})
	case events.GameEndedPayload:
		return j.games.RecordGameEnded(ctx, j.sessionID, e.Generation, e.Timestamp, p.Ticks)
	}
	return nil
}

// History returns journaled events of this session matching f, decoded
// back into events with raw JSON payloads.
func (j *Journal) History(ctx context.Context, f events.EventFilter) ([]events.GameEvent, error) {
	records, err := j.events.List(ctx, EventQuery{
		SessionID:  j.sessionID,
		EventType:  string(f.Type),
		Generation: f.Generation,
		Limit:      f.Limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]events.GameEvent, 0, len(records))
	for _, r := range records {
		out = append(out, events.GameEvent{
			ID:         r.ID,
			Timestamp:  r.Timestamp,
			Type:       events.EventType(r.EventType),
			ActorID:    r.ActorID,
			TargetID:   r.TargetID,
			Payload:    r.Payload,
			Generation: r.Generation,
		})
	}
	return out, nil
}

// Games lists the games of this session.
func (j *Journal) Games(ctx context.Context) ([]GameRecord, error) {
	return j.games.Games(ctx, j.sessionID)
}
