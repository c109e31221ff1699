// Package app assembles a zoo session from configuration: the event log,
// the optional SQLite journal and CSV telemetry, and the engine. The
// binaries share it so they wire the same stack.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MRamiBalles/ZooSimulator/server/internal/engine"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/infra/storage"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
	"github.com/MRamiBalles/ZooSimulator/server/internal/telemetry"
)

// Session owns everything one running zoo needs.
type Session struct {
	ID        string
	Config    *config.Config
	Logger    *logger.Logger
	Metrics   *metrics.Collector
	EventLog  *events.EventLog
	Engine    *engine.Engine
	Journal   *storage.Journal // nil when storage.db_path is empty
	Recapper  *storage.Recapper
	Telemetry *telemetry.Collector

	db  *sql.DB
	out *telemetry.OutputManager
}

// Open builds a session. Nothing runs until Start.
func Open(cfg *config.Config, log *logger.Logger, m *metrics.Collector) (*Session, error) {
	if m == nil {
		m = metrics.Get()
	}
	s := &Session{
		ID:      uuid.NewString(),
		Config:  cfg,
		Logger:  log,
		Metrics: m,
	}

	var persister events.EventPersister
	if cfg.Storage.DBPath != "" {
		log.Info("opening audit journal", "path", cfg.Storage.DBPath)
		j, db, err := storage.OpenJournal(cfg.Storage.DBPath, s.ID, m)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.Journal, s.db = j, db
		s.Recapper = storage.NewRecapper(storage.NewSQLiteEventRepository(db))
		persister = j
	}

	s.EventLog = events.NewEventLog(persister)
	s.EventLog.SetRetention(cfg.Storage.MemoryEvents)
	s.EventLog.OnPersistError(func(err error) {
		log.Warn("journal write failed", "error", err)
	})

	out, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("open telemetry output: %w", err)
	}
	if err := out.WriteConfig(cfg); err != nil {
		log.Warn("failed to save config snapshot", "error", err)
	}
	s.out = out
	s.Telemetry = telemetry.NewCollector(out, log)

	s.Engine = engine.NewEngine(cfg, s.EventLog, log, engine.WithMetrics(m), engine.WithSessionID(s.ID))
	s.Engine.OnTick(s.Telemetry.Observe)
	return s, nil
}

// Start generates the first population and starts the clock.
func (s *Session) Start(ctx context.Context) error {
	return s.Engine.Start(ctx)
}

// History returns the best available history source: the journal when
// configured, the in-memory log otherwise.
func (s *Session) History(ctx context.Context, f events.EventFilter) ([]events.GameEvent, error) {
	if s.Journal != nil {
		return s.Journal.History(ctx, f)
	}
	return s.EventLog.Filter(f), nil
}

// Close stops the engine and flushes and closes every store.
func (s *Session) Close() error {
	s.Engine.Shutdown()
	s.EventLog.Flush()
	return s.closeStores()
}

func (s *Session) closeStores() error {
	var errs []error
	if s.out != nil {
		if err := s.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close telemetry: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	return errors.Join(errs...)
}
