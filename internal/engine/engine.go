package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/zoo"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

var (
	// ErrNotStarted is returned by commands issued before Start.
	ErrNotStarted = errors.New("engine not started")
	// ErrClosed is returned by commands issued after Shutdown.
	ErrClosed = errors.New("engine shut down")
)

// Engine is the session controller: it owns the zoo and its services and
// runs the feed, jump and new-game flows a player can trigger.
type Engine struct {
	cfg       *config.Config
	eventLog  *events.EventLog
	logger    *logger.Logger
	metrics   *metrics.Collector
	sessionID string

	zoo       *zoo.Zoo
	deaths    *DeathManager
	feeding   *FeedingService
	generator *Generator
	reaper    *Reaper

	mu      sync.Mutex // serializes commands
	started bool

	lifeMu   sync.Mutex // guards closed and restarts
	closed   bool
	ctx      context.Context
	restarts sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics replaces the global metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(e *Engine) { e.sessionID = id }
}

// NewEngine wires the zoo services together. Nothing runs until Start.
func NewEngine(cfg *config.Config, eventLog *events.EventLog, log *logger.Logger, opts ...Option) *Engine {
	z := zoo.New()
	e := &Engine{
		cfg:       cfg,
		eventLog:  eventLog,
		logger:    log,
		metrics:   metrics.Get(),
		sessionID: uuid.NewString(),
		zoo:       z,
		deaths:    NewDeathManager(z, cfg.Scheduler, eventLog, log),
		feeding:   NewFeedingService(z, cfg.Feeding.Boost, eventLog, log),
		generator: NewGenerator(cfg),
		reaper:    NewReaper(z, cfg.Scheduler.DeadGracePeriod, eventLog, log),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.deaths.metrics = e.metrics
	e.feeding.metrics = e.metrics
	e.reaper.metrics = e.metrics

	e.deaths.OnGameEnded(e.onGameEnded)
	return e
}

// Start generates the first population and starts the death manager.
// Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isClosed() {
		return ErrClosed
	}
	if e.started {
		return nil
	}

	e.lifeMu.Lock()
	e.ctx = ctx
	e.lifeMu.Unlock()

	e.logger.Info("starting zoo engine", "session", e.sessionID, "population", e.cfg.Population.Size,
		"tick_interval", e.cfg.Scheduler.TickInterval)
	if err := e.newGameLocked(ctx); err != nil {
		return err
	}
	e.started = true
	return nil
}

// Shutdown stops the death manager and the reaper and waits for pending
// restarts. The engine cannot be started again.
func (e *Engine) Shutdown() {
	e.lifeMu.Lock()
	if e.closed {
		e.lifeMu.Unlock()
		return
	}
	e.closed = true
	e.lifeMu.Unlock()

	e.mu.Lock()
	e.deaths.Stop()
	e.reaper.Stop()
	e.mu.Unlock()

	e.restarts.Wait()
	e.logger.Info("zoo engine stopped", "session", e.sessionID, "ticks", e.deaths.TickCount())
}

// Feed pauses the clock, feeds every animal and resumes unless everyone is dead.
func (e *Engine) Feed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}

	e.deaths.Stop()
	e.feeding.Feed()
	if !e.zoo.IsEmpty() {
		e.deaths.Run()
	}
	return nil
}

// Jump pauses the clock and applies one decay pass immediately. If that
// pass killed the last animal GameEnded is raised, otherwise the clock
// resumes. It reports whether the game ended.
func (e *Engine) Jump() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return false, err
	}

	e.deaths.Stop()
	if e.deaths.ForceTick() {
		e.deaths.InvokeGameEnded()
		return true, nil
	}
	if !e.zoo.IsEmpty() {
		e.deaths.Run()
	}
	return false, nil
}

// NewGame discards the current population and starts a fresh one.
func (e *Engine) NewGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	return e.newGameLocked(ctx)
}

func (e *Engine) newGameLocked(ctx context.Context) error {
	e.deaths.Stop()
	e.reaper.Reset()

	animals, err := e.generator.Spawn(ctx, e.cfg.Population.Size)
	if err != nil {
		return fmt.Errorf("new game: %w", err)
	}

	gen := e.zoo.ReplaceAll(animals)
	species := make(map[string]int, len(animal.AllSpecies))
	for _, a := range animals {
		e.watch(a, gen)
		species[string(a.Species())]++
	}

	e.metrics.RecordGameStarted()
	e.eventLog.Append(events.GameEvent{
		Type:       events.EventTypeZooGenerated,
		ActorID:    events.ActorGenerator,
		Generation: gen,
		Payload:    events.ZooGeneratedPayload{Population: len(animals), Species: species},
	})
	e.logger.Event(string(events.EventTypeZooGenerated), events.ActorGenerator,
		fmt.Sprintf("generation %d with %d animals", gen, len(animals)))

	e.deaths.Run()
	return nil
}

// watch publishes the animal's LifeState changes and hands it to the reaper.
func (e *Engine) watch(a *animal.Animal, generation uint64) {
	a.Monitor().Subscribe(func(a *animal.Animal, state rules.LifeState) {
		e.metrics.RecordTransition(state == rules.Dead)
		e.eventLog.Append(events.GameEvent{
			Type:       events.EventTypeLifeStateChanged,
			ActorID:    events.ActorMonitor,
			TargetID:   a.ID(),
			Generation: generation,
			Payload: events.LifeStatePayload{
				Species: string(a.Species()),
				State:   state.String(),
				Health:  a.Health(),
			},
		})
	})
	e.reaper.Watch(a)
}

// onGameEnded runs outside the tick. It must not take e.mu because Jump
// raises GameEnded while holding it.
func (e *Engine) onGameEnded(generation uint64) {
	e.metrics.RecordGameEnded()
	e.eventLog.Append(events.GameEvent{
		Type:       events.EventTypeGameEnded,
		ActorID:    events.ActorDeathManager,
		Generation: generation,
		Payload:    events.GameEndedPayload{Population: e.zoo.Len(), Ticks: e.deaths.TickCount()},
	})

	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.closed || !e.cfg.Scheduler.AutoRestart {
		return
	}
	ctx := e.ctx
	e.restarts.Add(1)
	go func() {
		defer e.restarts.Done()
		if err := e.restart(ctx, generation); err != nil && !errors.Is(err, ErrClosed) {
			e.logger.Error("automatic restart failed", "generation", generation, "error", err)
		}
	}()
}

// restart starts a new game unless the ended generation was already replaced.
func (e *Engine) restart(ctx context.Context, ended uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	// A done session context means the process is shutting down.
	if ctx.Err() != nil || e.zoo.Generation() != ended {
		return nil
	}
	return e.newGameLocked(ctx)
}

func (e *Engine) ready() error {
	if e.isClosed() {
		return ErrClosed
	}
	if !e.started {
		return ErrNotStarted
	}
	return nil
}

func (e *Engine) isClosed() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.closed
}

// OnTick registers a tick observer on the death manager.
func (e *Engine) OnTick(fn TickObserver) (unsubscribe func()) {
	return e.deaths.OnTick(fn)
}

// OnGameEnded registers an additional GameEnded handler.
func (e *Engine) OnGameEnded(fn GameEndedHandler) (unsubscribe func()) {
	return e.deaths.OnGameEnded(fn)
}

func (e *Engine) SessionID() string               { return e.sessionID }
func (e *Engine) Zoo() *zoo.Zoo                   { return e.zoo }
func (e *Engine) DeathManager() *DeathManager     { return e.deaths }
func (e *Engine) EventLog() *events.EventLog      { return e.eventLog }
func (e *Engine) Metrics() *metrics.Collector     { return e.metrics }
func (e *Engine) Config() *config.Config          { return e.cfg }
func (e *Engine) FeedingService() *FeedingService { return e.feeding }
