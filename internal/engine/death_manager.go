package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/zoo"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

// TickReport describes one finished decay pass.
type TickReport struct {
	Tick       uint64
	Generation uint64
	Forced     bool
	Counts     zoo.Counts
	Healths    []float64 // Every animal's health after the pass, in zoo order
	Latency    time.Duration
	Ended      bool // The pass left a non-empty zoo fully Dead
}

// TickObserver is called after every decay pass, on the goroutine that ran it.
// Observers must not call Stop.
type TickObserver func(TickReport)

// GameEndedHandler is called once per zoo generation when every animal is Dead.
type GameEndedHandler func(generation uint64)

// DeathManager is the scheduler that decays the population.
//
// It is either Running or Stopped. While Running, one goroutine applies a
// decay pass every tick interval. Stop waits for that goroutine to exit, so
// no scheduled pass runs after Stop returns.
type DeathManager struct {
	zoo       *zoo.Zoo
	interval  time.Duration
	tickScale float64
	jumpScale float64
	eventLog  *events.EventLog
	logger    *logger.Logger
	metrics   *metrics.Collector

	// running, stopCh and doneCh change together
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	tickMu    sync.Mutex // serializes scheduled and forced passes
	tickCount atomic.Uint64

	endedMu  sync.Mutex
	endedGen uint64

	obsMu         sync.RWMutex
	nextObs       int
	tickObservers map[int]TickObserver
	endedHandlers map[int]GameEndedHandler
}

// NewDeathManager creates a stopped manager for z.
func NewDeathManager(z *zoo.Zoo, cfg config.SchedulerConfig, eventLog *events.EventLog, log *logger.Logger) *DeathManager {
	return &DeathManager{
		zoo:           z,
		interval:      cfg.TickInterval,
		tickScale:     cfg.TickScale,
		jumpScale:     cfg.JumpScale,
		eventLog:      eventLog,
		logger:        log,
		metrics:       metrics.Get(),
		tickObservers: make(map[int]TickObserver),
		endedHandlers: make(map[int]GameEndedHandler),
	}
}

// Run starts the periodic loop. It is a no-op while Running.
func (dm *DeathManager) Run() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.running {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	dm.running = true
	dm.stopCh, dm.doneCh = stop, done

	go dm.loop(stop, done)
	dm.logger.Debug("death manager running", "interval", dm.interval)
}

// Stop cancels the periodic loop and waits for it to exit. It is a no-op
// while Stopped.
func (dm *DeathManager) Stop() {
	dm.mu.Lock()
	if !dm.running {
		dm.mu.Unlock()
		return
	}
	stop, done := dm.stopCh, dm.doneCh
	dm.running = false
	dm.stopCh, dm.doneCh = nil, nil
	close(stop)
	dm.mu.Unlock()

	<-done
	dm.logger.Debug("death manager stopped")
}

// IsRunning reports whether the periodic loop is active.
func (dm *DeathManager) IsRunning() bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.running
}

// TickCount returns the number of decay passes applied so far.
func (dm *DeathManager) TickCount() uint64 {
	return dm.tickCount.Load()
}

func (dm *DeathManager) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(dm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Both cases may be ready at once; Stop wins.
			select {
			case <-stop:
				return
			default:
			}

			report := dm.tick(false)
			if !report.Ended {
				continue
			}

			dm.mu.Lock()
			if dm.stopCh == stop {
				dm.running = false
				dm.stopCh, dm.doneCh = nil, nil
			}
			dm.mu.Unlock()

			go dm.raiseGameEnded(report.Generation)
			return
		}
	}
}

// ForceTick applies one decay pass immediately, scaled by the jump scale,
// and reports whether the zoo is now fully Dead. Callers stop the manager
// first and then either Run it again or call InvokeGameEnded.
func (dm *DeathManager) ForceTick() (ended bool) {
	return dm.tick(true).Ended
}

// InvokeGameEnded raises GameEnded for the current generation if every
// animal is Dead and it has not been raised yet. It reports whether
// handlers were called.
func (dm *DeathManager) InvokeGameEnded() bool {
	gen := dm.zoo.Generation()
	if dm.zoo.Len() == 0 || !dm.zoo.IsEmpty() {
		return false
	}
	return dm.raiseGameEnded(gen)
}

func (dm *DeathManager) raiseGameEnded(generation uint64) bool {
	dm.endedMu.Lock()
	if generation <= dm.endedGen {
		dm.endedMu.Unlock()
		return false
	}
	dm.endedGen = generation
	dm.endedMu.Unlock()

	dm.logger.Event(string(events.EventTypeGameEnded), events.ActorDeathManager,
		fmt.Sprintf("generation %d fully dead after %d ticks", generation, dm.TickCount()))

	dm.obsMu.RLock()
	handlers := make([]GameEndedHandler, 0, len(dm.endedHandlers))
	for _, h := range dm.endedHandlers {
		handlers = append(handlers, h)
	}
	dm.obsMu.RUnlock()

	for _, h := range handlers {
		h(generation)
	}
	return true
}

// tick applies one decay pass. A pass over a zoo without animals is a no-op.
func (dm *DeathManager) tick(forced bool) TickReport {
	dm.tickMu.Lock()
	defer dm.tickMu.Unlock()

	if dm.zoo.Len() == 0 {
		return TickReport{Generation: dm.zoo.Generation(), Forced: forced}
	}

	start := time.Now()
	scale := dm.tickScale
	if forced {
		scale = dm.jumpScale
	}

	report := TickReport{Generation: dm.zoo.Generation(), Forced: forced}
	for a := range dm.zoo.All() {
		if a.LifeState() != rules.Dead {
			a.Decay(a.DecayRate() * scale)
		}
		health, state := a.Snapshot()
		report.Healths = append(report.Healths, health)
		switch state {
		case rules.Alive:
			report.Counts.Alive++
		case rules.Dying:
			report.Counts.Dying++
		default:
			report.Counts.Dead++
		}
	}

	report.Tick = dm.tickCount.Add(1)
	report.Ended = report.Counts.Total() > 0 && report.Counts.Alive == 0 && report.Counts.Dying == 0
	report.Latency = time.Since(start)

	eventType := events.EventTypeTimeTick
	if forced {
		eventType = events.EventTypeTimeJump
	}
	dm.eventLog.Append(events.GameEvent{
		Type:       eventType,
		ActorID:    events.ActorDeathManager,
		Generation: report.Generation,
		Payload: events.TickPayload{
			TickNumber: report.Tick,
			Forced:     forced,
			Alive:      report.Counts.Alive,
			Dying:      report.Counts.Dying,
			Dead:       report.Counts.Dead,
			Ended:      report.Ended,
		},
	})
	dm.metrics.RecordTick(report.Latency, forced)
	dm.logger.Debug("decay pass", "tick", report.Tick, "forced", forced,
		"alive", report.Counts.Alive, "dying", report.Counts.Dying, "dead", report.Counts.Dead)

	dm.obsMu.RLock()
	observers := make([]TickObserver, 0, len(dm.tickObservers))
	for _, o := range dm.tickObservers {
		observers = append(observers, o)
	}
	dm.obsMu.RUnlock()
	for _, o := range observers {
		o(report)
	}
	return report
}

// OnTick registers an observer for every decay pass.
func (dm *DeathManager) OnTick(fn TickObserver) (unsubscribe func()) {
	dm.obsMu.Lock()
	defer dm.obsMu.Unlock()
	id := dm.nextObs
	dm.nextObs++
	dm.tickObservers[id] = fn
	return func() {
		dm.obsMu.Lock()
		delete(dm.tickObservers, id)
		dm.obsMu.Unlock()
	}
}

// OnGameEnded registers a GameEnded handler. Handlers run outside the tick.
func (dm *DeathManager) OnGameEnded(fn GameEndedHandler) (unsubscribe func()) {
	dm.obsMu.Lock()
	defer dm.obsMu.Unlock()
	id := dm.nextObs
	dm.nextObs++
	dm.endedHandlers[id] = fn
	return func() {
		dm.obsMu.Lock()
		delete(dm.endedHandlers, id)
		dm.obsMu.Unlock()
	}
}
