package engine

import (
	"sync"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/zoo"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

// Reaper takes Dead animals out of the zoo once a grace period has passed.
type Reaper struct {
	zoo      *zoo.Zoo
	grace    time.Duration
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewReaper creates a reaper. A zero grace period disables removal.
func NewReaper(z *zoo.Zoo, grace time.Duration, eventLog *events.EventLog, log *logger.Logger) *Reaper {
	return &Reaper{
		zoo:      z,
		grace:    grace,
		eventLog: eventLog,
		logger:   log,
		metrics:  metrics.Get(),
		pending:  make(map[string]*time.Timer),
	}
}

// Watch schedules the removal of a once it dies.
func (r *Reaper) Watch(a *animal.Animal) {
	if r.grace <= 0 {
		return
	}
	a.Monitor().Subscribe(func(a *animal.Animal, state rules.LifeState) {
		if state == rules.Dead {
			r.schedule(a)
		}
	})
}

func (r *Reaper) schedule(a *animal.Animal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if _, ok := r.pending[a.ID()]; ok {
		return
	}
	id, species, gen := a.ID(), a.Species(), r.zoo.Generation()
	r.pending[id] = time.AfterFunc(r.grace, func() { r.remove(id, species, gen) })
}

func (r *Reaper) remove(id string, species animal.Species, generation uint64) {
	r.mu.Lock()
	if _, ok := r.pending[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.pending, id)
	r.mu.Unlock()

	if _, ok := r.zoo.Remove(id); !ok {
		return
	}
	r.metrics.RecordRemoval()
	r.eventLog.Append(events.GameEvent{
		Type:       events.EventTypeAnimalRemoved,
		ActorID:    events.ActorReaper,
		TargetID:   id,
		Generation: generation,
		Payload:    events.RemovalPayload{Species: string(species)},
	})
	r.logger.Debug("dead animal removed", "species", species, "id", id)
}

// Pending returns the number of scheduled removals.
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Reset cancels every scheduled removal.
func (r *Reaper) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.pending {
		t.Stop()
		delete(r.pending, id)
	}
}

// Stop cancels every scheduled removal and ignores later deaths.
func (r *Reaper) Stop() {
	r.Reset()
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}
