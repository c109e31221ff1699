// Package animal defines the core domain entity of the zoo: an animal whose
// health decays over time and whose LifeState is derived from that health.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package animal

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
)

// Animal is a single zoo resident.
//
// Health is always within [0, 1] and LifeState always equals
// rules.Classify(Health) once a mutation returns. Mutations are serialized;
// state listeners run after the new health is visible to readers but before
// the mutating call returns. Listeners must not mutate the animal they are
// notified about.
type Animal struct {
	id           string
	species      Species
	decayRate    float64
	walkingSpeed float64
	monitor      *HealthMonitor

	writeMu sync.Mutex // held for mutation + notification
	mu      sync.RWMutex
	health  float64

	disposeOnce sync.Once
}

// New creates an animal of the given profile. Health is clamped to [0, 1].
// A zero profile threshold falls back to defaultThreshold.
func New(p Profile, health, decayRate, defaultThreshold float64) *Animal {
	threshold := p.DyingThreshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	health = rules.ClampHealth(health)
	return &Animal{
		id:           uuid.NewString(),
		species:      p.Species,
		decayRate:    decayRate,
		walkingSpeed: p.WalkingSpeed,
		health:       health,
		monitor:      newHealthMonitor(health, threshold),
	}
}

func (a *Animal) ID() string            { return a.id }
func (a *Animal) Species() Species      { return a.species }
func (a *Animal) DecayRate() float64    { return a.decayRate }
func (a *Animal) WalkingSpeed() float64 { return a.walkingSpeed }

// Monitor exposes the animal's HealthMonitor for subscriptions.
func (a *Animal) Monitor() *HealthMonitor { return a.monitor }

// Health returns the current health in [0, 1].
func (a *Animal) Health() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.health
}

// LifeState returns the classification of the current health.
func (a *Animal) LifeState() rules.LifeState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.monitor.State()
}

// Snapshot returns health and LifeState as one consistent pair.
func (a *Animal) Snapshot() (float64, rules.LifeState) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.health, a.monitor.State()
}

// CanWalk is false once the animal is Dying or Dead.
func (a *Animal) CanWalk() bool {
	return a.LifeState() == rules.Alive
}

// Decay lowers health by amount, stopping at 0. Dead animals stay at 0.
func (a *Animal) Decay(amount float64) {
	if !(amount > 0) {
		return
	}
	a.mutate(func(h float64) (float64, bool) { return h - amount, true })
}

// Feed raises health by amount, capped at 1. A Dead animal cannot be
// revived: the call is skipped and Feed reports false.
func (a *Animal) Feed(amount float64) bool {
	if !(amount > 0) {
		return false
	}
	return a.mutate(func(h float64) (float64, bool) {
		if h <= 0 {
			return h, false
		}
		return h + amount, true
	})
}

// mutate applies fn to health, reclassifies and notifies listeners of a
// class change. fn reports whether the mutation applies at all.
func (a *Animal) mutate(fn func(health float64) (float64, bool)) bool {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	next, ok := fn(a.health)
	if !ok {
		a.mu.Unlock()
		return false
	}
	a.health = rules.ClampHealth(next)
	state, listeners := a.monitor.observe(a.health)
	a.mu.Unlock()

	for _, l := range listeners {
		l(a, state)
	}
	return true
}

// Dispose releases the monitor and its subscribers. Idempotent.
func (a *Animal) Dispose() {
	a.disposeOnce.Do(a.monitor.Close)
}

func (a *Animal) String() string {
	health, state := a.Snapshot()
	return fmt.Sprintf("%s %s (%s, %s)", a.species, a.id[:8], rules.FormatPercent(health), state)
}
