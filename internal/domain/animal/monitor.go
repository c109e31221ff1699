package animal

import (
	"sync"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
)

// StateListener receives the new LifeState of an animal after a boundary crossing.
type StateListener func(a *Animal, state rules.LifeState)

// HealthMonitor tracks the LifeState of one animal and notifies subscribers
// when the classification changes. It does not notify on changes that stay
// within the same class.
type HealthMonitor struct {
	threshold float64

	mu          sync.Mutex
	state       rules.LifeState
	nextID      int
	subscribers map[int]StateListener
	closed      bool
}

func newHealthMonitor(health, threshold float64) *HealthMonitor {
	return &HealthMonitor{
		threshold:   threshold,
		state:       rules.Classify(health, threshold),
		subscribers: make(map[int]StateListener),
	}
}

// State returns the last computed classification.
func (m *HealthMonitor) State() rules.LifeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Threshold returns the dying threshold this monitor classifies with.
func (m *HealthMonitor) Threshold() float64 {
	return m.threshold
}

// Subscribe registers fn and returns a func that removes it.
// Subscribing to a closed monitor is a no-op.
func (m *HealthMonitor) Subscribe(fn StateListener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || fn == nil {
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// observe reclassifies health. It returns the listeners to notify, which is
// empty unless the class changed. Called with the animal's lock held.
func (m *HealthMonitor) observe(health float64) (rules.LifeState, []StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := rules.Classify(health, m.threshold)
	if next == m.state {
		return next, nil
	}
	m.state = next
	if m.closed || len(m.subscribers) == 0 {
		return next, nil
	}

	listeners := make([]StateListener, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		listeners = append(listeners, fn)
	}
	return next, listeners
}

// Close drops every subscriber. Safe to call more than once.
func (m *HealthMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	clear(m.subscribers)
}
