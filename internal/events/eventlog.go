// Package events provides the in-memory, append-only log of everything that
// happens to the zoo. Network clients, the audit journal and the history
// endpoint all read from it.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeZooGenerated     EventType = "ZOO_GENERATED"
	EventTypeTimeTick         EventType = "TIME_TICK"
	EventTypeTimeJump         EventType = "TIME_JUMP"
	EventTypeLifeStateChanged EventType = "LIFE_STATE_CHANGED"
	EventTypeAnimalsFed       EventType = "ANIMALS_FED"
	EventTypeAnimalRemoved    EventType = "ANIMAL_REMOVED"
	EventTypeGameEnded        EventType = "GAME_ENDED"
)

// Actor ids used by the engine when it is the source of an event.
const (
	ActorDeathManager = "DEATH_MANAGER"
	ActorFeeding      = "FEEDING_SERVICE"
	ActorGenerator    = "GENERATOR"
	ActorReaper       = "REAPER"
	ActorMonitor      = "HEALTH_MONITOR"
)

// GameEvent represents an immutable record of something that happened.
type GameEvent struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       EventType   `json:"type"`
	ActorID    string      `json:"actor_id"`            // Who caused it
	TargetID   string      `json:"target_id,omitempty"` // Which animal was affected (optional)
	Payload    interface{} `json:"payload,omitempty"`   // Event-specific data
	Generation uint64      `json:"generation"`          // Population lifetime it belongs to
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventFilter selects events from the log. Zero fields match everything.
type EventFilter struct {
	Type       EventType
	Generation uint64
	Limit      int // Most recent N after filtering
}

// Match reports whether e passes the type and generation filters.
func (f EventFilter) Match(e GameEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Generation != 0 && e.Generation != f.Generation {
		return false
	}
	return true
}

// EventLog is the in-memory append-only log of events. With a retention
// set, only the most recent events stay in memory; offsets passed to Since
// and Next keep counting every event ever appended.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	dropped   int // events trimmed from the front of events
	retain    int // 0 keeps everything
	persister EventPersister
	onError   func(error)
	wg        sync.WaitGroup
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// SetRetention bounds how many events stay in memory. 0 keeps everything.
func (el *EventLog) SetRetention(n int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if n < 0 {
		n = 0
	}
	el.retain = n
	if n > 0 && len(el.events) > n {
		el.trim()
	}
}

// trim compacts events down to the retention. Append only calls it once
// the slice holds twice the retention, so appends stay amortized O(1).
func (el *EventLog) trim() {
	drop := len(el.events) - el.retain
	kept := make([]GameEvent, el.retain, 2*el.retain)
	copy(kept, el.events[drop:])
	el.events = kept
	el.dropped += drop
}

// visible returns the retained window and the absolute index of its first event.
func (el *EventLog) visible() ([]GameEvent, int) {
	if el.retain > 0 && len(el.events) > el.retain {
		skip := len(el.events) - el.retain
		return el.events[skip:], el.dropped + skip
	}
	return el.events, el.dropped
}

// OnPersistError registers a callback for failed persister writes.
func (el *EventLog) OnPersistError(fn func(error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Append adds a new event to the log, filling ID and Timestamp when unset.
// Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	if el.retain > 0 && len(el.events) >= 2*el.retain {
		el.trim()
	}
	persister, onError := el.persister, el.onError
	if persister != nil {
		el.wg.Add(1)
	}
	el.mu.Unlock()

	if persister != nil {
		// Write through without holding up the simulation.
		go func(e GameEvent) {
			defer el.wg.Done()
			if err := persister.Append(e); err != nil && onError != nil {
				onError(err)
			}
		}(event)
	}
	return event
}

// Flush waits for pending persister writes.
func (el *EventLog) Flush() {
	el.wg.Wait()
}

// Len returns the number of events appended so far, including any that
// retention has dropped.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.dropped + len(el.events)
}

// Replay returns a copy of the events still held in memory.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	evs, _ := el.visible()
	return append([]GameEvent(nil), evs...)
}

// Since returns a copy of the events appended after the first offset events.
// Events already dropped by retention are skipped.
func (el *EventLog) Since(offset int) []GameEvent {
	evs, _ := el.Next(offset)
	return evs
}

// Next is Since plus the offset to pass on the following call.
func (el *EventLog) Next(offset int) ([]GameEvent, int) {
	el.mu.RLock()
	defer el.mu.RUnlock()
	evs, base := el.visible()
	total := base + len(evs)
	if offset < base {
		offset = base
	}
	if offset >= total {
		return nil, total
	}
	return append([]GameEvent(nil), evs[offset-base:]...), total
}

// Filter returns the events matching f, oldest first.
func (el *EventLog) Filter(f EventFilter) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	evs, _ := el.visible()
	for _, e := range evs {
		if f.Match(e) {
			result = append(result, e)
		}
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
