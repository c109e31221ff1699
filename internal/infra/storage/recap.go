package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
)

// RecapEvent is a human-readable line of a game's history.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"`
	Impact    string `json:"impact"` // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// Recapper turns journaled events into a readable account of one game.
type Recapper struct {
	eventRepo EventRepository
}

// NewRecapper creates a recapper over an event repository.
func NewRecapper(eventRepo EventRepository) *Recapper {
	return &Recapper{eventRepo: eventRepo}
}

// GenerateRecap lists everything but plain ticks that happened to one
// generation of a session.
func (r *Recapper) GenerateRecap(ctx context.Context, sessionID string, generation uint64) ([]RecapEvent, error) {
	records, err := r.eventRepo.List(ctx, EventQuery{SessionID: sessionID, Generation: generation})
	if err != nil {
		return nil, fmt.Errorf("failed to load game events: %w", err)
	}

	var recap []RecapEvent
	for _, e := range records {
		if e.EventType == string(events.EventTypeTimeTick) {
			continue
		}

		var payload map[string]interface{}
		if len(e.Payload) > 0 {
			// A payload that is not an object just yields a generic summary.
			_ = json.Unmarshal(e.Payload, &payload)
		}

		recap = append(recap, RecapEvent{
			Timestamp: e.Timestamp.Format("15:04:05"),
			EventType: e.EventType,
			Summary:   summarizeEvent(e, payload),
			Impact:    determineImpact(e, payload),
		})
	}
	return recap, nil
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e EventRecord, payload map[string]interface{}) string {
	switch events.EventType(e.EventType) {
	case events.EventTypeZooGenerated:
		return fmt.Sprintf("A new zoo opened with %v animals.", payload["population"])
	case events.EventTypeTimeJump:
		return fmt.Sprintf("Time jumped ahead (tick %v).", payload["tick_number"])
	case events.EventTypeLifeStateChanged:
		return fmt.Sprintf("A %v is now %v.", payload["species"], payload["state"])
	case events.EventTypeAnimalsFed:
		return fmt.Sprintf("%v animals were fed.", payload["fed"])
	case events.EventTypeAnimalRemoved:
		return fmt.Sprintf("A dead %v was taken away.", payload["species"])
	case events.EventTypeGameEnded:
		return fmt.Sprintf("Every animal died after %v ticks.", payload["ticks"])
	default:
		return "Something happened in the zoo."
	}
}

// determineImpact classifies the event impact.
func determineImpact(e EventRecord, payload map[string]interface{}) string {
	switch events.EventType(e.EventType) {
	case events.EventTypeAnimalsFed:
		return "POSITIVE"
	case events.EventTypeLifeStateChanged:
		if payload["state"] == "Alive" {
			return "POSITIVE"
		}
		return "NEGATIVE"
	case events.EventTypeAnimalRemoved, events.EventTypeGameEnded:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}
