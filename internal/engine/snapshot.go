package engine

import (
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/zoo"
)

// AnimalView is the read-only picture of one animal handed to clients.
type AnimalView struct {
	ID           string          `json:"id"`
	Species      animal.Species  `json:"species"`
	Health       float64         `json:"health"`
	Percent      string          `json:"percent"`
	State        rules.LifeState `json:"state"`
	Color        string          `json:"color"`
	CanWalk      bool            `json:"can_walk"`
	WalkingSpeed float64         `json:"walking_speed"`
	DecayRate    float64         `json:"decay_rate"`
}

// SpeciesGroup lists the animals of one species in generation order.
type SpeciesGroup struct {
	Species animal.Species `json:"species"`
	Animals []AnimalView   `json:"animals"`
}

// ZooSnapshot is a consistent-enough view of the session for rendering.
// Each animal's health and state are read together; different animals may
// be read on either side of a concurrent tick.
type ZooSnapshot struct {
	SessionID  string         `json:"session_id"`
	Generation uint64         `json:"generation"`
	Running    bool           `json:"running"`
	Ticks      uint64         `json:"ticks"`
	IsEmpty    bool           `json:"is_empty"`
	Counts     zoo.Counts     `json:"counts"`
	Groups     []SpeciesGroup `json:"groups"`
}

// Snapshot returns the current state of the session.
func (e *Engine) Snapshot() ZooSnapshot {
	snap := ZooSnapshot{
		SessionID:  e.sessionID,
		Generation: e.zoo.Generation(),
		Running:    e.deaths.IsRunning(),
		Ticks:      e.deaths.TickCount(),
	}

	empty := true
	for _, s := range animal.AllSpecies {
		members := e.zoo.BySpecies(s)
		if len(members) == 0 {
			continue
		}
		group := SpeciesGroup{Species: s, Animals: make([]AnimalView, 0, len(members))}
		for _, a := range members {
			v := viewOf(a)
			switch v.State {
			case rules.Alive:
				snap.Counts.Alive++
				empty = false
			case rules.Dying:
				snap.Counts.Dying++
				empty = false
			default:
				snap.Counts.Dead++
			}
			group.Animals = append(group.Animals, v)
		}
		snap.Groups = append(snap.Groups, group)
	}
	snap.IsEmpty = empty
	return snap
}

func viewOf(a *animal.Animal) AnimalView {
	health, state := a.Snapshot()
	return AnimalView{
		ID:           a.ID(),
		Species:      a.Species(),
		Health:       health,
		Percent:      rules.FormatPercent(health),
		State:        state,
		Color:        state.Color(),
		CanWalk:      state == rules.Alive,
		WalkingSpeed: a.WalkingSpeed(),
		DecayRate:    a.DecayRate(),
	}
}
