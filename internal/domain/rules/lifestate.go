// Package rules contains the pure calculation logic for the zoo simulation.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"fmt"
	"math"
)

// DefaultDyingThreshold is the health at or below which an animal is Dying.
const DefaultDyingThreshold = 0.30

// LifeState classifies an animal by its current health.
type LifeState uint8

const (
	Dead LifeState = iota
	Dying
	Alive
)

// AllLifeStates lists every state from least to most alive.
var AllLifeStates = [...]LifeState{Dead, Dying, Alive}

func (s LifeState) String() string {
	switch s {
	case Alive:
		return "Alive"
	case Dying:
		return "Dying"
	case Dead:
		return "Dead"
	}
	return fmt.Sprintf("LifeState(%d)", uint8(s))
}

// Color is the display color headless clients use for a state.
func (s LifeState) Color() string {
	switch s {
	case Alive:
		return "green"
	case Dying:
		return "red"
	case Dead:
		return "black"
	}
	return "gray"
}

// MarshalText renders the state by name so JSON payloads stay readable.
func (s LifeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *LifeState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Alive":
		*s = Alive
	case "Dying":
		*s = Dying
	case "Dead":
		*s = Dead
	default:
		return fmt.Errorf("unknown life state %q", b)
	}
	return nil
}

// Classify maps a health value to its LifeState.
// NaN is treated as no health at all.
func Classify(health, dyingThreshold float64) LifeState {
	switch {
	case math.IsNaN(health) || health <= 0:
		return Dead
	case health <= dyingThreshold:
		return Dying
	default:
		return Alive
	}
}

// ClampHealth bounds a health value to [0, 1].
func ClampHealth(h float64) float64 {
	switch {
	case math.IsNaN(h) || h < 0:
		return 0
	case h > 1:
		return 1
	}
	return h
}

// FormatPercent renders a health value the way the zoo board shows it, e.g. "87.50 %".
func FormatPercent(h float64) string {
	return fmt.Sprintf("%.2f %%", h*100)
}
