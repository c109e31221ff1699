// Package zoo defines the population: every animal in the simulation, grouped by species.
// This package is PURE and must NOT import any infrastructure packages.
package zoo

import (
	"iter"
	"sync"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
)

// Counts tallies animals per LifeState.
type Counts struct {
	Alive int `json:"alive"`
	Dying int `json:"dying"`
	Dead  int `json:"dead"`
}

// Total is the number of animals counted.
func (c Counts) Total() int {
	return c.Alive + c.Dying + c.Dead
}

// Zoo holds the current population. Within a species, animals keep the
// order they were added in; species are visited in animal.AllSpecies order.
type Zoo struct {
	mu         sync.RWMutex
	groups     map[animal.Species][]*animal.Animal
	generation uint64
}

// New creates a zoo holding animals. A populated zoo starts at generation 1,
// an empty one at generation 0 so that its first ReplaceAll yields 1.
func New(animals ...*animal.Animal) *Zoo {
	z := &Zoo{groups: group(animals)}
	if len(animals) > 0 {
		z.generation = 1
	}
	return z
}

func group(animals []*animal.Animal) map[animal.Species][]*animal.Animal {
	groups := make(map[animal.Species][]*animal.Animal, len(animal.AllSpecies))
	for _, a := range animals {
		if a == nil {
			continue
		}
		groups[a.Species()] = append(groups[a.Species()], a)
	}
	return groups
}

// Generation identifies the current population lifetime. It changes on every ReplaceAll.
func (z *Zoo) Generation() uint64 {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.generation
}

// All yields every animal in stable order. The view is captured when
// iteration starts; yielding happens without holding the zoo lock.
func (z *Zoo) All() iter.Seq[*animal.Animal] {
	return func(yield func(*animal.Animal) bool) {
		z.mu.RLock()
		groups := make([][]*animal.Animal, 0, len(animal.AllSpecies))
		for _, s := range animal.AllSpecies {
			if g := z.groups[s]; len(g) > 0 {
				groups = append(groups, g)
			}
		}
		z.mu.RUnlock()

		for _, g := range groups {
			for _, a := range g {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// Animals returns a copy of All as a slice.
func (z *Zoo) Animals() []*animal.Animal {
	out := make([]*animal.Animal, 0, z.Len())
	for a := range z.All() {
		out = append(out, a)
	}
	return out
}

// BySpecies returns a copy of one species group.
func (z *Zoo) BySpecies(s animal.Species) []*animal.Animal {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return append([]*animal.Animal(nil), z.groups[s]...)
}

// Len is the number of animals physically present, dead or not.
func (z *Zoo) Len() int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	n := 0
	for _, g := range z.groups {
		n += len(g)
	}
	return n
}

// Counts tallies the population by LifeState.
func (z *Zoo) Counts() Counts {
	var c Counts
	for a := range z.All() {
		switch a.LifeState() {
		case rules.Alive:
			c.Alive++
		case rules.Dying:
			c.Dying++
		case rules.Dead:
			c.Dead++
		}
	}
	return c
}

// IsEmpty reports whether every animal is Dead. A zoo without animals is empty.
func (z *Zoo) IsEmpty() bool {
	for a := range z.All() {
		if a.LifeState() != rules.Dead {
			return false
		}
	}
	return true
}

// ReplaceAll disposes the current population and installs animals as a new
// generation. It returns the new generation.
func (z *Zoo) ReplaceAll(animals []*animal.Animal) uint64 {
	z.mu.Lock()
	defer z.mu.Unlock()

	for _, g := range z.groups {
		for _, a := range g {
			a.Dispose()
		}
	}
	z.groups = group(animals)
	z.generation++
	return z.generation
}

// Remove takes one animal out of the zoo and disposes it.
func (z *Zoo) Remove(id string) (*animal.Animal, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()

	for s, g := range z.groups {
		for i, a := range g {
			if a.ID() != id {
				continue
			}
			rest := make([]*animal.Animal, 0, len(g)-1)
			rest = append(rest, g[:i]...)
			rest = append(rest, g[i+1:]...)
			z.groups[s] = rest
			a.Dispose()
			return a, true
		}
	}
	return nil, false
}

// Find looks up an animal by id.
func (z *Zoo) Find(id string) (*animal.Animal, bool) {
	for a := range z.All() {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}
