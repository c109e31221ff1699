package animal

import "fmt"

// Species represents the kind of animal.
type Species string

const (
	SpeciesElephant Species = "Elephant"
	SpeciesGiraffe  Species = "Giraffe"
	SpeciesMonkey   Species = "Monkey"
)

// AllSpecies is the closed species set in display order.
var AllSpecies = []Species{SpeciesElephant, SpeciesGiraffe, SpeciesMonkey}

// Valid reports whether s belongs to the closed species set.
func (s Species) Valid() bool {
	for _, known := range AllSpecies {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSpecies resolves a species name, case-sensitively.
func ParseSpecies(name string) (Species, error) {
	s := Species(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown species %q", name)
	}
	return s, nil
}

// Profile holds the species-specific tuning for new animals.
type Profile struct {
	Species        Species
	DecayMin       float64 // Lower bound of the per-tick decay band
	DecayMax       float64 // Upper bound of the per-tick decay band
	WalkingSpeed   float64
	DyingThreshold float64 // 0 = use the global threshold
}

// DefaultProfiles returns the built-in profile for every species.
func DefaultProfiles() map[Species]Profile {
	return map[Species]Profile{
		SpeciesElephant: {Species: SpeciesElephant, DecayMin: 0.05, DecayMax: 0.15, WalkingSpeed: 0.6},
		SpeciesGiraffe:  {Species: SpeciesGiraffe, DecayMin: 0.08, DecayMax: 0.20, WalkingSpeed: 1.0},
		SpeciesMonkey:   {Species: SpeciesMonkey, DecayMin: 0.10, DecayMax: 0.25, WalkingSpeed: 1.6},
	}
}

// Validate checks that the decay band is usable.
func (p Profile) Validate() error {
	if !p.Species.Valid() {
		return fmt.Errorf("profile: unknown species %q", p.Species)
	}
	if p.DecayMin <= 0 || p.DecayMax < p.DecayMin {
		return fmt.Errorf("profile %s: decay band [%v, %v] must be positive and ordered", p.Species, p.DecayMin, p.DecayMax)
	}
	if p.WalkingSpeed < 0 {
		return fmt.Errorf("profile %s: walking speed must not be negative", p.Species)
	}
	if p.DyingThreshold < 0 || p.DyingThreshold >= 1 {
		return fmt.Errorf("profile %s: dying threshold %v out of range", p.Species, p.DyingThreshold)
	}
	return nil
}
