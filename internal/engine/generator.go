package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/zoo"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
)

// ErrInvalidCount is returned when asked for a population of zero or fewer animals.
var ErrInvalidCount = errors.New("population count must be positive")

// Generator builds fresh populations with randomized health and decay rates.
type Generator struct {
	profiles         map[animal.Species]animal.Profile
	healthMin        float64
	healthMax        float64
	defaultThreshold float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator from the population, life and species
// configuration. A zero population seed seeds from the clock.
func NewGenerator(cfg *config.Config) *Generator {
	seed := cfg.Population.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		profiles:         cfg.Derived.Profiles,
		healthMin:        cfg.Population.InitialHealthMin,
		healthMax:        cfg.Population.InitialHealthMax,
		defaultThreshold: cfg.Life.DyingThreshold,
		rng:              rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Spawn creates count animals, assigning species round-robin in
// animal.AllSpecies order.
func (g *Generator) Spawn(ctx context.Context, count int) ([]*animal.Animal, error) {
	if count <= 0 {
		return nil, fmt.Errorf("spawn %d animals: %w", count, ErrInvalidCount)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	animals := make([]*animal.Animal, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("spawn interrupted after %d animals: %w", i, err)
		}
		s := animal.AllSpecies[i%len(animal.AllSpecies)]
		p := g.profiles[s]
		health := g.uniform(g.healthMin, g.healthMax)
		decay := g.uniform(p.DecayMin, p.DecayMax)
		animals = append(animals, animal.New(p, health, decay, g.defaultThreshold))
	}
	return animals, nil
}

// Generate creates a new zoo holding count freshly spawned animals.
func (g *Generator) Generate(ctx context.Context, count int) (*zoo.Zoo, error) {
	animals, err := g.Spawn(ctx, count)
	if err != nil {
		return nil, err
	}
	return zoo.New(animals...), nil
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
