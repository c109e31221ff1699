package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
)

func seededConfig(seed uint64) *config.Config {
	cfg := config.Default()
	cfg.Population.Seed = seed
	return cfg
}

func TestGenerateFive(t *testing.T) {
	cfg := seededConfig(42)
	g := NewGenerator(cfg)

	z, err := g.Generate(context.Background(), 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if z.Len() != 5 {
		t.Fatalf("expected 5 animals, got %d", z.Len())
	}

	for a := range z.All() {
		if a.LifeState() != rules.Alive {
			t.Errorf("%s should start Alive", a)
		}
		h := a.Health()
		if h < cfg.Population.InitialHealthMin || h > cfg.Population.InitialHealthMax {
			t.Errorf("%s health %v outside [%v, %v]", a, h, cfg.Population.InitialHealthMin, cfg.Population.InitialHealthMax)
		}
		p := cfg.Derived.Profiles[a.Species()]
		if a.DecayRate() < p.DecayMin || a.DecayRate() > p.DecayMax {
			t.Errorf("%s decay rate %v outside the %s band", a, a.DecayRate(), a.Species())
		}
		if a.WalkingSpeed() != p.WalkingSpeed {
			t.Errorf("%s walking speed %v, want %v", a, a.WalkingSpeed(), p.WalkingSpeed)
		}
	}
}

func TestSpawnRoundRobin(t *testing.T) {
	g := NewGenerator(seededConfig(1))
	animals, err := g.Spawn(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	for i, a := range animals {
		want := animal.AllSpecies[i%len(animal.AllSpecies)]
		if a.Species() != want {
			t.Errorf("animal %d: got %s, want %s", i, a.Species(), want)
		}
	}
}

func TestSpawnRejectsInvalidCount(t *testing.T) {
	g := NewGenerator(seededConfig(1))
	for _, n := range []int{0, -1, -100} {
		if _, err := g.Spawn(context.Background(), n); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Spawn(%d): expected ErrInvalidCount, got %v", n, err)
		}
		if _, err := g.Generate(context.Background(), n); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Generate(%d): expected ErrInvalidCount, got %v", n, err)
		}
	}
}

func TestSpawnHonorsCancellation(t *testing.T) {
	g := NewGenerator(seededConfig(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Spawn(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	a, _ := NewGenerator(seededConfig(99)).Spawn(context.Background(), 6)
	b, _ := NewGenerator(seededConfig(99)).Spawn(context.Background(), 6)

	for i := range a {
		if a[i].Health() != b[i].Health() || a[i].DecayRate() != b[i].DecayRate() {
			t.Errorf("animal %d differs between equally seeded generators", i)
		}
	}
}
