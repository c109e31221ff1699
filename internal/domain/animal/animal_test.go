package animal

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
)

func newTestAnimal(health float64) *Animal {
	p := DefaultProfiles()[SpeciesMonkey]
	return New(p, health, 0.1, rules.DefaultDyingThreshold)
}

func TestNewAnimalDefaults(t *testing.T) {
	a := New(DefaultProfiles()[SpeciesElephant], 1.4, 0.12, rules.DefaultDyingThreshold)

	if a.Health() != 1 {
		t.Errorf("expected initial health clamped to 1, got %v", a.Health())
	}
	if a.LifeState() != rules.Alive {
		t.Errorf("expected Alive, got %v", a.LifeState())
	}
	if !a.CanWalk() {
		t.Errorf("expected a healthy elephant to walk")
	}
	if a.WalkingSpeed() != 0.6 {
		t.Errorf("expected elephant walking speed 0.6, got %v", a.WalkingSpeed())
	}
	if a.ID() == "" || a.ID() == newTestAnimal(1).ID() {
		t.Errorf("expected a unique non-empty id, got %q", a.ID())
	}
}

func TestProfileThresholdOverride(t *testing.T) {
	p := DefaultProfiles()[SpeciesGiraffe]
	p.DyingThreshold = 0.5
	a := New(p, 0.45, 0.1, rules.DefaultDyingThreshold)

	if a.LifeState() != rules.Dying {
		t.Errorf("expected Dying under a 0.5 threshold, got %v", a.LifeState())
	}
	if a.CanWalk() {
		t.Errorf("a Dying giraffe must not walk")
	}
}

func TestDecayClampsAtZero(t *testing.T) {
	a := newTestAnimal(0.2)
	a.Decay(0.5)
	if a.Health() != 0 {
		t.Fatalf("expected health 0, got %v", a.Health())
	}
	if a.LifeState() != rules.Dead {
		t.Fatalf("expected Dead, got %v", a.LifeState())
	}

	// Further decay stays at the floor.
	a.Decay(0.5)
	if a.Health() != 0 || a.LifeState() != rules.Dead {
		t.Errorf("expected a corpse to stay at 0/Dead, got %v/%v", a.Health(), a.LifeState())
	}
}

func TestFeedDeadAnimalIsNoOp(t *testing.T) {
	for _, boost := range []float64{0.01, 0.2, 1, 50} {
		a := newTestAnimal(0.1)
		a.Decay(1)

		if a.Feed(boost) {
			t.Errorf("Feed(%v) on a dead animal reported success", boost)
		}
		if a.Health() != 0 || a.LifeState() != rules.Dead {
			t.Errorf("Feed(%v) revived a dead animal: %v/%v", boost, a.Health(), a.LifeState())
		}
	}
}

func TestFeedCapsAtOne(t *testing.T) {
	a := newTestAnimal(0.9)
	if !a.Feed(0.5) {
		t.Fatalf("expected feeding a live animal to apply")
	}
	if a.Health() != 1 {
		t.Errorf("expected health capped at 1, got %v", a.Health())
	}
}

func TestFeedRevivesDying(t *testing.T) {
	a := newTestAnimal(0.25)
	if a.LifeState() != rules.Dying {
		t.Fatalf("expected Dying, got %v", a.LifeState())
	}
	a.Feed(0.2)
	if a.LifeState() != rules.Alive {
		t.Errorf("expected feeding to bring a Dying animal back to Alive, got %v", a.LifeState())
	}
}

func TestHealthStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	a := newTestAnimal(0.7)

	for i := 0; i < 5000; i++ {
		amount := rng.Float64() * 0.6
		if rng.IntN(2) == 0 {
			a.Decay(amount)
		} else {
			a.Feed(amount)
		}

		h, state := a.Snapshot()
		if h < 0 || h > 1 {
			t.Fatalf("step %d: health out of bounds: %v", i, h)
		}
		if state != rules.Classify(h, rules.DefaultDyingThreshold) {
			t.Fatalf("step %d: state %v disagrees with health %v", i, state, h)
		}
	}
}

func TestMonitorNotifiesOnlyOnBoundaryCrossing(t *testing.T) {
	healthy := newTestAnimal(0.9)
	quiet := 0
	healthy.Monitor().Subscribe(func(*Animal, rules.LifeState) { quiet++ })
	healthy.Decay(0.1) // 0.9 -> 0.8, stays Alive
	if quiet != 0 {
		t.Fatalf("expected no notification within Alive, got %d", quiet)
	}

	a := newTestAnimal(0.5)
	var got []rules.LifeState
	a.Monitor().Subscribe(func(_ *Animal, s rules.LifeState) {
		got = append(got, s)
	})

	a.Decay(0.25) // 0.5 -> 0.25
	if len(got) != 1 || got[0] != rules.Dying {
		t.Fatalf("expected exactly one Dying notification, got %v", got)
	}

	a.Decay(0.25) // 0.25 -> 0.0
	if len(got) != 2 || got[1] != rules.Dead {
		t.Fatalf("expected exactly one Dead notification, got %v", got)
	}

	a.Decay(0.25)
	a.Feed(0.5)
	if len(got) != 2 {
		t.Errorf("expected no notifications after death, got %v", got)
	}
}

func TestMonitorListenerSeesNewHealth(t *testing.T) {
	a := newTestAnimal(0.5)

	var seen float64
	a.Monitor().Subscribe(func(an *Animal, s rules.LifeState) {
		h, state := an.Snapshot()
		if state != s {
			t.Errorf("listener saw state %v, notified %v", state, s)
		}
		seen = h
	})

	a.Decay(0.25)
	if seen != 0.25 {
		t.Errorf("listener saw health %v, want 0.25", seen)
	}
}

func TestUnsubscribeAndDispose(t *testing.T) {
	a := newTestAnimal(0.5)

	calls := 0
	unsubscribe := a.Monitor().Subscribe(func(*Animal, rules.LifeState) { calls++ })
	unsubscribe()
	a.Decay(0.3)
	if calls != 0 {
		t.Errorf("expected no calls after unsubscribe, got %d", calls)
	}

	b := newTestAnimal(0.5)
	b.Monitor().Subscribe(func(*Animal, rules.LifeState) { calls++ })
	b.Dispose()
	b.Dispose()
	b.Decay(0.5)
	if calls != 0 {
		t.Errorf("expected no calls after dispose, got %d", calls)
	}
	if b.LifeState() != rules.Dead {
		t.Errorf("disposed animal should still classify, got %v", b.LifeState())
	}
}

func TestConcurrentDecayAndFeed(t *testing.T) {
	a := newTestAnimal(0.6)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if i%2 == 0 {
					a.Decay(0.01)
				} else {
					a.Feed(0.01)
				}
				if h := a.Health(); h < 0 || h > 1 {
					t.Errorf("health out of bounds: %v", h)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestProfileValidate(t *testing.T) {
	for s, p := range DefaultProfiles() {
		if err := p.Validate(); err != nil {
			t.Errorf("default profile %s invalid: %v", s, err)
		}
	}

	bad := []Profile{
		{Species: "Lion", DecayMin: 0.1, DecayMax: 0.2},
		{Species: SpeciesMonkey, DecayMin: 0, DecayMax: 0.2},
		{Species: SpeciesMonkey, DecayMin: 0.3, DecayMax: 0.2},
		{Species: SpeciesMonkey, DecayMin: 0.1, DecayMax: 0.2, DyingThreshold: 1.2},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("expected %+v to be rejected", p)
		}
	}

	if _, err := ParseSpecies("Giraffe"); err != nil {
		t.Errorf("ParseSpecies(Giraffe): %v", err)
	}
	if _, err := ParseSpecies("Lion"); err == nil {
		t.Errorf("expected ParseSpecies(Lion) to fail")
	}
}
