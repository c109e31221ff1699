package engine

import (
	"testing"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/zoo"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

func newTestReaper(grace time.Duration, animals ...*animal.Animal) (*Reaper, *zoo.Zoo, *events.EventLog) {
	z := zoo.New(animals...)
	el := events.NewEventLog(nil)
	r := NewReaper(z, grace, el, logger.Discard())
	r.metrics = metrics.NewCollector()
	for _, a := range animals {
		r.Watch(a)
	}
	return r, z, el
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestReaperRemovesDeadAfterGrace(t *testing.T) {
	victim := fixedAnimal(animal.SpeciesMonkey, 0.2, 0.1)
	survivor := fixedAnimal(animal.SpeciesElephant, 1, 0.1)
	r, z, el := newTestReaper(20*time.Millisecond, victim, survivor)

	victim.Decay(1)
	if z.Len() != 2 {
		t.Fatalf("the dead animal must stay during the grace period")
	}
	if r.Pending() != 1 {
		t.Errorf("expected one pending removal, got %d", r.Pending())
	}

	if !waitFor(t, time.Second, func() bool { return z.Len() == 1 }) {
		t.Fatalf("dead animal was never removed")
	}
	if _, ok := z.Find(survivor.ID()); !ok {
		t.Errorf("survivor was removed")
	}

	removed := el.Filter(events.EventFilter{Type: events.EventTypeAnimalRemoved})
	if len(removed) != 1 || removed[0].TargetID != victim.ID() {
		t.Errorf("expected one ANIMAL_REMOVED event for the victim, got %+v", removed)
	}
}

func TestReaperDisabledWithZeroGrace(t *testing.T) {
	a := fixedAnimal(animal.SpeciesGiraffe, 0.2, 0.1)
	r, z, _ := newTestReaper(0, a)

	a.Decay(1)
	time.Sleep(20 * time.Millisecond)
	if z.Len() != 1 || r.Pending() != 0 {
		t.Errorf("nothing should be removed with a zero grace period")
	}
}

func TestReaperStopCancelsPending(t *testing.T) {
	a := fixedAnimal(animal.SpeciesGiraffe, 0.2, 0.1)
	r, z, _ := newTestReaper(30*time.Millisecond, a)

	a.Decay(1)
	r.Stop()
	time.Sleep(60 * time.Millisecond)
	if z.Len() != 1 {
		t.Errorf("a stopped reaper must not remove animals")
	}

	b := fixedAnimal(animal.SpeciesMonkey, 0.2, 0.1)
	r.Watch(b)
	b.Decay(1)
	if r.Pending() != 0 {
		t.Errorf("a stopped reaper must ignore later deaths")
	}
}
