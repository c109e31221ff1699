package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
)

func testOptions() Options {
	return Options{Games: 2, Duration: 300 * time.Millisecond, Timeout: 20 * time.Second}
}

func TestBuiltinScenariosPass(t *testing.T) {
	if testing.Short() {
		t.Skip("soak scenarios run for a few seconds")
	}
	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			cfg := config.Fast()
			cfg.Population.Seed = 42
			res := Run(context.Background(), s, cfg, testOptions(), logger.Discard())
			if !res.Passed {
				t.Fatalf("%s failed: %s\n%s", s.Name, res.Reason, strings.Join(res.Violations, "\n"))
			}
			if res.Events == 0 {
				t.Errorf("no events recorded")
			}
		})
	}
}

func TestGameCountsAreReported(t *testing.T) {
	cfg := config.Fast()
	cfg.Population.Seed = 3
	res := Run(context.Background(), NaturalDecay(), cfg, testOptions(), logger.Discard())
	if !res.Passed {
		t.Fatalf("natural decay failed: %s", res.Reason)
	}
	if res.Games < 2 || res.Ticks == 0 {
		t.Errorf("expected at least 2 games and some ticks, got %d games, %d ticks", res.Games, res.Ticks)
	}
}

func TestTimeoutFailsScenario(t *testing.T) {
	cfg := config.Fast()
	cfg.Scheduler.TickInterval = time.Hour
	stuck := Scenario{
		Name: "stuck",
		Drive: func(ctx context.Context, h *Harness) error {
			return h.WaitGames(ctx, 1)
		},
	}
	opts := testOptions()
	opts.Timeout = 100 * time.Millisecond

	res := Run(context.Background(), stuck, cfg, opts, logger.Discard())
	if res.Passed || !strings.Contains(res.Reason, "only 0 of 1 games ended") {
		t.Errorf("expected a timeout failure, got %+v", res)
	}
}

func TestInvalidTuneFails(t *testing.T) {
	bad := Scenario{
		Name:  "bad",
		Tune:  func(cfg *config.Config) { cfg.Scheduler.TickInterval = 0 },
		Drive: func(context.Context, *Harness) error { return nil },
	}
	res := Run(context.Background(), bad, config.Fast(), testOptions(), logger.Discard())
	if res.Passed || !strings.HasPrefix(res.Reason, "invalid config") {
		t.Errorf("expected invalid config, got %+v", res)
	}
}

func TestAuditCatchesInvariantBreaks(t *testing.T) {
	h := newHarness(nil, testOptions())
	el := events.NewEventLog(nil)
	el.Append(events.GameEvent{Type: events.EventTypeGameEnded, Generation: 1})
	el.Append(events.GameEvent{Type: events.EventTypeGameEnded, Generation: 1})
	el.Append(events.GameEvent{
		Type:       events.EventTypeTimeTick,
		Generation: 1,
		Payload:    events.TickPayload{TickNumber: 4, Alive: 1, Dead: 2, Ended: true},
	})

	h.audit(el)
	h.observeGameEnded(2)
	h.observeGameEnded(2)

	if len(h.violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(h.violations), h.violations)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"natural-decay", "dead-removal", "feeding-pressure", "jump-storm", "command-chaos"} {
		if _, ok := Lookup(name); !ok {
			t.Errorf("scenario %q not found", name)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Errorf("unexpected scenario")
	}
}

func TestDeadRemovalRunsReaperMidGame(t *testing.T) {
	cfg := config.Fast()
	cfg.Population.Seed = 5
	if cfg.Scheduler.DeadGracePeriod != 0 {
		t.Fatalf("fast preset should disable removal, got %v", cfg.Scheduler.DeadGracePeriod)
	}

	res := Run(context.Background(), DeadRemoval(), cfg, testOptions(), logger.Discard())
	if !res.Passed {
		t.Fatalf("dead-removal failed: %s\n%s", res.Reason, strings.Join(res.Violations, "\n"))
	}
	if res.Games < testOptions().Games {
		t.Errorf("expected at least %d games, got %d", testOptions().Games, res.Games)
	}
}

func TestAuditRemovals(t *testing.T) {
	h := newHarness(nil, testOptions())
	h.Events = events.NewEventLog(nil)
	state := func(id, s string) {
		h.Events.Append(events.GameEvent{Type: events.EventTypeLifeStateChanged, TargetID: id, Generation: 1,
			Payload: events.LifeStatePayload{State: s}})
	}
	removed := func(id string) {
		h.Events.Append(events.GameEvent{Type: events.EventTypeAnimalRemoved, TargetID: id, Generation: 1})
	}

	state("a", "Dying")
	state("a", "Dead")
	removed("a")
	state("b", "Dying")
	removed("b")
	h.Events.Append(events.GameEvent{Type: events.EventTypeGameEnded, Generation: 1})
	state("c", "Dead")
	removed("c")

	if got := auditRemovals(h); got != 2 {
		t.Errorf("expected 2 mid-game removals, got %d", got)
	}
	if len(h.violations) != 1 || !strings.Contains(h.violations[0], "b removed") {
		t.Errorf("expected one violation for b, got %v", h.violations)
	}
}
