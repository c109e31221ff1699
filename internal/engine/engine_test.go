package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

// quietConfig never ticks on its own, so tests drive time with Jump.
func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.Population.Seed = 7
	cfg.Scheduler.TickInterval = time.Hour
	cfg.Scheduler.DeadGracePeriod = 0
	return cfg
}

func startEngine(t *testing.T, cfg *config.Config) (*Engine, *events.EventLog) {
	t.Helper()
	el := events.NewEventLog(nil)
	e := NewEngine(cfg, el, logger.Discard(), WithMetrics(metrics.NewCollector()), WithSessionID("test-session"))
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(e.Shutdown)
	return e, el
}

func TestStartGeneratesPopulation(t *testing.T) {
	e, el := startEngine(t, quietConfig())

	snap := e.Snapshot()
	if snap.SessionID != "test-session" || snap.Generation != 1 {
		t.Errorf("unexpected session/generation: %s/%d", snap.SessionID, snap.Generation)
	}
	if !snap.Running || snap.IsEmpty {
		t.Errorf("a fresh game should be running and not empty")
	}
	if snap.Counts.Alive != 5 {
		t.Errorf("expected 5 living animals, got %+v", snap.Counts)
	}
	if len(snap.Groups) != 3 || len(snap.Groups[0].Animals) != 2 {
		t.Errorf("expected 3 species groups with 2 elephants first, got %+v", snap.Groups)
	}

	generated := el.Filter(events.EventFilter{Type: events.EventTypeZooGenerated})
	if len(generated) != 1 || generated[0].Payload.(events.ZooGeneratedPayload).Population != 5 {
		t.Errorf("expected one ZOO_GENERATED event for 5 animals")
	}

	if err := e.Start(context.Background()); err != nil {
		t.Errorf("second Start should be a no-op, got %v", err)
	}
	if e.Zoo().Generation() != 1 {
		t.Errorf("second Start must not regenerate")
	}
}

func TestCommandsBeforeStart(t *testing.T) {
	e := NewEngine(quietConfig(), events.NewEventLog(nil), logger.Discard(), WithMetrics(metrics.NewCollector()))
	if err := e.Feed(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Feed: expected ErrNotStarted, got %v", err)
	}
	if _, err := e.Jump(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Jump: expected ErrNotStarted, got %v", err)
	}
}

func TestFeedKeepsRunning(t *testing.T) {
	e, el := startEngine(t, quietConfig())

	before := make(map[string]float64)
	for a := range e.Zoo().All() {
		a.Decay(0.3)
		before[a.ID()] = a.Health()
	}

	if err := e.Feed(); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	for a := range e.Zoo().All() {
		want := rules.ClampHealth(before[a.ID()] + e.cfg.Feeding.Boost)
		if a.Health() != want {
			t.Errorf("%s: health %v, want %v", a, a.Health(), want)
		}
	}
	if !e.DeathManager().IsRunning() {
		t.Errorf("the clock should resume after feeding")
	}
	if len(el.Filter(events.EventFilter{Type: events.EventTypeAnimalsFed})) != 1 {
		t.Errorf("expected an ANIMALS_FED event")
	}
}

func TestJumpResumesWhileAlive(t *testing.T) {
	e, _ := startEngine(t, quietConfig())

	ended, err := e.Jump()
	if err != nil || ended {
		t.Fatalf("one jump should not end a fresh game: ended=%v err=%v", ended, err)
	}
	if e.DeathManager().TickCount() != 1 {
		t.Errorf("expected one forced tick, got %d", e.DeathManager().TickCount())
	}
	if !e.DeathManager().IsRunning() {
		t.Errorf("the clock should resume after a jump")
	}
}

func TestJumpEndsGameAndRestarts(t *testing.T) {
	cfg := quietConfig()
	cfg.Scheduler.JumpScale = 100
	e, el := startEngine(t, cfg)

	ended, err := e.Jump()
	if err != nil || !ended {
		t.Fatalf("a 100x jump should end the game: ended=%v err=%v", ended, err)
	}
	if got := len(el.Filter(events.EventFilter{Type: events.EventTypeGameEnded, Generation: 1})); got != 1 {
		t.Errorf("expected one GAME_ENDED for generation 1, got %d", got)
	}

	if !waitFor(t, 2*time.Second, func() bool { return e.Zoo().Generation() == 2 }) {
		t.Fatalf("engine did not restart, generation %d", e.Zoo().Generation())
	}
	if e.Zoo().IsEmpty() {
		t.Errorf("the new population should be alive")
	}
	if !waitFor(t, time.Second, e.DeathManager().IsRunning) {
		t.Errorf("the new game should be running")
	}
}

func TestJumpWithoutAutoRestart(t *testing.T) {
	cfg := quietConfig()
	cfg.Scheduler.JumpScale = 100
	cfg.Scheduler.AutoRestart = false
	e, _ := startEngine(t, cfg)

	if ended, _ := e.Jump(); !ended {
		t.Fatal("expected the game to end")
	}
	time.Sleep(50 * time.Millisecond)
	if e.Zoo().Generation() != 1 || e.DeathManager().IsRunning() {
		t.Errorf("without auto restart the zoo stays dead and stopped")
	}

	if err := e.Feed(); err != nil {
		t.Fatal(err)
	}
	if e.DeathManager().IsRunning() || !e.Zoo().IsEmpty() {
		t.Errorf("feeding a dead zoo must not revive it or restart the clock")
	}

	if err := e.NewGame(context.Background()); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if e.Zoo().Generation() != 2 || e.Zoo().IsEmpty() {
		t.Errorf("NewGame should install a living generation 2")
	}
}

func TestScheduledTicksEndGame(t *testing.T) {
	cfg := quietConfig()
	cfg.Scheduler.TickInterval = 5 * time.Millisecond
	cfg.Scheduler.TickScale = 50
	cfg.Scheduler.AutoRestart = false
	el := events.NewEventLog(nil)
	e := NewEngine(cfg, el, logger.Discard(), WithMetrics(metrics.NewCollector()))
	ended := make(chan uint64, 1)
	e.OnGameEnded(func(g uint64) { ended <- g })
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Shutdown)

	select {
	case g := <-ended:
		if g != 1 {
			t.Errorf("expected generation 1 to end, got %d", g)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("game never ended")
	}

	deaths := el.Filter(events.EventFilter{Type: events.EventTypeLifeStateChanged})
	dead := 0
	for _, ev := range deaths {
		if ev.Payload.(events.LifeStatePayload).State == rules.Dead.String() {
			dead++
		}
	}
	if dead != 5 {
		t.Errorf("expected 5 Dead transitions, got %d", dead)
	}
}

func TestShutdownRejectsCommands(t *testing.T) {
	e, _ := startEngine(t, quietConfig())
	e.Shutdown()
	e.Shutdown()

	if err := e.Feed(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := e.NewGame(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if e.DeathManager().IsRunning() {
		t.Errorf("Shutdown should stop the clock")
	}
}

func TestSnapshotJSON(t *testing.T) {
	e, _ := startEngine(t, quietConfig())

	data, err := json.Marshal(e.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Groups []struct {
			Species string `json:"species"`
			Animals []struct {
				State   string `json:"state"`
				Percent string `json:"percent"`
				Color   string `json:"color"`
				CanWalk bool   `json:"can_walk"`
			} `json:"animals"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	first := decoded.Groups[0]
	if first.Species != "Elephant" {
		t.Errorf("expected elephants first, got %s", first.Species)
	}
	a := first.Animals[0]
	if a.State != "Alive" || a.Color != rules.Alive.Color() || !a.CanWalk || a.Percent == "" {
		t.Errorf("unexpected animal view %+v", a)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNoRestartAfterSessionContextDone(t *testing.T) {
	cfg := quietConfig()
	cfg.Scheduler.JumpScale = 100

	var logs lockedBuffer
	e := NewEngine(cfg, events.NewEventLog(nil), logger.NewWithWriter(&logs, slog.LevelInfo))
	ctx, cancel := context.WithCancel(context.Background())
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	if ended, err := e.Jump(); err != nil || !ended {
		t.Fatalf("expected the game to end: ended=%v err=%v", ended, err)
	}
	time.Sleep(50 * time.Millisecond)
	e.Shutdown()

	if e.Zoo().Generation() != 1 {
		t.Errorf("no restart expected once the session context is done, generation %d", e.Zoo().Generation())
	}
	if strings.Contains(logs.String(), "automatic restart failed") {
		t.Errorf("unexpected restart failure logged:\n%s", logs.String())
	}
}
