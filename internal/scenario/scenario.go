// Package scenario runs headless soak scenarios against a real engine and
// checks the simulation invariants while they run:
//
//   - every animal's health stays within [0, 1]
//   - every animal's LifeState equals the classification of its health
//   - generations never go backwards between decay passes
//   - GameEnded is raised at most once per generation, and only when every
//     animal of that generation is Dead
package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/engine"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

// maxViolations caps how many violations a run keeps.
const maxViolations = 50

// Scenario is one soak run: a config tweak and a driver that issues
// commands until its goal is met.
type Scenario struct {
	Name        string
	Description string
	Tune        func(cfg *config.Config)
	Drive       func(ctx context.Context, h *Harness) error
}

// Options bound a scenario run.
type Options struct {
	Games    int           // Games a driver waits for
	Duration time.Duration // How long time-boxed drivers keep issuing commands
	Timeout  time.Duration // Hard limit for the whole run
}

// DefaultOptions returns the options the soak runner uses.
func DefaultOptions() Options {
	return Options{Games: 3, Duration: 2 * time.Second, Timeout: 30 * time.Second}
}

// Result captures the outcome of a scenario.
type Result struct {
	ScenarioName string        `json:"scenario"`
	Passed       bool          `json:"passed"`
	Reason       string        `json:"reason,omitempty"`
	Games        int           `json:"games"`
	Ticks        uint64        `json:"ticks"`
	Events       int           `json:"events"`
	Violations   []string      `json:"violations,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Harness gives a driver the engine and records invariant violations.
type Harness struct {
	Engine  *engine.Engine
	Events  *events.EventLog
	Options Options

	mu         sync.Mutex
	violations []string
	endings    map[uint64]int
	games      int
	lastGen    uint64
}

func newHarness(e *engine.Engine, opts Options) *Harness {
	return &Harness{Engine: e, Options: opts, endings: make(map[uint64]int)}
}

func (h *Harness) violate(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.violations) < maxViolations {
		h.violations = append(h.violations, fmt.Sprintf(format, args...))
	}
}

// observeTick is registered as a tick observer.
func (h *Harness) observeTick(r engine.TickReport) {
	h.mu.Lock()
	if r.Generation < h.lastGen {
		h.mu.Unlock()
		h.violate("tick %d reported generation %d after %d", r.Tick, r.Generation, h.lastGen)
	} else {
		h.lastGen = r.Generation
		h.mu.Unlock()
	}

	if r.Counts.Total() != len(r.Healths) {
		h.violate("tick %d counted %d animals but sampled %d", r.Tick, r.Counts.Total(), len(r.Healths))
	}
	h.CheckZoo()
}

// observeGameEnded is registered as a GameEnded handler.
func (h *Harness) observeGameEnded(generation uint64) {
	h.mu.Lock()
	h.endings[generation]++
	n := h.endings[generation]
	h.games++
	h.mu.Unlock()

	if n > 1 {
		h.violate("GameEnded raised %d times for generation %d", n, generation)
	}
}

// CheckZoo verifies every animal currently in the zoo.
func (h *Harness) CheckZoo() {
	for a := range h.Engine.Zoo().All() {
		health, state := a.Snapshot()
		if health < 0 || health > 1 {
			h.violate("%s has health %v outside [0, 1]", a, health)
		}
		if want := rules.Classify(health, a.Monitor().Threshold()); state != want {
			h.violate("%s is %s at health %v, want %s", a, state, health, want)
		}
	}
}

// Games returns how many games have ended.
func (h *Harness) Games() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.games
}

// WaitGames blocks until n games have ended or ctx is done.
func (h *Harness) WaitGames(ctx context.Context, n int) error {
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for {
		if h.Games() >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("only %d of %d games ended: %w", h.Games(), n, ctx.Err())
		case <-poll.C:
		}
	}
}

// WaitGeneration blocks until the zoo holds a generation after gen.
func (h *Harness) WaitGeneration(ctx context.Context, gen uint64) error {
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()
	for h.Engine.Zoo().Generation() <= gen {
		select {
		case <-ctx.Done():
			return fmt.Errorf("generation %d was never replaced: %w", gen, ctx.Err())
		case <-poll.C:
		}
	}
	return nil
}

// audit checks the finished event log: one GAME_ENDED per generation, and
// none for a generation whose population still had someone alive.
func (h *Harness) audit(el *events.EventLog) {
	ended := make(map[uint64]int)
	for _, ev := range el.Filter(events.EventFilter{Type: events.EventTypeGameEnded}) {
		ended[ev.Generation]++
		if ended[ev.Generation] == 2 {
			h.violate("GAME_ENDED logged more than once for generation %d", ev.Generation)
		}
	}

	for _, ev := range el.Filter(events.EventFilter{Type: events.EventTypeTimeJump}) {
		checkTickPayload(h, ev)
	}
	for _, ev := range el.Filter(events.EventFilter{Type: events.EventTypeTimeTick}) {
		checkTickPayload(h, ev)
	}
}

func checkTickPayload(h *Harness, ev events.GameEvent) {
	p, ok := ev.Payload.(events.TickPayload)
	if !ok {
		return
	}
	allDead := p.Alive == 0 && p.Dying == 0 && p.Dead > 0
	if p.Ended != allDead {
		h.violate("tick %d of generation %d reported ended=%v with %d alive, %d dying, %d dead",
			p.TickNumber, ev.Generation, p.Ended, p.Alive, p.Dying, p.Dead)
	}
}

// Run executes one scenario on a fresh engine built from base.
func Run(ctx context.Context, s Scenario, base *config.Config, opts Options, log *logger.Logger) Result {
	start := time.Now()
	res := Result{ScenarioName: s.Name}

	cfg := *base
	if s.Tune != nil {
		s.Tune(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		res.Reason = fmt.Sprintf("invalid config: %v", err)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	el := events.NewEventLog(nil)
	e := engine.NewEngine(&cfg, el, log.With("scenario", s.Name), engine.WithMetrics(metrics.NewCollector()))
	h := newHarness(e, opts)
	h.Events = el
	e.OnTick(h.observeTick)
	e.OnGameEnded(h.observeGameEnded)

	if err := e.Start(ctx); err != nil {
		res.Reason = fmt.Sprintf("start: %v", err)
		return res
	}
	driveErr := s.Drive(ctx, h)
	e.Shutdown()

	h.CheckZoo()
	h.audit(el)

	h.mu.Lock()
	res.Violations = append([]string(nil), h.violations...)
	res.Games = h.games
	h.mu.Unlock()
	res.Ticks = e.DeathManager().TickCount()
	res.Events = el.Len()
	res.Duration = time.Since(start)

	switch {
	case driveErr != nil:
		res.Reason = driveErr.Error()
	case len(res.Violations) > 0:
		res.Reason = fmt.Sprintf("%d invariant violations", len(res.Violations))
	default:
		res.Passed = true
		res.Reason = "all invariants held"
	}
	return res
}
