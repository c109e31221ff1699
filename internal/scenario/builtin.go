package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/rules"
	"github.com/MRamiBalles/ZooSimulator/server/internal/engine"
	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
)

// All returns the built-in scenarios in the order the soak runner runs them.
func All() []Scenario {
	return []Scenario{NaturalDecay(), DeadRemoval(), FeedingPressure(), JumpStorm(), CommandChaos()}
}

// Lookup finds a built-in scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range All() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// NaturalDecay lets the clock kill every population and checks the
// automatic restarts.
func NaturalDecay() Scenario {
	return Scenario{
		Name:        "natural-decay",
		Description: "scheduled ticks only, auto restart on",
		Tune: func(cfg *config.Config) {
			cfg.Scheduler.TickScale = 4
			cfg.Scheduler.AutoRestart = true
		},
		Drive: func(ctx context.Context, h *Harness) error {
			return h.WaitGames(ctx, h.Options.Games)
		},
	}
}

// DeadRemoval runs the reaper alongside the clock. The grace period is a
// fraction of a tick, so animals that die before the last one are removed
// while their game is still going.
func DeadRemoval() Scenario {
	return Scenario{
		Name:        "dead-removal",
		Description: "scheduled ticks with dead animals removed mid-game",
		Tune: func(cfg *config.Config) {
			cfg.Scheduler.AutoRestart = true
			cfg.Scheduler.DeadGracePeriod = max(cfg.Scheduler.TickInterval/10, time.Millisecond)
		},
		Drive: func(ctx context.Context, h *Harness) error {
			if err := h.WaitGames(ctx, h.Options.Games); err != nil {
				return err
			}
			if n := auditRemovals(h); n == 0 {
				return fmt.Errorf("no dead animal was removed before its game ended in %d games", h.Games())
			}
			return nil
		},
	}
}

// auditRemovals checks that every removed animal had died first and
// returns how many removals happened while their game was still going.
func auditRemovals(h *Harness) int {
	lastState := make(map[string]string)
	ended := make(map[uint64]bool)
	midGame := 0
	for _, ev := range h.Events.Replay() {
		switch ev.Type {
		case events.EventTypeLifeStateChanged:
			if p, ok := ev.Payload.(events.LifeStatePayload); ok {
				lastState[ev.TargetID] = p.State
			}
		case events.EventTypeGameEnded:
			ended[ev.Generation] = true
		case events.EventTypeAnimalRemoved:
			if lastState[ev.TargetID] != rules.Dead.String() {
				h.violate("animal %s removed while %q", ev.TargetID, lastState[ev.TargetID])
			}
			if !ended[ev.Generation] {
				midGame++
			}
		}
	}
	return midGame
}

// FeedingPressure feeds continuously while the clock runs.
func FeedingPressure() Scenario {
	return Scenario{
		Name:        "feeding-pressure",
		Description: "feed every other tick until the populations die anyway",
		Tune: func(cfg *config.Config) {
			cfg.Scheduler.TickScale = 3
			cfg.Scheduler.AutoRestart = true
		},
		Drive: func(ctx context.Context, h *Harness) error {
			feedCtx, stop := context.WithCancel(ctx)
			defer stop()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				t := time.NewTicker(2 * h.Engine.Config().Scheduler.TickInterval)
				defer t.Stop()
				for {
					select {
					case <-feedCtx.Done():
						return
					case <-t.C:
						if err := h.Engine.Feed(); err != nil && !errors.Is(err, engine.ErrClosed) {
							h.violate("feed: %v", err)
						}
					}
				}
			}()

			err := h.WaitGames(ctx, h.Options.Games)
			stop()
			wg.Wait()
			return err
		},
	}
}

// JumpStorm drives time only with jumps, including jumps on a zoo that is
// already dead, which must not end the same game twice.
func JumpStorm() Scenario {
	return Scenario{
		Name:        "jump-storm",
		Description: "forced ticks only, repeated jumps on dead populations",
		Tune: func(cfg *config.Config) {
			cfg.Scheduler.TickInterval = time.Hour
			cfg.Scheduler.JumpScale = 3
			cfg.Scheduler.AutoRestart = true
		},
		Drive: func(ctx context.Context, h *Harness) error {
			for h.Games() < h.Options.Games {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("jump storm stopped after %d games: %w", h.Games(), err)
				}
				gen := h.Engine.Zoo().Generation()
				ended, err := h.Engine.Jump()
				if err != nil {
					return fmt.Errorf("jump: %w", err)
				}
				if !ended {
					continue
				}
				// Jump again before the restart lands
				if _, err := h.Engine.Jump(); err != nil {
					return fmt.Errorf("jump on a dead zoo: %w", err)
				}
				if err := h.WaitGeneration(ctx, gen); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// CommandChaos issues random commands from several goroutines while the
// clock runs.
func CommandChaos() Scenario {
	return Scenario{
		Name:        "command-chaos",
		Description: "concurrent feed, jump and new game commands",
		Tune: func(cfg *config.Config) {
			cfg.Scheduler.TickScale = 2
			cfg.Scheduler.JumpScale = 2
			cfg.Scheduler.AutoRestart = true
		},
		Drive: func(ctx context.Context, h *Harness) error {
			runCtx, cancel := context.WithTimeout(ctx, h.Options.Duration)
			defer cancel()

			const workers = 4
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func(seed uint64) {
					defer wg.Done()
					rng := rand.New(rand.NewPCG(seed, seed*31+7))
					for runCtx.Err() == nil {
						var err error
						switch n := rng.IntN(10); {
						case n < 5:
							err = h.Engine.Feed()
						case n < 9:
							_, err = h.Engine.Jump()
						default:
							err = h.Engine.NewGame(runCtx)
						}
						if err != nil && runCtx.Err() == nil && !errors.Is(err, engine.ErrClosed) {
							h.violate("command failed: %v", err)
						}
						time.Sleep(time.Duration(rng.IntN(5)+1) * time.Millisecond)
					}
				}(uint64(i + 1))
			}
			wg.Wait()
			return nil
		},
	}
}
