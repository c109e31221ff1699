// Package engine contains the zoo's clock and the services that act on the
// population.
//
// The DeathManager owns the periodic decay loop and raises GameEnded once
// every animal of a generation is Dead. The FeedingService raises health,
// the Generator creates populations and the Reaper removes dead animals
// after a grace period. Engine ties them into the feed, jump and new-game
// flows and restarts the zoo when a game ends.
//
// Animals are never mutated outside this package except by their own
// HealthMonitor, which reclassifies LifeState on every change.
package engine
