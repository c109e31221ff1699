// Package metrics provides observability for the zoo server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers simulation and server metrics.
type Collector struct {
	// Scheduler
	TickCount      int64
	ForcedTicks    int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Commands
	Feeds       int64
	AnimalsFed  int64
	GamesStart  int64
	GamesEnded  int64
	Transitions int64
	Deaths      int64
	Removals    int64

	// Journal
	JournalWrites int64
	JournalErrors int64

	// WebSocket
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	StartTime time.Time
	mu        sync.RWMutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Global collector instance
var collector = NewCollector()

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a decay pass.
func (c *Collector) RecordTick(latency time.Duration, forced bool) {
	atomic.AddInt64(&c.TickCount, 1)
	if forced {
		atomic.AddInt64(&c.ForcedTicks, 1)
	}
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	for {
		cur := atomic.LoadInt64(&c.TickLatencyMax)
		if int64(latency) <= cur || atomic.CompareAndSwapInt64(&c.TickLatencyMax, cur, int64(latency)) {
			break
		}
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordFeed records a feeding round and how many animals it reached.
func (c *Collector) RecordFeed(fed int) {
	atomic.AddInt64(&c.Feeds, 1)
	atomic.AddInt64(&c.AnimalsFed, int64(fed))
}

// RecordGameStarted records a freshly generated population.
func (c *Collector) RecordGameStarted() {
	atomic.AddInt64(&c.GamesStart, 1)
}

// RecordGameEnded records a fully dead population.
func (c *Collector) RecordGameEnded() {
	atomic.AddInt64(&c.GamesEnded, 1)
}

// RecordTransition records a LifeState change; dead marks a death.
func (c *Collector) RecordTransition(dead bool) {
	atomic.AddInt64(&c.Transitions, 1)
	if dead {
		atomic.AddInt64(&c.Deaths, 1)
	}
}

// RecordRemoval records a dead animal leaving the zoo.
func (c *Collector) RecordRemoval() {
	atomic.AddInt64(&c.Removals, 1)
}

// RecordJournalWrite records an audit journal write.
func (c *Collector) RecordJournalWrite(err error) {
	atomic.AddInt64(&c.JournalWrites, 1)
	if err != nil {
		atomic.AddInt64(&c.JournalErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastTick := c.LastTickTime
	c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	last := ""
	if !lastTick.IsZero() {
		last = lastTick.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"forced":         atomic.LoadInt64(&c.ForcedTicks),
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      last,
		},

		"zoo": map[string]interface{}{
			"feeds":         atomic.LoadInt64(&c.Feeds),
			"animals_fed":   atomic.LoadInt64(&c.AnimalsFed),
			"games_started": atomic.LoadInt64(&c.GamesStart),
			"games_ended":   atomic.LoadInt64(&c.GamesEnded),
			"transitions":   atomic.LoadInt64(&c.Transitions),
			"deaths":        atomic.LoadInt64(&c.Deaths),
			"removals":      atomic.LoadInt64(&c.Removals),
		},

		"journal": map[string]interface{}{
			"writes": atomic.LoadInt64(&c.JournalWrites),
			"errors": atomic.LoadInt64(&c.JournalErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("zoo_tick_count", "Total decay passes", atomic.LoadInt64(&c.TickCount))
		counter("zoo_forced_tick_count", "Decay passes forced by a jump", atomic.LoadInt64(&c.ForcedTicks))

		fmt.Fprintf(w, "# HELP zoo_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE zoo_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "zoo_tick_latency_max_ms %.3f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		counter("zoo_feeds_total", "Feeding rounds", atomic.LoadInt64(&c.Feeds))
		counter("zoo_animals_fed_total", "Animals that received a boost", atomic.LoadInt64(&c.AnimalsFed))
		counter("zoo_games_started_total", "Populations generated", atomic.LoadInt64(&c.GamesStart))
		counter("zoo_games_ended_total", "Populations that fully died", atomic.LoadInt64(&c.GamesEnded))
		counter("zoo_state_transitions_total", "LifeState boundary crossings", atomic.LoadInt64(&c.Transitions))
		counter("zoo_deaths_total", "Animals that reached Dead", atomic.LoadInt64(&c.Deaths))
		counter("zoo_journal_errors_total", "Failed audit journal writes", atomic.LoadInt64(&c.JournalErrors))

		fmt.Fprintf(w, "# HELP zoo_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE zoo_ws_connections gauge\n")
		fmt.Fprintf(w, "zoo_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP zoo_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE zoo_ws_messages_total counter\n")
		fmt.Fprintf(w, "zoo_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "zoo_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
