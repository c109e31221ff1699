package telemetry

import (
	"sync"

	"github.com/MRamiBalles/ZooSimulator/server/internal/engine"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
)

// Collector observes decay passes, keeps the latest sample and forwards
// every sample to the output manager.
type Collector struct {
	out    *OutputManager
	logger *logger.Logger

	mu      sync.RWMutex
	last    Sample
	samples int
	errors  int
}

// NewCollector creates a collector. out may be nil.
func NewCollector(out *OutputManager, log *logger.Logger) *Collector {
	return &Collector{out: out, logger: log}
}

// Observe is an engine.TickObserver.
func (c *Collector) Observe(r engine.TickReport) {
	s := SampleFrom(r)

	c.mu.Lock()
	c.last = s
	c.samples++
	c.mu.Unlock()

	if err := c.out.WriteSample(s); err != nil {
		c.mu.Lock()
		c.errors++
		c.mu.Unlock()
		c.logger.Warn("telemetry write failed", "error", err)
		return
	}
	c.logger.Debug("tick sample", "sample", s)
}

// Last returns the most recent sample, if any.
func (c *Collector) Last() (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.samples > 0
}

// Samples returns how many samples were observed and how many failed to write.
func (c *Collector) Samples() (observed, failed int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples, c.errors
}
