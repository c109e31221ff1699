package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
)

// OutputManager writes tick samples to ticks.csv in an output directory.
type OutputManager struct {
	dir string

	mu            sync.Mutex
	ticksFile     *os.File
	headerWritten bool
}

// NewOutputManager creates the output directory and ticks.csv.
// Returns nil if dir is empty (output disabled); every method accepts a nil receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "ticks.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks.csv: %w", err)
	}
	return &OutputManager{dir: dir, ticksFile: f}, nil
}

// WriteConfig saves the effective configuration next to the samples.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteSample appends one row to ticks.csv.
func (om *OutputManager) WriteSample(s Sample) error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()

	records := []Sample{s}
	if !om.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.ticksFile); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
		om.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.ticksFile); err != nil {
		return fmt.Errorf("writing sample: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes ticks.csv.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()
	return om.ticksFile.Close()
}
