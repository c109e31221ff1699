// Package config provides configuration loading for the zoo simulation.
// Every tunable constant of the engine lives here: population size, tick
// interval, species decay bands, dying threshold, feed boost and the
// initial-health range.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MRamiBalles/ZooSimulator/server/internal/domain/animal"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all simulation and server configuration.
type Config struct {
	Population PopulationConfig `yaml:"population"`
	Life       LifeConfig       `yaml:"life"`
	Feeding    FeedingConfig    `yaml:"feeding"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Species    []SpeciesConfig  `yaml:"species"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PopulationConfig controls how new populations are generated.
type PopulationConfig struct {
	Size             int     `yaml:"size"`
	InitialHealthMin float64 `yaml:"initial_health_min"`
	InitialHealthMax float64 `yaml:"initial_health_max"`
	Seed             uint64  `yaml:"seed"` // 0 = seed from the clock
}

// LifeConfig holds LifeState classification parameters.
type LifeConfig struct {
	DyingThreshold float64 `yaml:"dying_threshold"`
}

// FeedingConfig holds the feeding boost.
type FeedingConfig struct {
	Boost float64 `yaml:"boost"`
}

// SchedulerConfig holds DeathManager timing.
type SchedulerConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	TickScale       float64       `yaml:"tick_scale"`        // Multiplies each animal's decay rate per tick
	JumpScale       float64       `yaml:"jump_scale"`        // Multiplies each animal's decay rate on a forced tick
	AutoRestart     bool          `yaml:"auto_restart"`      // Start a new game when everyone died
	DeadGracePeriod time.Duration `yaml:"dead_grace_period"` // 0 = keep dead animals in the zoo
}

// SpeciesConfig overrides the built-in profile of one species.
type SpeciesConfig struct {
	Name           string  `yaml:"name"`
	DecayMin       float64 `yaml:"decay_min"`
	DecayMax       float64 `yaml:"decay_max"`
	WalkingSpeed   float64 `yaml:"walking_speed"`
	DyingThreshold float64 `yaml:"dying_threshold,omitempty"`
}

// ServerConfig holds the HTTP/WebSocket surface settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ClientRateLimit   time.Duration `yaml:"client_rate_limit"`
	EventPollInterval time.Duration `yaml:"event_poll_interval"`
}

// StorageConfig holds the audit journal location and in-memory history size.
type StorageConfig struct {
	DBPath       string `yaml:"db_path"`
	MemoryEvents int    `yaml:"memory_events"` // 0 keeps every event in memory
}

// TelemetryConfig holds per-tick CSV output settings.
type TelemetryConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	Profiles map[animal.Species]animal.Profile
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are broken: %v", err))
	}
	return cfg
}

// Fast returns defaults tuned for demos and soak runs: short ticks and no
// grace period before dead animals are removed.
func Fast() *Config {
	cfg := Default()
	cfg.Scheduler.TickInterval = 50 * time.Millisecond
	cfg.Scheduler.DeadGracePeriod = 0
	cfg.Server.ClientRateLimit = 0
	return cfg
}

// computeDerived merges species overrides over the built-in profiles.
func (c *Config) computeDerived() error {
	profiles := animal.DefaultProfiles()
	for _, sc := range c.Species {
		s, err := animal.ParseSpecies(sc.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		profiles[s] = animal.Profile{
			Species:        s,
			DecayMin:       sc.DecayMin,
			DecayMax:       sc.DecayMax,
			WalkingSpeed:   sc.WalkingSpeed,
			DyingThreshold: sc.DyingThreshold,
		}
	}
	c.Derived.Profiles = profiles
	return nil
}

// DyingThresholdFor returns the effective dying threshold of a species.
func (c *Config) DyingThresholdFor(s animal.Species) float64 {
	if p, ok := c.Derived.Profiles[s]; ok && p.DyingThreshold > 0 {
		return p.DyingThreshold
	}
	return c.Life.DyingThreshold
}

// Validate rejects configurations the engine cannot run with.
// Nothing is clamped silently.
func (c *Config) Validate() error {
	if c.Derived.Profiles == nil {
		if err := c.computeDerived(); err != nil {
			return err
		}
	}

	if c.Population.Size <= 0 {
		return fmt.Errorf("%w: population.size must be positive, got %d", ErrInvalid, c.Population.Size)
	}
	if c.Life.DyingThreshold <= 0 || c.Life.DyingThreshold >= 1 {
		return fmt.Errorf("%w: life.dying_threshold must be in (0, 1), got %v", ErrInvalid, c.Life.DyingThreshold)
	}
	lo, hi := c.Population.InitialHealthMin, c.Population.InitialHealthMax
	if lo > hi || hi > 1 {
		return fmt.Errorf("%w: initial health range [%v, %v] must be ordered and at most 1", ErrInvalid, lo, hi)
	}
	for _, s := range animal.AllSpecies {
		if lo <= c.DyingThresholdFor(s) {
			return fmt.Errorf("%w: initial_health_min %v would start %s animals Dying", ErrInvalid, lo, s)
		}
	}
	if c.Feeding.Boost <= 0 {
		return fmt.Errorf("%w: feeding.boost must be positive, got %v", ErrInvalid, c.Feeding.Boost)
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("%w: scheduler.tick_interval must be positive, got %v", ErrInvalid, c.Scheduler.TickInterval)
	}
	if c.Scheduler.TickScale <= 0 || c.Scheduler.JumpScale <= 0 {
		return fmt.Errorf("%w: scheduler tick_scale and jump_scale must be positive", ErrInvalid)
	}
	if c.Scheduler.DeadGracePeriod < 0 {
		return fmt.Errorf("%w: scheduler.dead_grace_period must not be negative", ErrInvalid)
	}
	if c.Storage.MemoryEvents < 0 {
		return fmt.Errorf("%w: storage.memory_events must not be negative, got %d", ErrInvalid, c.Storage.MemoryEvents)
	}
	for _, p := range c.Derived.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
