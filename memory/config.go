package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ladybuglabs/crystal-go/field"
	"github.com/ladybuglabs/crystal-go/fingerprint"
)

// Defaults carried over from the documented configuration. The basin count
// is a runtime parameter: the source material quotes both 4096 and 43,000,
// so deployments pick their own and 4096 is only the conservative default.
const (
	DefaultBasinCapacity = 4096
	DefaultSettleSteps   = 100
)

// Config holds CrystalMemory configuration.
type Config struct {
	// Width is the fingerprint width in bits for every crystal and field.
	Width int `yaml:"width"`

	// QuorumThreshold is the neighbor-agreement threshold used when the
	// memory builds or expands fields (4-of-6 by default).
	QuorumThreshold int `yaml:"quorum_threshold"`

	// BasinCapacity is the modulus for basin id assignment. Raising it
	// reduces collisions at the cost of a sparser id space.
	BasinCapacity int `yaml:"basin_capacity"`

	// SettleSteps is the step budget used by Crystallize.
	SettleSteps int `yaml:"settle_steps"`

	// ParallelScanThreshold is the collection size above which Infer fans
	// the distance scan out across CPUs. Small collections scan inline.
	ParallelScanThreshold int `yaml:"parallel_scan_threshold"`

	// CacheEnabled toggles the expanded-field cache.
	CacheEnabled bool `yaml:"cache_enabled"`

	// CacheMaxEntries caps the expanded-field cache. Each entry costs
	// roughly 375 × Width bits, so keep this modest.
	CacheMaxEntries int64 `yaml:"cache_max_entries"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Width:                 fingerprint.DefaultWidth,
		QuorumThreshold:       field.DefaultQuorumThreshold,
		BasinCapacity:         DefaultBasinCapacity,
		SettleSteps:           DefaultSettleSteps,
		ParallelScanThreshold: 2048,
		CacheEnabled:          true,
		CacheMaxEntries:       256,
	}
}

// LoadConfig reads a YAML config file. Omitted fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Width <= 0 {
		return fmt.Errorf("config: width must be positive, got %d", c.Width)
	}
	if c.BasinCapacity <= 0 {
		return fmt.Errorf("config: basin capacity must be positive, got %d", c.BasinCapacity)
	}
	if c.QuorumThreshold < 1 || c.QuorumThreshold > 6 {
		return fmt.Errorf("config: quorum threshold %d out of range [1,6]", c.QuorumThreshold)
	}
	if c.SettleSteps < 0 {
		return fmt.Errorf("config: settle steps must be non-negative, got %d", c.SettleSteps)
	}
	if c.ParallelScanThreshold < 0 {
		return fmt.Errorf("config: parallel scan threshold must be non-negative, got %d", c.ParallelScanThreshold)
	}
	if c.CacheEnabled && c.CacheMaxEntries <= 0 {
		return fmt.Errorf("config: cache max entries must be positive, got %d", c.CacheMaxEntries)
	}
	return nil
}
