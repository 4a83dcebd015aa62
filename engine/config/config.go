// Package config loads scene and render-queue settings from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned by Load for files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("config: unsupported format")

type Config struct {
	Render   RenderConfig   `toml:"render" yaml:"render"`
	Shadow   ShadowConfig   `toml:"shadow" yaml:"shadow"`
	Queues   []QueueConfig  `toml:"queues" yaml:"queues"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	Profiler ProfilerConfig `toml:"profiler" yaml:"profiler"`
}

type RenderConfig struct {
	MidDistance     float32 `toml:"mid_distance" yaml:"mid_distance"` // base -> mid LOD switch
	LowDistance     float32 `toml:"low_distance" yaml:"low_distance"` // mid -> low LOD switch
	DoubleBuffering bool    `toml:"double_buffering" yaml:"double_buffering"`
	BatchVertices   int     `toml:"batch_vertices" yaml:"batch_vertices"`
	BatchIndices    int     `toml:"batch_indices" yaml:"batch_indices"`
	BatchObjects    int     `toml:"batch_objects" yaml:"batch_objects"`
	ComputeWorkers  int     `toml:"compute_workers" yaml:"compute_workers"` // 0 = NumCPU-1
}

// ShadowConfig describes the shadow cascades created when no explicit queues are listed.
type ShadowConfig struct {
	Enabled     bool    `toml:"enabled" yaml:"enabled"`
	NearLevel   int     `toml:"near_level" yaml:"near_level"`
	MidLevel    int     `toml:"mid_level" yaml:"mid_level"`
	FarLevel    int     `toml:"far_level" yaml:"far_level"`
	MidDistance float32 `toml:"mid_distance" yaml:"mid_distance"`
	LowDistance float32 `toml:"low_distance" yaml:"low_distance"`
}

type QueueConfig struct {
	Name        string   `toml:"name" yaml:"name"`
	Pass        string   `toml:"pass" yaml:"pass"` // color, near_shadow, mid_shadow, far_shadow
	MidDistance float32  `toml:"mid_distance" yaml:"mid_distance"`
	LowDistance float32  `toml:"low_distance" yaml:"low_distance"`
	ShadowLevel int      `toml:"shadow_level" yaml:"shadow_level"`
	Categories  []string `toml:"categories" yaml:"categories"` // normal, single, billboard, animated; empty = all
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

type ProfilerConfig struct {
	Enabled  bool          `toml:"enabled" yaml:"enabled"`
	Interval time.Duration `toml:"interval" yaml:"interval"`
}

// Load reads a config file. The extension picks the decoder: .toml, .yaml or .yml.
// Keys missing from the file keep their defaults.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - *Config: the decoded config
//   - error: read, parse, validation or ErrUnsupportedFormat errors
func Load(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".toml" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("load config %s: %w", path, ErrUnsupportedFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	switch ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			MidDistance:     50,
			LowDistance:     150,
			DoubleBuffering: true,
			BatchVertices:   65536,
			BatchIndices:    196608,
			BatchObjects:    256,
		},
		Shadow: ShadowConfig{
			NearLevel:   1,
			MidLevel:    2,
			FarLevel:    3,
			MidDistance: 30,
			LowDistance: 80,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Profiler: ProfilerConfig{
			Interval: time.Second,
		},
	}
}

// Validate checks value ranges.
//
// Returns:
//   - error: the first invalid setting
func (c *Config) Validate() error {
	if err := validateDistances("render", c.Render.MidDistance, c.Render.LowDistance); err != nil {
		return err
	}
	if err := validateDistances("shadow", c.Shadow.MidDistance, c.Shadow.LowDistance); err != nil {
		return err
	}
	if c.Render.BatchVertices < 0 || c.Render.BatchIndices < 0 || c.Render.BatchObjects < 0 {
		return errors.New("render: batch limits must not be negative")
	}
	if c.Render.ComputeWorkers < 0 {
		return errors.New("render: compute_workers must not be negative")
	}
	for i, q := range c.Queues {
		if err := validateDistances(fmt.Sprintf("queues[%d]", i), q.MidDistance, q.LowDistance); err != nil {
			return err
		}
	}
	return nil
}

func validateDistances(section string, mid, low float32) error {
	if mid < 0 || low < 0 {
		return fmt.Errorf("%s: lod distances must not be negative", section)
	}
	if low > 0 && mid > low {
		return fmt.Errorf("%s: mid_distance %.2f beyond low_distance %.2f", section, mid, low)
	}
	return nil
}
