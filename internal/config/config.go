package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	World     WorldConfig     `toml:"world"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
	Scripting ScriptingConfig `toml:"scripting"`
	Demo      DemoConfig      `toml:"demo"`
}

type WorldConfig struct {
	EntityCapacity int `toml:"entity_capacity"`
	TableCapacity  int `toml:"table_capacity"`
}

type SchedulerConfig struct {
	Workers      int  `toml:"workers"` // 0 = GOMAXPROCS
	Strict       bool `toml:"strict"`  // ambiguous orderings fail the build
	ParBatchSize int  `toml:"par_batch_size"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ScriptingConfig struct {
	Dir string `toml:"dir"` // empty disables Lua run conditions
}

type DemoConfig struct {
	Entities      int           `toml:"entities"`
	Frames        int           `toml:"frames"`
	FrameInterval time.Duration `toml:"frame_interval"` // 0 runs frames back to back
	SpawnPerFrame int           `toml:"spawn_per_frame"`
	Lifetime      int           `toml:"lifetime"` // frames
	Seed          uint64        `toml:"seed"`
	Manifest      string        `toml:"manifest"`
	SpawnList     string        `toml:"spawn_list"` // empty spawns Entities drifters
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

func (c *Config) validate() error {
	switch {
	case c.World.EntityCapacity < 0, c.World.TableCapacity < 0:
		return fmt.Errorf("world capacities must not be negative")
	case c.Scheduler.Workers < 0:
		return fmt.Errorf("scheduler.workers must not be negative")
	case c.Logging.Format != "json" && c.Logging.Format != "console":
		return fmt.Errorf("logging.format %q: want json or console", c.Logging.Format)
	case c.Demo.Frames < 0, c.Demo.Entities < 0, c.Demo.SpawnPerFrame < 0:
		return fmt.Errorf("demo counts must not be negative")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		World: WorldConfig{
			EntityCapacity: 4096,
			TableCapacity:  64,
		},
		Scheduler: SchedulerConfig{
			Workers:      0,
			Strict:       false,
			ParBatchSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Demo: DemoConfig{
			Entities:      1000,
			Frames:        120,
			SpawnPerFrame: 8,
			Lifetime:      90,
			Seed:          1,
			Manifest:      "config/schedule.yaml",
			SpawnList:     "config/spawn_list.yaml",
		},
	}
}
