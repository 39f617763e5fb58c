package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON string

// envPrefix namespaces every environment override
const envPrefix = "BLOCKGRID_"

// SpawnConfig controls how many unowned blocks float around a session
type SpawnConfig struct {
	MaxFree  int   `yaml:"max_free" json:"max_free" env:"MAX_FREE"`
	PerTick  int   `yaml:"per_tick" json:"per_tick" env:"PER_TICK"`
	Radius   int32 `yaml:"radius" json:"radius" env:"RADIUS"`
	BotEvery int   `yaml:"bot_every" json:"bot_every" env:"BOT_EVERY"`
}

// Config is the server configuration
type Config struct {
	Addr          string      `yaml:"addr" json:"addr" env:"ADDR"`
	PublicURL     string      `yaml:"public_url" json:"public_url" env:"PUBLIC_URL"`
	ClientDir     string      `yaml:"client_dir" json:"client_dir" env:"CLIENT_DIR"`
	DBPath        string      `yaml:"db_path" json:"db_path" env:"DB_PATH"`
	SnapshotPath  string      `yaml:"snapshot_path" json:"snapshot_path" env:"SNAPSHOT_PATH"`
	Memory        bool        `yaml:"memory" json:"memory" env:"MEMORY"`
	StoreLag      int         `yaml:"store_lag" json:"store_lag" env:"STORE_LAG"`
	TickRate      int         `yaml:"tick_rate" json:"tick_rate" env:"TICK_RATE"`
	BroadcastRate int         `yaml:"broadcast_rate" json:"broadcast_rate" env:"BROADCAST_RATE"`
	Bots          int         `yaml:"bots" json:"bots" env:"BOTS"`
	Grid          GridConfig  `yaml:"grid" json:"grid" envPrefix:"GRID_"`
	Release       RetryPolicy `yaml:"release" json:"release" envPrefix:"RELEASE_"`
	Spawn         SpawnConfig `yaml:"spawn" json:"spawn" envPrefix:"SPAWN_"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		DBPath:        "blockgrid.db",
		SnapshotPath:  "grids.snap.zst",
		TickRate:      TickRate,
		BroadcastRate: BroadcastRate,
		Bots:          2,
		Grid: GridConfig{
			Size:     GridSize{W: 3, H: 3},
			Capacity: 20,
		},
		Release: DefaultRetryPolicy(),
		Spawn: SpawnConfig{
			MaxFree:  60,
			PerTick:  2,
			Radius:   1500,
			BotEvery: TickRate,
		},
	}
}

// TickDuration returns the configured duration of one tick
func (c Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// BroadcastEvery returns how many ticks pass between state frames
func (c Config) BroadcastEvery() uint64 {
	n := c.TickRate / c.BroadcastRate
	if n < 1 {
		n = 1
	}
	return uint64(n)
}

// Engine returns the per-view engine settings
func (c Config) Engine() EngineConfig {
	return EngineConfig{
		Grid:         c.Grid,
		Release:      c.Release,
		TickDuration: c.TickDuration(),
	}
}

// LoadConfig reads the YAML file at path (if any) over the defaults, then
// applies BLOCKGRID_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := validateConfigDoc(raw); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validateConfigDoc checks the raw YAML document against the embedded schema
func validateConfigDoc(raw []byte) error {
	schema, err := jsonschema.CompileString("config.schema.json", configSchemaJSON)
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// round-trip through JSON so the validator sees JSON types
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// Validate checks values the schema cannot express
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", c.TickRate)
	}
	if c.BroadcastRate <= 0 || c.BroadcastRate > c.TickRate {
		return fmt.Errorf("broadcast_rate must be in [1, %d], got %d", c.TickRate, c.BroadcastRate)
	}
	if c.Grid.Size.W < 0 || c.Grid.Size.H < 0 {
		return fmt.Errorf("grid size must not be negative, got %+v", c.Grid.Size)
	}
	if c.Release.Multiplier < 1 {
		return fmt.Errorf("release multiplier must be >= 1, got %v", c.Release.Multiplier)
	}
	if c.StoreLag < 0 {
		return fmt.Errorf("store_lag must not be negative, got %d", c.StoreLag)
	}
	return nil
}
