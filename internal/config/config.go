// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation  SimulationConfig  `yaml:"simulation"`
	Cache       CacheConfig       `yaml:"cache"`
	Behavior    BehaviorConfig    `yaml:"behavior"`
	Pheromone   PheromoneConfig   `yaml:"pheromone"`
	Colony      ColonyConfig      `yaml:"colony"`
	Environment EnvironmentConfig `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Client      ClientConfig      `yaml:"client"`
}

// SimulationConfig holds world size and tick loop parameters.
type SimulationConfig struct {
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	TickIntervalMs int     `yaml:"tick_interval_ms"`
	FlushEvery     uint64  `yaml:"flush_every"`  // Persist dirty state every N ticks
	StatusEvery    uint64  `yaml:"status_every"` // Broadcast status heartbeat every N ticks
	ReportEvery    uint64  `yaml:"report_every"` // Log aggregate report every N ticks
	Seed           int64   `yaml:"seed"`
}

// TickInterval returns the tick interval as a duration.
func (s SimulationConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

// CacheConfig holds the spatial cache refresh policy.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TTL returns the cache refresh interval.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// BehaviorConfig tunes the ant behavior state machine and movement models.
type BehaviorConfig struct {
	BatchSize     int     `yaml:"batch_size"`
	AgingEnabled  bool    `yaml:"aging_enabled"`
	EnergyDecay   float64 `yaml:"energy_decay"`   // Per tick, when aging is enabled
	EnergyRestore float64 `yaml:"energy_restore"` // On food delivery
	CollectRadius float64 `yaml:"collect_radius"`
	DeliverRadius float64 `yaml:"deliver_radius"`
	CollectAmount float64 `yaml:"collect_amount"`

	TurnProbability float64 `yaml:"turn_probability"` // Bounded random walk
	TurnArc         float64 `yaml:"turn_arc"`         // Radians, ± half-arc

	LevyMu      float64 `yaml:"levy_mu"` // Power-law exponent, 1 < μ ≤ 3
	LevyMinStep float64 `yaml:"levy_min_step"`
	LevyMaxStep float64 `yaml:"levy_max_step"`

	TrailSpeedBonusCap float64 `yaml:"trail_speed_bonus_cap"` // Max speed multiplier on strong trails
}

// PheromoneConfig tunes trail deposit and cleanup.
type PheromoneConfig struct {
	DepositEvery    uint64  `yaml:"deposit_every"`    // Ticks between deposit passes
	CleanupEpsilon  float64 `yaml:"cleanup_epsilon"`  // Strength below which trails are deleted
	ReinforceRadius float64 `yaml:"reinforce_radius"` // Search radius for an existing trail
	ReinforceMin    float64 `yaml:"reinforce_min"`    // Minimum strength to reinforce instead of create
}

// ColonyConfig tunes the colony economy pass.
type ColonyConfig struct {
	ConsumeEvery         uint64  `yaml:"consume_every"`
	SpawnEvery           uint64  `yaml:"spawn_every"`
	ConsumptionPerCapita float64 `yaml:"consumption_per_capita"`
	SpawnThreshold       float64 `yaml:"spawn_threshold"`
	PopulationCap        int     `yaml:"population_cap"`
	InitialPopulation    int     `yaml:"initial_population"` // Workers spawned per bootstrapped colony
}

// EnvironmentConfig tunes weather and food source lifecycle.
type EnvironmentConfig struct {
	WeatherEvery   uint64  `yaml:"weather_every"`
	FoodSpawnEvery uint64  `yaml:"food_spawn_every"`
	FoodFloor      int     `yaml:"food_floor"` // Spawn replacements below this count
	FoodMaxAmount  float64 `yaml:"food_max_amount"`
}

// ServerConfig holds the listener settings for the observer hub and metrics.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ClientConfig holds the observer client reconnect policy.
type ClientConfig struct {
	BackoffBaseMs    int `yaml:"backoff_base_ms"`
	BackoffMaxMs     int `yaml:"backoff_max_ms"`
	MaxAttempts      int `yaml:"max_attempts"`
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
}

// BackoffBase returns the initial reconnect delay.
func (c ClientConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the reconnect delay cap.
func (c ClientConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// ConnectTimeout returns how long a dial may stay in "connecting" before it
// is treated as failed.
func (c ClientConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	return &cfg, nil
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
