// Package config holds the runtime configuration for the game server.
// Values are resolved in three layers: compiled defaults, an optional YAML
// file, then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixed runtime constants - these are part of the protocol contract with
// clients and are not configurable.
const (
	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength = 6

	// RoomCodeAlphabet is the character set room codes are drawn from.
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// MaxAccumulatedMs clamps the tick accumulator to prevent a
	// spiral-of-death after a long stall.
	MaxAccumulatedMs = 100

	// TickWarningThresholdMs marks a tick as slow when its processing
	// duration exceeds this many milliseconds.
	TickWarningThresholdMs = 10

	// TelemetryWindow is how many tick durations the scheduler retains
	// for percentile reporting.
	TelemetryWindow = 1000

	// ProtocolVersion is the envelope version the server speaks.
	ProtocolVersion = "1.0.0"
)

// Config is the server configuration consumed by the room runtime.
type Config struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	LogFormat string `yaml:"logFormat"` // "json" or "console"

	TickRate          int   `yaml:"tickRate"` // Hz, 20-60
	SnapshotRate      int   `yaml:"snapshotRate"`
	MaxPlayersPerRoom int   `yaml:"maxPlayersPerRoom"`
	MaxRooms          int   `yaml:"maxRooms"`
	RoomIdleTimeoutMs int64 `yaml:"roomIdleTimeoutMs"`
	MaxSequenceDrift  int64 `yaml:"maxSequenceDrift"`
	DeterministicRNG  bool  `yaml:"deterministicRng"`
	CommandTimeoutMs  int64 `yaml:"commandTimeoutMs"`
	UndoJournalSize   int   `yaml:"undoJournalSize"`

	// MessagesPerSecond bounds inbound message rate per session.
	MessagesPerSecond float64 `yaml:"messagesPerSecond"`
	MessageBurst      int     `yaml:"messageBurst"`
}

// Default returns the compiled default configuration.
func Default() *Config {
	return &Config{
		Host:              "0.0.0.0",
		Port:              8080,
		LogFormat:         "console",
		TickRate:          30,
		SnapshotRate:      10,
		MaxPlayersPerRoom: 8,
		MaxRooms:          100,
		RoomIdleTimeoutMs: 1_800_000,
		MaxSequenceDrift:  100,
		DeterministicRNG:  true,
		CommandTimeoutMs:  5,
		UndoJournalSize:   64,
		MessagesPerSecond: 30,
		MessageBurst:      60,
	}
}

// Load resolves configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variable overrides, then validates.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables when set.
func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	envInt("PORT", &c.Port)
	envInt("TICK_RATE", &c.TickRate)
	envInt("SNAPSHOT_RATE", &c.SnapshotRate)
	envInt("MAX_PLAYERS_PER_ROOM", &c.MaxPlayersPerRoom)
	envInt("MAX_ROOMS", &c.MaxRooms)
	envInt64("ROOM_IDLE_TIMEOUT_MS", &c.RoomIdleTimeoutMs)
	envInt64("MAX_SEQUENCE_DRIFT", &c.MaxSequenceDrift)
	envInt64("COMMAND_TIMEOUT_MS", &c.CommandTimeoutMs)
	envInt("UNDO_JOURNAL_SIZE", &c.UndoJournalSize)
	envBool("DETERMINISTIC_RNG", &c.DeterministicRNG)
}

// Validate checks that configured values are within permitted ranges.
func (c *Config) Validate() error {
	if c.TickRate < 20 || c.TickRate > 60 {
		return fmt.Errorf("TICK_RATE must be 20-60 Hz, got %d", c.TickRate)
	}
	if c.SnapshotRate < 1 || c.SnapshotRate > c.TickRate {
		return fmt.Errorf("SNAPSHOT_RATE must be 1-%d Hz, got %d", c.TickRate, c.SnapshotRate)
	}
	if c.MaxPlayersPerRoom < 1 {
		return fmt.Errorf("MAX_PLAYERS_PER_ROOM must be positive, got %d", c.MaxPlayersPerRoom)
	}
	if c.MaxRooms < 1 {
		return fmt.Errorf("MAX_ROOMS must be positive, got %d", c.MaxRooms)
	}
	if c.CommandTimeoutMs < 1 {
		return fmt.Errorf("COMMAND_TIMEOUT_MS must be positive, got %d", c.CommandTimeoutMs)
	}
	if c.UndoJournalSize < 1 {
		return fmt.Errorf("UNDO_JOURNAL_SIZE must be positive, got %d", c.UndoJournalSize)
	}
	return nil
}

// TickInterval returns the fixed timestep between ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// SnapshotInterval returns the wall-time between full state snapshots.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Second / time.Duration(c.SnapshotRate)
}

// CommandTimeout returns the per-command execution budget.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

// RoomIdleTimeout returns how long a lobby may sit idle before collection.
func (c *Config) RoomIdleTimeout() time.Duration {
	return time.Duration(c.RoomIdleTimeoutMs) * time.Millisecond
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
