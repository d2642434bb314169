package config

import (
	"fmt"
	"os"
	"time"

	"ohlc-streamer/src/helpers"
	"ohlc-streamer/src/models"

	"gopkg.in/yaml.v3"
)

// Defaults applied to optional keys left out of the YAML file.
const (
	DefaultTimestampUnit = "ms"
	DefaultMaxRollover   = 100000
	DefaultIdleTimeoutMs = 1000
	DefaultBufferSize    = 1024
	DefaultRetentionDays = 1
)

var timestampUnits = map[string]time.Duration{
	"s":  time.Second,
	"ms": time.Millisecond,
	"us": time.Microsecond,
	"ns": time.Nanosecond,
}

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("invalid config", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Engine.TimestampUnit == "" {
		c.Engine.TimestampUnit = DefaultTimestampUnit
	}
	if c.Engine.MaxRollover == 0 {
		c.Engine.MaxRollover = DefaultMaxRollover
	}
	if c.Engine.IdleTimeoutMs == 0 {
		c.Engine.IdleTimeoutMs = DefaultIdleTimeoutMs
	}
	if c.Pipeline.TradeBuffer == 0 {
		c.Pipeline.TradeBuffer = DefaultBufferSize
	}
	if c.Pipeline.UpdateBuffer == 0 {
		c.Pipeline.UpdateBuffer = DefaultBufferSize
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = DefaultRetentionDays
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation. Failures are returned as
// *helpers.ValidationError.
func (c *Config) Validate() error {
	if err := c.check(); err != nil {
		return helpers.NewValidationError("config validation failed", err)
	}
	return nil
}

func (c *Config) check() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (0 disables, else 1025-65535)", c.GrpcPort)
	}

	// Engine
	if c.Engine.BarInterval == 0 {
		return fmt.Errorf("bar interval must be greater than 0")
	}
	if _, ok := timestampUnits[c.Engine.TimestampUnit]; !ok {
		return fmt.Errorf("unknown timestamp unit '%s'", c.Engine.TimestampUnit)
	}
	if c.Engine.IdleTimeoutMs < 0 {
		return fmt.Errorf("idle timeout cannot be negative")
	}

	// Pipeline
	if c.Pipeline.TradeBuffer < 0 || c.Pipeline.UpdateBuffer < 0 {
		return fmt.Errorf("pipeline buffers cannot be negative")
	}

	// Storage
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type '%s'", c.Storage.DBType)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	// Data source
	if c.DataSource.Path == "" {
		return fmt.Errorf("data source path cannot be empty")
	}
	for i, sym := range c.DataSource.Symbols {
		if _, err := models.ParseSymbol(sym); err != nil {
			return fmt.Errorf("data source symbol %d: %w", i, err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// TimestampUnit returns the wall-clock length of one timestamp unit.
func (c *Config) TimestampUnit() time.Duration {
	if d, ok := timestampUnits[c.Engine.TimestampUnit]; ok {
		return d
	}
	return time.Millisecond
}

// -----------------------------------------------------------------------------

// IdleTimeout is the wait bound of the worker loops.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Engine.IdleTimeoutMs) * time.Millisecond
}
