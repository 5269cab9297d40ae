// Package config provides configuration loading and validation for the price oracle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file with environment variable expansion.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	return &cfg, nil
}

// ApplyDefaults sets default values for optional fields.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.RefreshInterval.ToDuration() == 0 {
		cfg.Server.RefreshInterval = Duration(15 * time.Second)
	}

	cfg.Aggregation = aggregationDefaults(cfg.Aggregation)

	// Cache defaults. The TTL is deliberately shorter than max_staleness: it
	// bounds provider call volume, not observation freshness.
	if cfg.Cache.TTL.ToDuration() == 0 {
		cfg.Cache.TTL = Duration(30 * time.Second)
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = 1000
	}

	// Circuit breaker defaults
	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.CircuitBreaker.OpenDuration.ToDuration() == 0 {
		cfg.CircuitBreaker.OpenDuration = Duration(30 * time.Second)
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// aggregationDefaults fills unset aggregation fields.
func aggregationDefaults(a AggregationConfig) AggregationConfig {
	if a.MinSources == 0 {
		a.MinSources = 2
	}
	if a.MaxDeviationPercent.IsZero() {
		a.MaxDeviationPercent = decimal.NewFromInt(10)
	}
	if a.MaxStaleness.ToDuration() == 0 {
		a.MaxStaleness = Duration(60 * time.Second)
	}
	if a.OutlierThreshold.IsZero() {
		a.OutlierThreshold = decimal.NewFromFloat(2.0)
	}
	if a.OutlierMethod == "" {
		a.OutlierMethod = "zscore"
	}
	if a.Strategy == "" {
		a.Strategy = "median"
	}
	if a.TWAPWindow.ToDuration() == 0 {
		a.TWAPWindow = Duration(3 * time.Minute)
	}
	if a.TWAPDecay.ToDuration() == 0 {
		a.TWAPDecay = Duration(1 * time.Minute)
	}
	if a.CallTimeout.ToDuration() == 0 {
		a.CallTimeout = Duration(5 * time.Second)
	}
	return a
}

// DefaultAggregation returns the default aggregation configuration.
func DefaultAggregation() AggregationConfig {
	return aggregationDefaults(AggregationConfig{})
}

// GetString retrieves a string value from the source configuration.
func (sc *SourceConfig) GetString(key, defaultValue string) string {
	if val, ok := sc.Config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetInt retrieves an integer from source config.
func (sc *SourceConfig) GetInt(key string, defaultValue int) int {
	if val, ok := sc.Config[key]; ok {
		if i, ok := val.(int); ok {
			return i
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean from source config.
func (sc *SourceConfig) GetBool(key string, defaultValue bool) bool {
	if val, ok := sc.Config[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}
