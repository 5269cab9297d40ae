package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Aggregation    AggregationConfig    `yaml:"aggregation"`
	Cache          CacheConfig          `yaml:"cache"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Sources        []SourceConfig       `yaml:"sources"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServerConfig configures the query API surface
type ServerConfig struct {
	HTTP            HTTPConfig `yaml:"http"`
	WebSocket       WSConfig   `yaml:"websocket"`
	Symbols         []string   `yaml:"symbols"`          // symbols served by default and streamed over WebSocket
	RefreshInterval Duration   `yaml:"refresh_interval"` // interval of the background aggregation loop feeding WebSocket clients
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AggregationConfig configures one aggregation pass. The engine holds an
// immutable snapshot of this struct and replaces it atomically on updates.
type AggregationConfig struct {
	MinSources             int             `yaml:"min_sources"`
	MaxDeviationPercent    decimal.Decimal `yaml:"max_deviation_percent"`
	MaxStaleness           Duration        `yaml:"max_staleness"`
	EnableOutlierDetection *bool           `yaml:"enable_outlier_detection"`
	OutlierThreshold       decimal.Decimal `yaml:"outlier_threshold"`
	OutlierMethod          string          `yaml:"outlier_method"` // "zscore" or "iqr"
	Strategy               string          `yaml:"strategy"`       // "median", "weighted" or "twap"
	TWAPWindow             Duration        `yaml:"twap_window"`
	TWAPDecay              Duration        `yaml:"twap_decay"`
	CallTimeout            Duration        `yaml:"call_timeout"` // per-source request timeout
}

// OutlierDetectionEnabled reports whether outlier detection is on.
// Defaults to true when unset.
func (a *AggregationConfig) OutlierDetectionEnabled() bool {
	return a.EnableOutlierDetection == nil || *a.EnableOutlierDetection
}

// CacheConfig configures the aggregated price cache
type CacheConfig struct {
	TTL            Duration `yaml:"ttl"`
	MaxSize        int      `yaml:"max_size"`
	EnableFallback bool     `yaml:"enable_fallback"` // serve expired entries when live sources cannot satisfy min_sources
}

// CircuitBreakerConfig configures the per-source circuit breakers
type CircuitBreakerConfig struct {
	FailureThreshold uint32   `yaml:"failure_threshold"`
	OpenDuration     Duration `yaml:"open_duration"`
}

// SourceConfig configures a price source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Weight  float64                `yaml:"weight"`
	Config  map[string]interface{} `yaml:"config"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
