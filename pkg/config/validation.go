package config

import "fmt"

var validOutlierMethods = map[string]bool{
	"zscore": true,
	"iqr":    true,
}

var validStrategies = map[string]bool{
	"median":   true,
	"weighted": true,
	"twap":     true,
}

// Validate checks a loaded configuration for consistency. Call after
// ApplyDefaults so optional fields are populated.
func Validate(cfg *Config) error {
	a := &cfg.Aggregation

	if a.MinSources < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinSources, a.MinSources)
	}
	if a.MaxDeviationPercent.IsNegative() {
		return fmt.Errorf("%w: got %s", ErrInvalidMaxDeviation, a.MaxDeviationPercent)
	}
	if a.MaxStaleness.ToDuration() < 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidMaxStaleness, a.MaxStaleness.ToDuration())
	}
	if a.OutlierDetectionEnabled() && !a.OutlierThreshold.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidOutlierThreshold, a.OutlierThreshold)
	}
	if !validOutlierMethods[a.OutlierMethod] {
		return fmt.Errorf("%w: %s (supported: zscore, iqr)", ErrUnknownOutlierMethod, a.OutlierMethod)
	}
	if !validStrategies[a.Strategy] {
		return fmt.Errorf("%w: %s (supported: median, weighted, twap)", ErrUnknownStrategy, a.Strategy)
	}

	if cfg.Cache.MaxSize < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCacheSize, cfg.Cache.MaxSize)
	}

	if cfg.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("%w", ErrInvalidFailureThreshold)
	}
	if cfg.CircuitBreaker.OpenDuration.ToDuration() <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidOpenDuration, cfg.CircuitBreaker.OpenDuration.ToDuration())
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i, sc := range cfg.Sources {
		if sc.Type == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingType, i)
		}
		if sc.Name == "" {
			return fmt.Errorf("%w: source[%d] (%s)", ErrSourceMissingName, i, sc.Type)
		}
		if seen[sc.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSourceName, sc.Name)
		}
		seen[sc.Name] = true
		if sc.Weight < 0 {
			return fmt.Errorf("%w: %s has weight %f", ErrNegativeWeight, sc.Name, sc.Weight)
		}
	}

	return nil
}
