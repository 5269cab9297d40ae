package config

import "errors"

var (
	// ErrInvalidMinSources indicates min_sources is below 1.
	ErrInvalidMinSources = errors.New("min_sources must be at least 1")
	// ErrInvalidMaxDeviation indicates max_deviation_percent is negative.
	ErrInvalidMaxDeviation = errors.New("max_deviation_percent must not be negative")
	// ErrInvalidMaxStaleness indicates max_staleness is negative.
	ErrInvalidMaxStaleness = errors.New("max_staleness must not be negative")
	// ErrInvalidOutlierThreshold indicates outlier_threshold is not positive.
	ErrInvalidOutlierThreshold = errors.New("outlier_threshold must be positive")
	// ErrUnknownOutlierMethod indicates an unsupported outlier_method.
	ErrUnknownOutlierMethod = errors.New("unknown outlier_method")
	// ErrUnknownStrategy indicates an unsupported aggregation strategy.
	ErrUnknownStrategy = errors.New("unknown aggregation strategy")
	// ErrInvalidCacheSize indicates cache max_size is below 1.
	ErrInvalidCacheSize = errors.New("cache max_size must be at least 1")
	// ErrInvalidFailureThreshold indicates failure_threshold is below 1.
	ErrInvalidFailureThreshold = errors.New("circuit breaker failure_threshold must be at least 1")
	// ErrInvalidOpenDuration indicates open_duration is not positive.
	ErrInvalidOpenDuration = errors.New("circuit breaker open_duration must be positive")
	// ErrSourceMissingType indicates a source entry without a type.
	ErrSourceMissingType = errors.New("source entry missing type")
	// ErrSourceMissingName indicates a source entry without a name.
	ErrSourceMissingName = errors.New("source entry missing name")
	// ErrDuplicateSourceName indicates two source entries sharing a name.
	ErrDuplicateSourceName = errors.New("duplicate source name")
	// ErrNegativeWeight indicates a source entry with a negative weight.
	ErrNegativeWeight = errors.New("source weight must not be negative")
)
