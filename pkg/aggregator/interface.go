// Package aggregator provides price aggregation strategies and statistical
// outlier filters over sets of source observations.
package aggregator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/sources"
)

const (
	// ModeMedian sorts observations and takes the middle value. Robust to a
	// single compromised source; ignores weights. This is the default.
	ModeMedian = "median"
	// ModeWeighted computes a weighted average using normalized source weights.
	ModeWeighted = "weighted"
	// ModeTWAP combines exponential time decay with source weights.
	ModeTWAP = "twap"
)

// Strategy reduces a cleaned set of observations to one price.
// weights maps source names to their weights (1.0 = standard); strategies
// that are weight-agnostic ignore the map.
type Strategy interface {
	// Name returns the strategy name
	Name() string

	// Aggregate computes one price from the given observations
	Aggregate(observations []sources.Price, weights map[string]float64) (decimal.Decimal, error)
}

// TWAPConfig holds configuration for the TWAP strategy.
type TWAPConfig struct {
	Window time.Duration // observations older than this get zero weight
	Decay  time.Duration // exponential decay constant
}

// NewStrategy creates a strategy based on the specified mode.
func NewStrategy(mode string, logger *logging.Logger) (Strategy, error) {
	return NewStrategyWithConfig(mode, logger, nil)
}

// NewStrategyWithConfig creates a strategy with optional TWAP configuration.
func NewStrategyWithConfig(mode string, logger *logging.Logger, twapConfig *TWAPConfig) (Strategy, error) {
	switch mode {
	case ModeMedian:
		return NewMedianStrategy(logger), nil
	case ModeWeighted:
		return NewWeightedAverageStrategy(logger), nil
	case ModeTWAP:
		var window, decay time.Duration
		if twapConfig != nil {
			window = twapConfig.Window
			decay = twapConfig.Decay
		}
		return NewTWAPStrategy(logger, window, decay), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: median, weighted, twap)", ErrUnknownMode, mode)
	}
}
