package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
	"tc.com/price-oracle/pkg/sources"
)

// WeightedAverageStrategy aggregates prices using a normalized weighted
// average over the source weight map.
type WeightedAverageStrategy struct {
	logger *logging.Logger
}

// Ensure WeightedAverageStrategy implements Strategy interface.
var _ Strategy = (*WeightedAverageStrategy)(nil)

// NewWeightedAverageStrategy creates a new weighted average strategy.
func NewWeightedAverageStrategy(logger *logging.Logger) *WeightedAverageStrategy {
	return &WeightedAverageStrategy{logger: logger}
}

// Name returns the strategy name
func (s *WeightedAverageStrategy) Name() string {
	return ModeWeighted
}

// Aggregate computes sum(price_i * normalizedWeight_i) over the observations.
func (s *WeightedAverageStrategy) Aggregate(observations []sources.Price, weights map[string]float64) (decimal.Decimal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation(ModeWeighted, time.Since(start))
	}()

	if len(observations) == 0 {
		return decimal.Zero, ErrEmptyObservationSet
	}

	if len(observations) == 1 {
		return observations[0].Price, nil
	}

	normalized := NormalizeWeights(observations, weights)

	sum := decimal.Zero
	for _, obs := range observations {
		w := decimal.NewFromFloat(normalized[obs.Source])
		sum = sum.Add(obs.Price.Mul(w))
	}

	s.logger.Debug("Computed weighted average",
		"observations", len(observations),
		"price", sum.String())

	return sum, nil
}
