package aggregator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
	"tc.com/price-oracle/pkg/sources"
)

// MedianStrategy aggregates prices by taking the median observation.
// It ignores the weight map entirely.
type MedianStrategy struct {
	logger *logging.Logger
}

// Ensure MedianStrategy implements Strategy interface.
var _ Strategy = (*MedianStrategy)(nil)

// NewMedianStrategy creates a new median strategy.
func NewMedianStrategy(logger *logging.Logger) *MedianStrategy {
	return &MedianStrategy{logger: logger}
}

// Name returns the strategy name
func (s *MedianStrategy) Name() string {
	return ModeMedian
}

// Aggregate computes the median of the observation prices. For an even count
// the two middle values are averaged.
func (s *MedianStrategy) Aggregate(observations []sources.Price, _ map[string]float64) (decimal.Decimal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation(ModeMedian, time.Since(start))
	}()

	if len(observations) == 0 {
		return decimal.Zero, ErrEmptyObservationSet
	}

	if len(observations) == 1 {
		return observations[0].Price, nil
	}

	prices := make([]decimal.Decimal, len(observations))
	for i, obs := range observations {
		prices[i] = obs.Price
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].LessThan(prices[j])
	})

	return medianOfSorted(prices), nil
}

// medianOfSorted computes the median of an ascending price list.
func medianOfSorted(prices []decimal.Decimal) decimal.Decimal {
	n := len(prices)
	if n == 0 {
		return decimal.Zero
	}

	if n%2 == 0 {
		mid1 := prices[n/2-1]
		mid2 := prices[n/2]
		return mid1.Add(mid2).Div(decimal.NewFromInt(2))
	}

	return prices[n/2]
}

// MedianOf computes the median price of an unordered observation set.
// Shared by the deviation check and the IQR filter.
func MedianOf(observations []sources.Price) decimal.Decimal {
	prices := make([]decimal.Decimal, len(observations))
	for i, obs := range observations {
		prices[i] = obs.Price
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].LessThan(prices[j])
	})
	return medianOfSorted(prices)
}
