package aggregator

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
	"tc.com/price-oracle/pkg/sources"
)

const (
	defaultTWAPWindow = 3 * time.Minute
	defaultTWAPDecay  = 1 * time.Minute
)

// TWAPStrategy computes a time-weighted average price. Observations closer to
// now weigh more via exponential decay; observations older than the window
// weigh zero. The time weight is combined with the normalized source weight.
// When every observation falls outside the window the strategy degrades to a
// simple unweighted average instead of failing.
type TWAPStrategy struct {
	logger *logging.Logger
	window time.Duration
	decay  time.Duration

	// now is overridable for tests
	now func() time.Time
}

// Ensure TWAPStrategy implements Strategy interface.
var _ Strategy = (*TWAPStrategy)(nil)

// NewTWAPStrategy creates a new TWAP strategy. Zero window or decay values
// fall back to the defaults (3m window, 1m decay).
func NewTWAPStrategy(logger *logging.Logger, window, decay time.Duration) *TWAPStrategy {
	if window <= 0 {
		window = defaultTWAPWindow
	}
	if decay <= 0 {
		decay = defaultTWAPDecay
	}
	return &TWAPStrategy{
		logger: logger,
		window: window,
		decay:  decay,
		now:    time.Now,
	}
}

// Name returns the strategy name
func (s *TWAPStrategy) Name() string {
	return ModeTWAP
}

// Aggregate computes sum(price_i * w_i) / sum(w_i) where
// w_i = timeWeight(age_i) * sourceWeight_i.
func (s *TWAPStrategy) Aggregate(observations []sources.Price, weights map[string]float64) (decimal.Decimal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation(ModeTWAP, time.Since(start))
	}()

	if len(observations) == 0 {
		return decimal.Zero, ErrEmptyObservationSet
	}

	if len(observations) == 1 {
		return observations[0].Price, nil
	}

	now := s.now()
	normalized := NormalizeWeights(observations, weights)

	numerator := decimal.Zero
	denominator := decimal.Zero
	for _, obs := range observations {
		w := s.timeWeight(now.Sub(obs.Timestamp)) * normalized[obs.Source]
		if w <= 0 {
			continue
		}
		wd := decimal.NewFromFloat(w)
		numerator = numerator.Add(obs.Price.Mul(wd))
		denominator = denominator.Add(wd)
	}

	if denominator.IsZero() {
		// Every observation aged out of the window. A stale answer beats none.
		s.logger.Warn("All observations outside TWAP window, using simple average",
			"observations", len(observations),
			"window", s.window.String())
		return simpleAverage(observations), nil
	}

	return numerator.Div(denominator), nil
}

// timeWeight returns exp(-age/decay) within the window and 0 outside it.
// For age=0 the weight is 1.0; at age=decay it is roughly 0.368.
func (s *TWAPStrategy) timeWeight(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if age > s.window {
		return 0
	}
	return math.Exp(-float64(age) / float64(s.decay))
}

// simpleAverage computes the unweighted arithmetic mean.
func simpleAverage(observations []sources.Price) decimal.Decimal {
	sum := decimal.Zero
	for _, obs := range observations {
		sum = sum.Add(obs.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(observations))))
}
