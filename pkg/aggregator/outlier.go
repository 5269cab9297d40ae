package aggregator

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
	"tc.com/price-oracle/pkg/sources"
)

const (
	// MethodZScore discards observations whose z-score exceeds the threshold.
	MethodZScore = "zscore"
	// MethodIQR discards observations outside the Tukey fences.
	MethodIQR = "iqr"

	// minOutlierSample is the smallest observation count for which outlier
	// detection is statistically meaningful. Smaller sets pass unfiltered.
	minOutlierSample = 3
)

// iqrFenceFactor is the Tukey fence multiplier.
var iqrFenceFactor = decimal.NewFromFloat(1.5)

// OutlierFilter screens observations that are statistical anomalies relative
// to the rest of the set.
type OutlierFilter interface {
	// Name returns the filter method name
	Name() string

	// Filter splits observations into kept and rejected sets
	Filter(observations []sources.Price) (kept, outliers []sources.Price)
}

// NewOutlierFilter creates an outlier filter for the given method. The
// threshold applies to the z-score method only.
func NewOutlierFilter(method string, threshold decimal.Decimal, logger *logging.Logger) (OutlierFilter, error) {
	switch method {
	case MethodZScore:
		return &ZScoreFilter{threshold: threshold, logger: logger}, nil
	case MethodIQR:
		return &IQRFilter{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: zscore, iqr)", ErrUnknownOutlierMethod, method)
	}
}

// ZScoreFilter rejects observations whose distance from the mean exceeds
// threshold standard deviations.
type ZScoreFilter struct {
	threshold decimal.Decimal
	logger    *logging.Logger
}

// Name returns the filter method name
func (f *ZScoreFilter) Name() string {
	return MethodZScore
}

// Filter applies the z-score screen. With identical prices (stddev zero)
// nothing is an outlier.
func (f *ZScoreFilter) Filter(observations []sources.Price) ([]sources.Price, []sources.Price) {
	if len(observations) < minOutlierSample {
		return observations, nil
	}

	mean := simpleAverage(observations)
	stdDev := stdDevOf(observations, mean)
	if stdDev.IsZero() {
		return observations, nil
	}

	kept := make([]sources.Price, 0, len(observations))
	var outliers []sources.Price
	for _, obs := range observations {
		z := obs.Price.Sub(mean).Abs().Div(stdDev)
		if z.GreaterThan(f.threshold) {
			f.logger.Debug("Rejecting outlier (zscore)",
				"symbol", obs.Symbol,
				"source", obs.Source,
				"price", obs.Price.String(),
				"mean", mean.String(),
				"zscore", z.String())
			metrics.RecordOutlierRejection(obs.Symbol, MethodZScore)
			outliers = append(outliers, obs)
			continue
		}
		kept = append(kept, obs)
	}

	return kept, outliers
}

// IQRFilter rejects observations outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR].
type IQRFilter struct {
	logger *logging.Logger
}

// Name returns the filter method name
func (f *IQRFilter) Name() string {
	return MethodIQR
}

// Filter applies the interquartile range screen.
func (f *IQRFilter) Filter(observations []sources.Price) ([]sources.Price, []sources.Price) {
	if len(observations) < minOutlierSample {
		return observations, nil
	}

	prices := make([]decimal.Decimal, len(observations))
	for i, obs := range observations {
		prices[i] = obs.Price
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].LessThan(prices[j])
	})

	q1, q3 := quartiles(prices)
	iqr := q3.Sub(q1)
	lower := q1.Sub(iqr.Mul(iqrFenceFactor))
	upper := q3.Add(iqr.Mul(iqrFenceFactor))

	kept := make([]sources.Price, 0, len(observations))
	var outliers []sources.Price
	for _, obs := range observations {
		if obs.Price.LessThan(lower) || obs.Price.GreaterThan(upper) {
			f.logger.Debug("Rejecting outlier (iqr)",
				"symbol", obs.Symbol,
				"source", obs.Source,
				"price", obs.Price.String(),
				"lower", lower.String(),
				"upper", upper.String())
			metrics.RecordOutlierRejection(obs.Symbol, MethodIQR)
			outliers = append(outliers, obs)
			continue
		}
		kept = append(kept, obs)
	}

	return kept, outliers
}

// quartiles computes Q1 and Q3 of an ascending price list using Tukey's
// median-of-halves; the middle element of an odd-length list belongs to
// neither half.
func quartiles(sorted []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	n := len(sorted)
	mid := n / 2

	lower := sorted[:mid]
	var upper []decimal.Decimal
	if n%2 == 0 {
		upper = sorted[mid:]
	} else {
		upper = sorted[mid+1:]
	}

	return medianOfSorted(lower), medianOfSorted(upper)
}

// stdDevOf computes the population standard deviation of the observation
// prices around the given center.
func stdDevOf(observations []sources.Price, center decimal.Decimal) decimal.Decimal {
	if len(observations) < 2 {
		return decimal.Zero
	}

	sumSquaredDev := decimal.Zero
	for _, obs := range observations {
		deviation := obs.Price.Sub(center)
		sumSquaredDev = sumSquaredDev.Add(deviation.Mul(deviation))
	}

	variance := sumSquaredDev.Div(decimal.NewFromInt(int64(len(observations))))

	// sqrt via float64, precision is ample for a screening threshold
	varianceFloat, _ := variance.Float64()
	return decimal.NewFromFloat(math.Sqrt(varianceFloat))
}
