package oracle

import (
	"time"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/sources"
)

// AggregatedPrice is the engine's output for one symbol: a single trustworthy
// price with a confidence score. Read-only to callers.
type AggregatedPrice struct {
	Symbol           string          `json:"symbol"`
	Price            decimal.Decimal `json:"price"`
	Timestamp        time.Time       `json:"timestamp"`
	Confidence       float64         `json:"confidence"` // in [0,1]
	SourcesUsed      []string        `json:"sources_used"`
	OutliersFiltered []string        `json:"outliers_filtered,omitempty"`
	SourceCount      int             `json:"source_count"`
	Stale            bool            `json:"stale,omitempty"` // set when served from an expired cache entry
}

// Result is the per-symbol outcome of a batch aggregation. Each symbol fails
// or succeeds independently.
type Result struct {
	Symbol string
	Price  *AggregatedPrice
	Err    error
}

// SourceStatus is a diagnostic snapshot of one registered source.
type SourceStatus struct {
	Info      sources.SourceInfo `json:"info"`
	Weight    float64            `json:"weight"`
	Healthy   bool               `json:"healthy"`   // the adapter's own health signal
	Queryable bool               `json:"queryable"` // false when the circuit breaker is open
}

// ConfigUpdate is a partial aggregation config; nil fields keep their
// current value. Applied atomically for new calls.
type ConfigUpdate struct {
	MinSources             *int
	MaxDeviationPercent    *decimal.Decimal
	MaxStaleness           *time.Duration
	EnableOutlierDetection *bool
	OutlierThreshold       *decimal.Decimal
	OutlierMethod          *string
	CallTimeout            *time.Duration
}
