// Package oracle implements the price aggregation engine: it fans out to the
// registered sources, cleans their observations and reduces them to one
// trustworthy price per symbol.
package oracle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tc.com/price-oracle/pkg/aggregator"
	"tc.com/price-oracle/pkg/breaker"
	"tc.com/price-oracle/pkg/cache"
	"tc.com/price-oracle/pkg/config"
	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
	"tc.com/price-oracle/pkg/sources"
)

// outlierConfidencePenalty is subtracted from the confidence score per
// filtered outlier.
const outlierConfidencePenalty = 0.1

// staleConfidenceFactor scales the confidence of stale fallback answers.
const staleConfidenceFactor = 0.5

// strategyBox wraps the strategy interface for atomic storage.
type strategyBox struct {
	strategy aggregator.Strategy
}

// Engine coordinates concurrent source calls, the validation and cleaning
// pipeline, the circuit breakers and the price cache. Construct one Engine
// explicitly and share it by reference; there is no process-wide instance.
type Engine struct {
	logger   *logging.Logger
	cacheCfg config.CacheConfig

	cfg      atomic.Pointer[config.AggregationConfig]
	strategy atomic.Pointer[strategyBox]

	cache    *cache.Cache[AggregatedPrice]
	breakers *breaker.Registry

	mu      sync.RWMutex
	sources map[string]sources.Source
	weights map[string]float64
}

// New creates an engine from validated configuration. The initial strategy
// is built from the aggregation config.
func New(aggCfg config.AggregationConfig, cacheCfg config.CacheConfig, cbCfg config.CircuitBreakerConfig, logger *logging.Logger) (*Engine, error) {
	strat, err := aggregator.NewStrategyWithConfig(aggCfg.Strategy, logger, &aggregator.TWAPConfig{
		Window: aggCfg.TWAPWindow.ToDuration(),
		Decay:  aggCfg.TWAPDecay.ToDuration(),
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		logger:   logger,
		cacheCfg: cacheCfg,
		cache:    cache.New[AggregatedPrice](cacheCfg.TTL.ToDuration(), cacheCfg.MaxSize),
		breakers: breaker.NewRegistry(breaker.Config{
			FailureThreshold: cbCfg.FailureThreshold,
			OpenDuration:     cbCfg.OpenDuration.ToDuration(),
		}, logger),
		sources: make(map[string]sources.Source),
		weights: make(map[string]float64),
	}
	e.cfg.Store(&aggCfg)
	e.strategy.Store(&strategyBox{strategy: strat})

	return e, nil
}

// AddSource registers a source with the given weight and initializes its
// circuit breaker to closed. A non-positive weight defaults to 1.0.
func (e *Engine) AddSource(src sources.Source, weight float64) error {
	if weight <= 0 {
		weight = 1.0
	}

	name := src.Name()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sources[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, name)
	}

	e.sources[name] = src
	e.weights[name] = weight
	e.breakers.Register(name)

	e.logger.Info("Registered price source", "source", name, "weight", weight)
	return nil
}

// RemoveSource unregisters a source and destroys its breaker state.
func (e *Engine) RemoveSource(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sources[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	delete(e.sources, name)
	delete(e.weights, name)
	e.breakers.Remove(name)

	e.logger.Info("Removed price source", "source", name)
	return nil
}

// SetStrategy hot-swaps the aggregation strategy. In-flight aggregations keep
// the strategy that was current at their start.
func (e *Engine) SetStrategy(strategy aggregator.Strategy) {
	if strategy == nil {
		return
	}
	e.strategy.Store(&strategyBox{strategy: strategy})
	e.logger.Info("Aggregation strategy changed", "strategy", strategy.Name())
}

// UpdateConfig merges the partial update into the current aggregation config.
// Effective immediately for new calls; validation errors surface here.
func (e *Engine) UpdateConfig(update ConfigUpdate) error {
	for {
		current := e.cfg.Load()
		next := *current

		if update.MinSources != nil {
			if *update.MinSources < 1 {
				return fmt.Errorf("%w: got %d", config.ErrInvalidMinSources, *update.MinSources)
			}
			next.MinSources = *update.MinSources
		}
		if update.MaxDeviationPercent != nil {
			if update.MaxDeviationPercent.IsNegative() {
				return fmt.Errorf("%w: got %s", config.ErrInvalidMaxDeviation, update.MaxDeviationPercent)
			}
			next.MaxDeviationPercent = *update.MaxDeviationPercent
		}
		if update.MaxStaleness != nil {
			if *update.MaxStaleness < 0 {
				return fmt.Errorf("%w: got %s", config.ErrInvalidMaxStaleness, *update.MaxStaleness)
			}
			next.MaxStaleness = config.Duration(*update.MaxStaleness)
		}
		if update.EnableOutlierDetection != nil {
			enabled := *update.EnableOutlierDetection
			next.EnableOutlierDetection = &enabled
		}
		if update.OutlierThreshold != nil {
			if !update.OutlierThreshold.IsPositive() {
				return fmt.Errorf("%w: got %s", config.ErrInvalidOutlierThreshold, update.OutlierThreshold)
			}
			next.OutlierThreshold = *update.OutlierThreshold
		}
		if update.OutlierMethod != nil {
			if _, err := aggregator.NewOutlierFilter(*update.OutlierMethod, next.OutlierThreshold, e.logger); err != nil {
				return err
			}
			next.OutlierMethod = *update.OutlierMethod
		}
		if update.CallTimeout != nil {
			next.CallTimeout = config.Duration(*update.CallTimeout)
		}

		if e.cfg.CompareAndSwap(current, &next) {
			return nil
		}
	}
}

// SourceHealth returns whether each registered source is queryable: true for
// closed and half-open breakers, false for open ones.
func (e *Engine) SourceHealth() map[string]bool {
	health := e.breakers.Health()

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]bool, len(e.sources))
	for name := range e.sources {
		out[name] = health[name]
	}
	return out
}

// SourceStatus returns a diagnostic snapshot of every registered source.
func (e *Engine) SourceStatus() []SourceStatus {
	health := e.breakers.Health()

	e.mu.RLock()
	defer e.mu.RUnlock()

	statuses := make([]SourceStatus, 0, len(e.sources))
	for name, src := range e.sources {
		statuses = append(statuses, SourceStatus{
			Info:      src.Info(),
			Weight:    e.weights[name],
			Healthy:   src.IsHealthy(),
			Queryable: health[name],
		})
	}
	return statuses
}

// ClearCache empties the aggregated price cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// GetAggregatedPrice runs the full aggregation pipeline for one symbol.
func (e *Engine) GetAggregatedPrice(ctx context.Context, symbol string) (*AggregatedPrice, error) {
	e.mu.RLock()
	total := len(e.sources)
	srcs := make([]sources.Source, 0, total)
	weights := make(map[string]float64, total)
	for name, src := range e.sources {
		srcs = append(srcs, src)
		weights[name] = e.weights[name]
	}
	e.mu.RUnlock()

	if total == 0 {
		return nil, ErrNoSourcesRegistered
	}

	// Cache hit short-circuits the pipeline; the TTL bounds provider call
	// volume independently of max_staleness.
	if cached, ok := e.cache.Get(symbol); ok {
		metrics.RecordCacheHit()
		return &cached, nil
	}
	metrics.RecordCacheMiss()

	cfg := e.cfg.Load()
	strat := e.strategy.Load().strategy

	observations := e.collect(ctx, symbol, srcs, cfg.CallTimeout.ToDuration())

	observations = filterStale(observations, cfg.MaxStaleness.ToDuration())

	var outlierSources []string
	if cfg.OutlierDetectionEnabled() {
		filter, err := aggregator.NewOutlierFilter(cfg.OutlierMethod, cfg.OutlierThreshold, e.logger)
		if err != nil {
			// Config was validated on the way in, so this only trips on a
			// torn manual snapshot. Proceed unfiltered.
			e.logger.Error("Invalid outlier method, skipping filter", "method", cfg.OutlierMethod)
		} else {
			var outliers []sources.Price
			observations, outliers = filter.Filter(observations)
			for _, o := range outliers {
				outlierSources = append(outlierSources, o.Source)
			}
		}
	}

	if len(observations) < cfg.MinSources {
		return e.fallback(symbol, len(observations), cfg.MinSources)
	}

	observations = filterByDeviation(observations, cfg.MaxDeviationPercent)

	if len(observations) < cfg.MinSources {
		return e.fallback(symbol, len(observations), cfg.MinSources)
	}

	price, err := strat.Aggregate(observations, weights)
	if err != nil {
		return e.fallback(symbol, 0, cfg.MinSources)
	}

	used := make([]string, len(observations))
	for i, obs := range observations {
		used[i] = obs.Source
	}

	agg := AggregatedPrice{
		Symbol:           symbol,
		Price:            price,
		Timestamp:        time.Now(),
		Confidence:       confidence(len(used), total, len(outlierSources)),
		SourcesUsed:      used,
		OutliersFiltered: outlierSources,
		SourceCount:      len(used),
	}

	e.cache.Set(symbol, agg)

	e.logger.Debug("Aggregated price",
		"symbol", symbol,
		"price", price.String(),
		"sources", len(used),
		"outliers", len(outlierSources),
		"confidence", agg.Confidence)

	return &agg, nil
}

// GetAggregatedPrices aggregates each symbol independently and concurrently.
// One symbol's failure never aborts the others.
func (e *Engine) GetAggregatedPrices(ctx context.Context, symbols []string) []Result {
	results := make([]Result, len(symbols))

	var g errgroup.Group
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			price, err := e.GetAggregatedPrice(ctx, symbol)
			results[i] = Result{Symbol: symbol, Price: price, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// collect queries every source whose breaker admits the call, one goroutine
// per source with its own timeout, and joins before returning. Results land
// in a fixed slice indexed by source; failures and timeouts are recorded
// against the source's breaker and dropped.
func (e *Engine) collect(ctx context.Context, symbol string, srcs []sources.Source, timeout time.Duration) []sources.Price {
	results := make([]*sources.Price, len(srcs))

	var g errgroup.Group
	for i, src := range srcs {
		done, err := e.breakers.Allow(src.Name())
		if err != nil {
			// Breaker open: skip without invoking the source.
			e.logger.Debug("Skipping source, breaker open", "source", src.Name(), "symbol", symbol)
			continue
		}

		i, src := i, src
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			price, err := src.GetPrice(callCtx, symbol)
			metrics.RecordSourceRequest(src.Name(), err == nil, time.Since(start))
			done(err == nil)

			if err != nil {
				// Provider errors are absorbed here; they only affect breaker
				// state and observation availability.
				e.logger.Debug("Source request failed",
					"source", src.Name(), "symbol", symbol, "error", err.Error())
				return nil
			}

			results[i] = &price
			return nil
		})
	}
	_ = g.Wait()

	observations := make([]sources.Price, 0, len(srcs))
	for _, r := range results {
		if r != nil {
			observations = append(observations, *r)
		}
	}
	return observations
}

// fallback serves the last cached price, expired or not, when the live
// pipeline cannot satisfy min_sources and fallback is enabled.
func (e *Engine) fallback(symbol string, have, need int) (*AggregatedPrice, error) {
	if e.cacheCfg.EnableFallback {
		if cached, insertedAt, ok := e.cache.GetStale(symbol); ok {
			metrics.RecordCacheFallback()
			e.logger.Warn("Serving stale cached price",
				"symbol", symbol,
				"age", time.Since(insertedAt).String(),
				"valid_observations", have)

			cached.Stale = true
			cached.Confidence = cached.Confidence * staleConfidenceFactor
			return &cached, nil
		}
	}

	return nil, fmt.Errorf("%w: %s: %d of %d required observations", ErrInsufficientSources, symbol, have, need)
}

// filterStale drops observations older than the staleness bound.
func filterStale(observations []sources.Price, maxStaleness time.Duration) []sources.Price {
	if maxStaleness <= 0 {
		return observations
	}

	now := time.Now()
	kept := observations[:0]
	for _, obs := range observations {
		if now.Sub(obs.Timestamp) <= maxStaleness {
			kept = append(kept, obs)
		}
	}
	return kept
}

// filterByDeviation drops observations whose relative deviation from the
// group median exceeds maxPercent. Runs after the statistical outlier filter;
// drops here are not blamed as outliers.
func filterByDeviation(observations []sources.Price, maxPercent decimal.Decimal) []sources.Price {
	if len(observations) < 2 {
		return observations
	}

	median := aggregator.MedianOf(observations)
	if median.IsZero() {
		return observations
	}

	hundred := decimal.NewFromInt(100)
	kept := observations[:0]
	for _, obs := range observations {
		deviationPct := obs.Price.Sub(median).Abs().Div(median).Mul(hundred)
		if deviationPct.LessThanOrEqual(maxPercent) {
			kept = append(kept, obs)
		}
	}
	return kept
}

// confidence scores how trustworthy an answer is: the share of the registered
// source population that contributed, with a penalty per filtered outlier.
// Always in [0,1].
func confidence(sourceCount, totalRegistered, outliers int) float64 {
	if sourceCount == 0 {
		return 0
	}

	c := float64(sourceCount) / math.Max(float64(sourceCount), float64(totalRegistered))
	c -= outlierConfidencePenalty * float64(outliers)

	return math.Max(0, math.Min(1, c))
}
