package oracle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/price-oracle/pkg/aggregator"
	"tc.com/price-oracle/pkg/config"
	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/sources"
)

// mockSource is a scriptable in-memory price source.
type mockSource struct {
	name string

	mu         sync.Mutex
	price      decimal.Decimal
	age        time.Duration // observation age reported to the engine
	err        error
	failSymbol string // when set, only this symbol fails
	calls      int
}

func newMockSource(name string, price float64) *mockSource {
	return &mockSource{name: name, price: decimal.NewFromFloat(price)}
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) GetPrice(_ context.Context, symbol string) (sources.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil && (m.failSymbol == "" || m.failSymbol == symbol) {
		return sources.Price{}, m.err
	}
	return sources.Price{
		Symbol:    symbol,
		Price:     m.price,
		Timestamp: time.Now().Add(-m.age),
		Source:    m.name,
	}, nil
}

func (m *mockSource) GetPrices(ctx context.Context, symbols []string) ([]sources.Price, error) {
	prices := make([]sources.Price, 0, len(symbols))
	for _, symbol := range symbols {
		p, err := m.GetPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}

func (m *mockSource) IsHealthy() bool { return true }

func (m *mockSource) Info() sources.SourceInfo {
	return sources.SourceInfo{Name: m.name, Description: "mock source"}
}

func (m *mockSource) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errProvider = assert.AnError

func testAggConfig() config.AggregationConfig {
	return config.DefaultAggregation()
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		TTL:     config.Duration(time.Minute),
		MaxSize: 10,
	}
}

func testBreakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		FailureThreshold: 3,
		OpenDuration:     config.Duration(time.Minute),
	}
}

func newTestEngine(t *testing.T, aggCfg config.AggregationConfig, cacheCfg config.CacheConfig, cbCfg config.CircuitBreakerConfig, srcs ...sources.Source) *Engine {
	t.Helper()

	engine, err := New(aggCfg, cacheCfg, cbCfg, logging.NewNoopLogger())
	require.NoError(t, err)

	for _, src := range srcs {
		require.NoError(t, engine.AddSource(src, 1.0))
	}
	return engine
}

func TestEngine_MedianHappyPath(t *testing.T) {
	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(),
		newMockSource("a", 100),
		newMockSource("b", 102),
		newMockSource("c", 104),
	)

	price, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	assert.Equal(t, "BTC/USD", price.Symbol)
	assert.True(t, price.Price.Equal(decimal.NewFromInt(102)), "got %s", price.Price)
	assert.Equal(t, 3, price.SourceCount)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, price.SourcesUsed)
	assert.Empty(t, price.OutliersFiltered)
	assert.InDelta(t, 1.0, price.Confidence, 1e-9)
	assert.False(t, price.Stale)
}

func TestEngine_NoSourcesRegistered(t *testing.T) {
	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig())

	_, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, ErrNoSourcesRegistered)
}

func TestEngine_DuplicateSource(t *testing.T) {
	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(),
		newMockSource("a", 100))

	err := engine.AddSource(newMockSource("a", 200), 1.0)
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestEngine_RemoveSource(t *testing.T) {
	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(),
		newMockSource("a", 100))

	require.NoError(t, engine.RemoveSource("a"))
	assert.ErrorIs(t, engine.RemoveSource("a"), ErrUnknownSource)
}

func TestEngine_InsufficientSources(t *testing.T) {
	bad := newMockSource("bad", 100)
	bad.setErr(errProvider)

	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(),
		newMockSource("good", 100), bad)

	_, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, ErrInsufficientSources)
}

func TestEngine_CacheHitSkipsSources(t *testing.T) {
	a := newMockSource("a", 100)
	b := newMockSource("b", 102)
	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(), a, b)

	first, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	second, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	assert.True(t, first.Price.Equal(second.Price))
	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
}

func TestEngine_StaleFallback(t *testing.T) {
	a := newMockSource("a", 100)
	b := newMockSource("b", 102)

	cacheCfg := testCacheConfig()
	cacheCfg.TTL = config.Duration(time.Millisecond)
	cacheCfg.EnableFallback = true

	engine := newTestEngine(t, testAggConfig(), cacheCfg, testBreakerConfig(), a, b)

	first, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)
	require.False(t, first.Stale)

	time.Sleep(5 * time.Millisecond)
	a.setErr(errProvider)
	b.setErr(errProvider)

	fallback, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	assert.True(t, fallback.Stale)
	assert.True(t, fallback.Price.Equal(first.Price))
	assert.InDelta(t, first.Confidence*0.5, fallback.Confidence, 1e-9)
}

func TestEngine_NoFallbackWithoutCacheEntry(t *testing.T) {
	a := newMockSource("a", 100)
	a.setErr(errProvider)

	cacheCfg := testCacheConfig()
	cacheCfg.EnableFallback = true

	engine := newTestEngine(t, testAggConfig(), cacheCfg, testBreakerConfig(), a)

	_, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, ErrInsufficientSources)
}

func TestEngine_OutlierExcluded(t *testing.T) {
	aggCfg := testAggConfig()
	aggCfg.OutlierThreshold = decimal.NewFromFloat(1.5)

	engine := newTestEngine(t, aggCfg, testCacheConfig(), testBreakerConfig(),
		newMockSource("a", 100),
		newMockSource("b", 100),
		newMockSource("c", 100),
		newMockSource("d", 100),
		newMockSource("evil", 500),
	)

	price, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	assert.True(t, price.Price.Equal(decimal.NewFromInt(100)), "got %s", price.Price)
	assert.Equal(t, []string{"evil"}, price.OutliersFiltered)
	assert.NotContains(t, price.SourcesUsed, "evil")
	assert.Equal(t, 4, price.SourceCount)

	// 4 of 5 sources used, one outlier penalty on top
	assert.InDelta(t, 0.7, price.Confidence, 1e-9)
}

func TestEngine_StaleObservationsDropped(t *testing.T) {
	old := newMockSource("old", 104)
	old.age = 2 * time.Minute // beyond the 60s staleness default

	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(),
		newMockSource("a", 100),
		newMockSource("b", 102),
		old,
	)

	price, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, price.SourcesUsed)
	assert.True(t, price.Price.Equal(decimal.NewFromInt(101)), "got %s", price.Price)
	assert.InDelta(t, 2.0/3.0, price.Confidence, 1e-9)
}

func TestEngine_DeviationFiltered(t *testing.T) {
	aggCfg := testAggConfig()
	off := false
	aggCfg.EnableOutlierDetection = &off

	engine := newTestEngine(t, aggCfg, testCacheConfig(), testBreakerConfig(),
		newMockSource("a", 100),
		newMockSource("b", 101),
		newMockSource("drifter", 130),
	)

	price, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	// 130 deviates ~28% from the median, above the 10% default.
	assert.ElementsMatch(t, []string{"a", "b"}, price.SourcesUsed)
	assert.True(t, price.Price.Equal(decimal.NewFromFloat(100.5)), "got %s", price.Price)

	// Deviation drops are not statistical outliers.
	assert.Empty(t, price.OutliersFiltered)
}

func TestEngine_BreakerSkipsOpenSource(t *testing.T) {
	bad := newMockSource("bad", 100)
	bad.setErr(errProvider)

	cbCfg := testBreakerConfig()
	cbCfg.FailureThreshold = 2

	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), cbCfg,
		newMockSource("a", 100),
		newMockSource("b", 102),
		bad,
	)

	// Distinct symbols bypass the price cache; the breaker state is per
	// source, not per symbol.
	for _, symbol := range []string{"BTC/USD", "ETH/USD"} {
		_, err := engine.GetAggregatedPrice(context.Background(), symbol)
		require.NoError(t, err)
	}
	require.Equal(t, 2, bad.callCount())

	// Breaker is open now; the source must not be invoked again.
	price, err := engine.GetAggregatedPrice(context.Background(), "ATOM/USD")
	require.NoError(t, err)
	assert.Equal(t, 2, bad.callCount())
	assert.Equal(t, 2, price.SourceCount)

	health := engine.SourceHealth()
	assert.False(t, health["bad"])
	assert.True(t, health["a"])
}

func TestEngine_GetAggregatedPrices(t *testing.T) {
	a := newMockSource("a", 100)
	a.err = errProvider
	a.failSymbol = "FAIL/USD"
	b := newMockSource("b", 102)
	b.err = errProvider
	b.failSymbol = "FAIL/USD"

	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(), a, b)

	results := engine.GetAggregatedPrices(context.Background(), []string{"BTC/USD", "FAIL/USD"})
	require.Len(t, results, 2)

	assert.Equal(t, "BTC/USD", results[0].Symbol)
	require.NoError(t, results[0].Err)
	assert.True(t, results[0].Price.Price.Equal(decimal.NewFromInt(101)))

	assert.Equal(t, "FAIL/USD", results[1].Symbol)
	assert.ErrorIs(t, results[1].Err, ErrInsufficientSources)
	assert.Nil(t, results[1].Price)
}

func TestEngine_SetStrategy(t *testing.T) {
	engine, err := New(testAggConfig(), testCacheConfig(), testBreakerConfig(), logging.NewNoopLogger())
	require.NoError(t, err)

	require.NoError(t, engine.AddSource(newMockSource("a", 100), 3.0))
	require.NoError(t, engine.AddSource(newMockSource("b", 200), 1.0))

	price, err := engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.True(t, price.Price.Equal(decimal.NewFromInt(150)), "median, got %s", price.Price)

	weighted, err := aggregator.NewStrategy(aggregator.ModeWeighted, logging.NewNoopLogger())
	require.NoError(t, err)
	engine.SetStrategy(weighted)
	engine.ClearCache()

	price, err = engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)

	// 100*0.75 + 200*0.25
	assert.True(t, price.Price.Equal(decimal.NewFromInt(125)), "weighted, got %s", price.Price)
}

func TestEngine_UpdateConfig(t *testing.T) {
	engine := newTestEngine(t, testAggConfig(), testCacheConfig(), testBreakerConfig(),
		newMockSource("a", 100),
		newMockSource("b", 102),
	)

	zero := 0
	err := engine.UpdateConfig(ConfigUpdate{MinSources: &zero})
	assert.ErrorIs(t, err, config.ErrInvalidMinSources)

	badMethod := "mad"
	err = engine.UpdateConfig(ConfigUpdate{OutlierMethod: &badMethod})
	assert.Error(t, err)

	three := 3
	require.NoError(t, engine.UpdateConfig(ConfigUpdate{MinSources: &three}))

	_, err = engine.GetAggregatedPrice(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, ErrInsufficientSources)
}

func TestEngine_SourceStatus(t *testing.T) {
	engine, err := New(testAggConfig(), testCacheConfig(), testBreakerConfig(), logging.NewNoopLogger())
	require.NoError(t, err)

	require.NoError(t, engine.AddSource(newMockSource("a", 100), 2.0))
	require.NoError(t, engine.AddSource(newMockSource("b", 102), 1.0))

	statuses := engine.SourceStatus()
	require.Len(t, statuses, 2)

	byName := make(map[string]SourceStatus, len(statuses))
	for _, st := range statuses {
		byName[st.Info.Name] = st
	}
	assert.Equal(t, 2.0, byName["a"].Weight)
	assert.Equal(t, 1.0, byName["b"].Weight)
	assert.True(t, byName["a"].Healthy)
	assert.True(t, byName["a"].Queryable)
}
