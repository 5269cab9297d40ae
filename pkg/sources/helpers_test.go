package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/price-oracle/pkg/logging"
)

func TestParsePairsFromMap(t *testing.T) {
	config := map[string]interface{}{
		"pairs": map[string]interface{}{
			"BTC/USDT": "BTCUSDT",
			"ETH/USD":  "ethereum",
		},
	}

	pairs, err := ParsePairsFromMap(config)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", pairs["BTC/USDT"])
	assert.Equal(t, "ethereum", pairs["ETH/USD"])
}

func TestParsePairsFromMap_MissingKey(t *testing.T) {
	_, err := ParsePairsFromMap(map[string]interface{}{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParsePairsFromMap_WrongType(t *testing.T) {
	_, err := ParsePairsFromMap(map[string]interface{}{
		"pairs": []string{"BTC/USDT"},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParsePairsFromMap(map[string]interface{}{
		"pairs": map[string]interface{}{"BTC/USDT": 42},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParsePairsFromMap_InvalidSymbol(t *testing.T) {
	_, err := ParsePairsFromMap(map[string]interface{}{
		"pairs": map[string]interface{}{"BTCUSDT": "BTCUSDT"},
	})
	assert.ErrorIs(t, err, ErrInvalidSymbolFormat)
}

func TestParsePairsFromMap_Empty(t *testing.T) {
	_, err := ParsePairsFromMap(map[string]interface{}{
		"pairs": map[string]interface{}{},
	})
	assert.ErrorIs(t, err, ErrNoPairsConfigured)
}

func TestGetLoggerFromConfig(t *testing.T) {
	logger := logging.NewNoopLogger()

	assert.Same(t, logger, GetLoggerFromConfig(map[string]interface{}{"logger": logger}))

	// Missing or wrong-typed logger falls back to a noop
	assert.NotNil(t, GetLoggerFromConfig(map[string]interface{}{}))
	assert.NotNil(t, GetLoggerFromConfig(map[string]interface{}{"logger": "nope"}))
}

func TestBaseSource(t *testing.T) {
	pairs := map[string]string{"BTC/USDT": "BTCUSDT", "ETH/USD": "ETHUSDT"}
	b := NewBaseSource("testsource", SourceTypeCEX, "test source", "1.0.0", pairs, logging.NewNoopLogger())

	assert.Equal(t, "testsource", b.Name())
	assert.Equal(t, SourceTypeCEX, b.Type())
	assert.True(t, b.IsHealthy())

	b.SetHealthy(false)
	assert.False(t, b.IsHealthy())

	assert.Equal(t, "BTCUSDT", b.SourceSymbol("BTC/USDT"))
	assert.Equal(t, "", b.SourceSymbol("DOGE/USD"))
	assert.Equal(t, "ETH/USD", b.UnifiedSymbol("ETHUSDT"))
	assert.Equal(t, "", b.UnifiedSymbol("DOGEUSDT"))

	info := b.Info()
	assert.Equal(t, "testsource", info.Name)
	assert.Equal(t, "1.0.0", info.Version)
	assert.ElementsMatch(t, []string{"BTC/USDT", "ETH/USD"}, info.SupportedSymbols)
}
