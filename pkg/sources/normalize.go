package sources

import (
	"strings"
)

// Symbol normalization maps trading pairs to canonical oracle pairs so that
// BTC/USDT, BTC/USD and BTC/USDC all feed the same aggregation.

// Stablecoin aliases, all considered equivalent to USD
var stablecoinAliases = map[string]string{
	"USDT": "USD",
	"USDC": "USD",
	"BUSD": "USD",
	"DAI":  "USD",
	"TUSD": "USD",
}

// Base currency aliases
var baseCurrencyAliases = map[string]string{
	"WBTC": "BTC",
	"WETH": "ETH",
}

// NormalizeSymbol converts a trading pair symbol to its canonical oracle form.
// Examples:
//   - BTC/USDT -> BTC/USD
//   - WETH/USDC -> ETH/USD
//   - BTC/EUR -> BTC/EUR (no change)
func NormalizeSymbol(symbol string) string {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return symbol
	}

	base := strings.ToUpper(parts[0])
	quote := strings.ToUpper(parts[1])

	if normalized, ok := baseCurrencyAliases[base]; ok {
		base = normalized
	}
	if normalized, ok := stablecoinAliases[quote]; ok {
		quote = normalized
	}

	return base + "/" + quote
}

// IsEquivalentSymbol checks if two symbols are equivalent after normalization
func IsEquivalentSymbol(symbol1, symbol2 string) bool {
	return NormalizeSymbol(symbol1) == NormalizeSymbol(symbol2)
}

// ValidateSymbolFormat checks if a symbol is in valid BASE/QUOTE format.
// "BTC/USD" and "EUR/USD" are valid; "BTC", "BTCUSDT" and "" are not.
func ValidateSymbolFormat(symbol string) error {
	if symbol == "" {
		return ErrInvalidSymbolFormat
	}

	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return wrapSymbolErr(ErrInvalidSymbolFormat, symbol)
	}

	base := strings.TrimSpace(parts[0])
	quote := strings.TrimSpace(parts[1])

	if base == "" {
		return wrapSymbolErr(ErrEmptyBaseCurrency, symbol)
	}
	if quote == "" {
		return wrapSymbolErr(ErrEmptyQuoteCurrency, symbol)
	}

	return nil
}
