// Package cex provides price sources backed by centralized exchange APIs.
package cex

import (
	"tc.com/price-oracle/pkg/sources"
)

func init() {
	sources.Register("cex.binance", NewBinanceSource)
	sources.Register("cex.coingecko", NewCoinGeckoSource)
}
