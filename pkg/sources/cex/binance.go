package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/sources"
	"tc.com/price-oracle/pkg/version"
)

const (
	binanceBaseURL = "https://api.binance.com"
	binanceTimeout = 10 * time.Second
	binanceVersion = "1.0.0"
)

// BinanceSource fetches spot prices from the Binance REST API.
type BinanceSource struct {
	*sources.BaseSource
	apiURL string
	client *http.Client
}

// BinancePriceTicker represents price data from the /ticker/price endpoint
type BinancePriceTicker struct {
	Symbol string `json:"symbol"` // e.g., "BTCUSDT"
	Price  string `json:"price"`  // Current price as string decimal
}

// NewBinanceSource creates a new Binance source.
func NewBinanceSource(config map[string]interface{}) (sources.Source, error) {
	logger := sources.GetLoggerFromConfig(config)

	pairs, err := sources.ParsePairsFromMap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pairs: %w", err)
	}

	apiURL := binanceBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	base := sources.NewBaseSource("binance", sources.SourceTypeCEX,
		"Binance spot ticker API", binanceVersion, pairs, logger)

	return &BinanceSource{
		BaseSource: base,
		apiURL:     apiURL,
		client:     &http.Client{Timeout: binanceTimeout},
	}, nil
}

// GetPrice fetches the current price for one unified symbol.
func (s *BinanceSource) GetPrice(ctx context.Context, symbol string) (sources.Price, error) {
	sourceSymbol := s.SourceSymbol(symbol)
	if sourceSymbol == "" {
		return sources.Price{}, fmt.Errorf("%w: %s", sources.ErrInvalidSymbol, symbol)
	}

	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.apiURL, sourceSymbol)
	var ticker BinancePriceTicker
	if err := s.fetchJSON(ctx, url, &ticker); err != nil {
		s.SetHealthy(false)
		return sources.Price{}, err
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		s.SetHealthy(false)
		return sources.Price{}, fmt.Errorf("%w: price %q: %v", sources.ErrInvalidResponse, ticker.Price, err)
	}

	s.SetHealthy(true)
	return sources.Price{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
		Source:    s.Name(),
	}, nil
}

// GetPrices fetches current prices for multiple unified symbols in one call
// using the unfiltered ticker endpoint.
func (s *BinanceSource) GetPrices(ctx context.Context, symbols []string) ([]sources.Price, error) {
	wanted := make(map[string]string, len(symbols)) // source symbol -> unified
	for _, symbol := range symbols {
		if sourceSymbol := s.SourceSymbol(symbol); sourceSymbol != "" {
			wanted[sourceSymbol] = symbol
		}
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidSymbol, symbols)
	}

	url := s.apiURL + "/api/v3/ticker/price"
	var tickers []BinancePriceTicker
	if err := s.fetchJSON(ctx, url, &tickers); err != nil {
		s.SetHealthy(false)
		return nil, err
	}

	now := time.Now()
	prices := make([]sources.Price, 0, len(wanted))
	for _, ticker := range tickers {
		unified, ok := wanted[ticker.Symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(ticker.Price)
		if err != nil {
			s.Logger().Warn("Skipping unparseable ticker price",
				"source", s.Name(), "symbol", ticker.Symbol, "price", ticker.Price)
			continue
		}
		prices = append(prices, sources.Price{
			Symbol:    unified,
			Price:     price,
			Timestamp: now,
			Source:    s.Name(),
		})
	}

	if len(prices) == 0 {
		s.SetHealthy(false)
		return nil, sources.ErrNoPricesFetched
	}

	s.SetHealthy(true)
	return prices, nil
}

// fetchJSON performs a GET request and decodes the JSON response into out.
func (s *BinanceSource) fetchJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", sources.ErrInvalidResponse, err)
	}

	return nil
}
