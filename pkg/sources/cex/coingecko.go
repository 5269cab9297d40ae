package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/price-oracle/pkg/sources"
	"tc.com/price-oracle/pkg/version"
)

const (
	coingeckoBaseURL = "https://api.coingecko.com"
	coingeckoTimeout = 10 * time.Second
	coingeckoVersion = "1.0.0"
)

// CoinGeckoSource fetches prices from the CoinGecko simple price API.
// Pairs map unified symbols to CoinGecko coin ids, e.g. "BTC/USD": "bitcoin".
type CoinGeckoSource struct {
	*sources.BaseSource
	apiURL string
	apiKey string
	client *http.Client
}

// NewCoinGeckoSource creates a new CoinGecko source.
func NewCoinGeckoSource(config map[string]interface{}) (sources.Source, error) {
	logger := sources.GetLoggerFromConfig(config)

	pairs, err := sources.ParsePairsFromMap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pairs: %w", err)
	}

	apiURL := coingeckoBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	apiKey, _ := config["api_key"].(string)

	base := sources.NewBaseSource("coingecko", sources.SourceTypeCEX,
		"CoinGecko simple price API", coingeckoVersion, pairs, logger)

	return &CoinGeckoSource{
		BaseSource: base,
		apiURL:     apiURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: coingeckoTimeout},
	}, nil
}

// GetPrice fetches the current price for one unified symbol.
func (s *CoinGeckoSource) GetPrice(ctx context.Context, symbol string) (sources.Price, error) {
	prices, err := s.GetPrices(ctx, []string{symbol})
	if err != nil {
		return sources.Price{}, err
	}
	return prices[0], nil
}

// GetPrices fetches current prices for multiple unified symbols in one call.
func (s *CoinGeckoSource) GetPrices(ctx context.Context, symbols []string) ([]sources.Price, error) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	currencies := make(map[string]bool)
	for _, symbol := range symbols {
		id := s.SourceSymbol(symbol)
		if id == "" {
			continue
		}
		ids = append(ids, id)
		idToSymbol[id] = symbol
		currencies[quoteCurrency(symbol)] = true
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidSymbol, symbols)
	}

	vs := make([]string, 0, len(currencies))
	for c := range currencies {
		vs = append(vs, c)
	}

	url := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=%s",
		s.apiURL, strings.Join(ids, ","), strings.Join(vs, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	if s.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.SetHealthy(false)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		s.SetHealthy(false)
		return nil, fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.SetHealthy(false)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Response shape: {"bitcoin": {"usd": 43000.12}, ...}
	var payload map[string]map[string]json.Number
	if err := json.Unmarshal(body, &payload); err != nil {
		s.SetHealthy(false)
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidResponse, err)
	}

	now := time.Now()
	prices := make([]sources.Price, 0, len(ids))
	for id, quotes := range payload {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		raw, ok := quotes[quoteCurrency(symbol)]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(raw.String())
		if err != nil {
			s.Logger().Warn("Skipping unparseable price",
				"source", s.Name(), "id", id, "price", raw.String())
			continue
		}
		prices = append(prices, sources.Price{
			Symbol:    symbol,
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

// quoteCurrency extracts the lowercased quote currency of a unified symbol.
func quoteCurrency(symbol string) string {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return "usd"
	}
	return strings.ToLower(parts[1])
}
