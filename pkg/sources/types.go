package sources

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType represents the type of price source
type SourceType string

const (
	SourceTypeCEX  SourceType = "cex"
	SourceTypeFiat SourceType = "fiat"
)

// Price represents one source's reported price for a symbol at a point in time.
// It is never mutated after creation.
type Price struct {
	Symbol    string                 `json:"symbol"`
	Price     decimal.Decimal        `json:"price"`
	Timestamp time.Time              `json:"timestamp"`
	Volume    decimal.Decimal        `json:"volume,omitempty"`
	Source    string                 `json:"source"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SourceInfo describes a source for diagnostics.
type SourceInfo struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Version          string   `json:"version"`
	SupportedSymbols []string `json:"supported_symbols"`
}

// Source defines the interface that all price sources must implement.
// Implementations are request/response: each call fetches a fresh observation.
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// GetPrice fetches the current price for one symbol
	GetPrice(ctx context.Context, symbol string) (Price, error)

	// GetPrices fetches current prices for multiple symbols
	GetPrices(ctx context.Context, symbols []string) ([]Price, error)

	// IsHealthy reports whether the last interaction with the provider
	// succeeded. Diagnostic only; the circuit breakers keep their own books.
	IsHealthy() bool

	// Info returns descriptive metadata about this source
	Info() SourceInfo
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)
