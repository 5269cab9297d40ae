package sources

import (
	"sync"

	"tc.com/price-oracle/pkg/logging"
)

// BaseSource provides common bookkeeping for request/response price sources.
type BaseSource struct {
	name        string
	sourcetype  SourceType
	description string
	version     string
	pairs       map[string]string // unified symbol -> source-specific symbol
	healthy     bool
	healthMu    sync.RWMutex
	logger      *logging.Logger
}

// NewBaseSource creates a new base source with pair mappings.
// pairs: map of unified symbol (e.g., "BTC/USDT") -> source-specific symbol
// (e.g., "BTCUSDT").
func NewBaseSource(name string, sourcetype SourceType, description, version string, pairs map[string]string, logger *logging.Logger) *BaseSource {
	return &BaseSource{
		name:        name,
		sourcetype:  sourcetype,
		description: description,
		version:     version,
		pairs:       pairs,
		logger:      logger,
		healthy:     true,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Type returns the source type
func (b *BaseSource) Type() SourceType {
	return b.sourcetype
}

// Info returns descriptive metadata about this source
func (b *BaseSource) Info() SourceInfo {
	return SourceInfo{
		Name:             b.name,
		Description:      b.description,
		Version:          b.version,
		SupportedSymbols: b.Symbols(),
	}
}

// Symbols returns the unified symbols this source provides
func (b *BaseSource) Symbols() []string {
	symbols := make([]string, 0, len(b.pairs))
	for unified := range b.pairs {
		symbols = append(symbols, unified)
	}
	return symbols
}

// IsHealthy returns the health status
func (b *BaseSource) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthy
}

// SetHealthy sets the health status
func (b *BaseSource) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()
	b.healthy = healthy
}

// SourceSymbol converts a unified symbol to the source-specific symbol.
// Returns empty string if the source does not provide the symbol.
func (b *BaseSource) SourceSymbol(unifiedSymbol string) string {
	return b.pairs[unifiedSymbol]
}

// UnifiedSymbol finds the unified symbol for a source-specific symbol.
// Returns empty string if not found.
func (b *BaseSource) UnifiedSymbol(sourceSymbol string) string {
	for unified, source := range b.pairs {
		if source == sourceSymbol {
			return unified
		}
	}
	return ""
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}
