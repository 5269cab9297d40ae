// Package api provides the HTTP and WebSocket endpoints in front of the
// aggregation engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
	"tc.com/price-oracle/pkg/oracle"
)

// Server represents the HTTP API server.
type Server struct {
	addr     string
	engine   *oracle.Engine
	symbols  []string // default symbol set for /v1/prices without a query
	server   *http.Server
	logger   *logging.Logger
	wsServer *WebSocketServer // optional WebSocket server for streaming
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse is the JSON body for /health.
type healthResponse struct {
	Status  string          `json:"status"`
	Sources map[string]bool `json:"sources"`
}

// NewServer creates a new HTTP API server serving the engine's prices.
func NewServer(addr string, engine *oracle.Engine, symbols []string, logger *logging.Logger) *Server {
	return &Server{
		addr:    addr,
		engine:  engine,
		symbols: symbols,
		logger:  logger,
	}
}

// SetWebSocketServer sets the WebSocket server for streaming updates.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/price", s.handlePrice)
	mux.HandleFunc("/v1/prices", s.handlePrices)
	mux.HandleFunc("/v1/sources", s.handleSources)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles the /health endpoint. Reports degraded when any
// source's circuit breaker is open.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	health := s.engine.SourceHealth()
	status := "ok"
	for _, queryable := range health {
		if !queryable {
			status = "degraded"
			break
		}
	}

	s.sendJSON(w, healthResponse{Status: status, Sources: health})
}

// handlePrice handles /v1/price?symbol=BTC-USD.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/price", strconv.Itoa(status), time.Since(start))
	}()

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		status = http.StatusBadRequest
		s.sendError(w, status, "missing symbol parameter")
		return
	}

	price, err := s.engine.GetAggregatedPrice(r.Context(), symbol)
	if err != nil {
		status = http.StatusServiceUnavailable
		s.logger.Error("Failed to aggregate price", "symbol", symbol, "error", err.Error())
		s.sendError(w, status, err.Error())
		return
	}

	s.sendJSON(w, price)
	s.notifyStream(price)
}

// handlePrices handles /v1/prices?symbols=BTC-USD,ETH-USD. Without a symbols
// parameter the configured default set is used. Per-symbol failures are
// reported inline; the batch itself always succeeds.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/prices", strconv.Itoa(status), time.Since(start))
	}()

	symbols := s.symbols
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = nil
		for _, sym := range strings.Split(raw, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	}
	if len(symbols) == 0 {
		status = http.StatusBadRequest
		s.sendError(w, status, "no symbols requested")
		return
	}

	results := s.engine.GetAggregatedPrices(r.Context(), symbols)

	type priceResult struct {
		Symbol string                  `json:"symbol"`
		Price  *oracle.AggregatedPrice `json:"price,omitempty"`
		Error  string                  `json:"error,omitempty"`
	}

	out := make([]priceResult, len(results))
	ok := make([]*oracle.AggregatedPrice, 0, len(results))
	for i, res := range results {
		out[i] = priceResult{Symbol: res.Symbol, Price: res.Price}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		} else {
			ok = append(ok, res.Price)
		}
	}

	s.sendJSON(w, out)
	for _, price := range ok {
		s.notifyStream(price)
	}
}

// handleSources handles /v1/sources: a diagnostic list of registered sources
// with weight, adapter health and breaker queryability.
func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/v1/sources", "200", time.Since(start))
	}()

	s.sendJSON(w, s.engine.SourceStatus())
}

// notifyStream forwards a fresh price to the WebSocket server if streaming is
// enabled.
func (s *Server) notifyStream(price *oracle.AggregatedPrice) {
	if s.wsServer != nil && price != nil {
		s.wsServer.SendUpdate([]*oracle.AggregatedPrice{price})
	}
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// sendError sends a JSON error response with the given status code.
func (s *Server) sendError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
