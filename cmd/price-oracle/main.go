package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tc.com/price-oracle/pkg/config"
	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
	"tc.com/price-oracle/pkg/oracle"
	"tc.com/price-oracle/pkg/server/api"
	"tc.com/price-oracle/pkg/sources"
	"tc.com/price-oracle/pkg/version"

	// Import source packages to register them
	_ "tc.com/price-oracle/pkg/sources/cex"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("price-oracle version %s\n", version.Version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting price-oracle", "version", version.Version, "strategy", cfg.Aggregation.Strategy)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, cfg, logger)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
			cancel()
		}
	}

	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	// Create the aggregation engine
	engine, err := oracle.New(cfg.Aggregation, cfg.Cache, cfg.CircuitBreaker, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// Initialize sources
	registered := 0
	for _, sourceCfg := range cfg.Sources {
		if !sourceCfg.Enabled {
			continue
		}

		logger.Info("Initializing source", "type", sourceCfg.Type, "name", sourceCfg.Name, "weight", sourceCfg.Weight)

		// Add logger to config so sources don't create their own
		if sourceCfg.Config == nil {
			sourceCfg.Config = make(map[string]interface{})
		}
		sourceCfg.Config["logger"] = logger

		source, err := sources.Create(sourceCfg.Type, sourceCfg.Name, sourceCfg.Config)
		if err != nil {
			logger.Warn("Failed to create source", "type", sourceCfg.Type, "name", sourceCfg.Name, "error", err)
			continue
		}

		if err := engine.AddSource(source, sourceCfg.Weight); err != nil {
			logger.Warn("Failed to register source", "source", source.Name(), "error", err)
			continue
		}
		registered++
	}

	if registered == 0 {
		return fmt.Errorf("no sources available")
	}

	// Start HTTP server
	server := api.NewServer(cfg.Server.HTTP.Addr, engine, cfg.Server.Symbols, logger)

	// Start WebSocket server if enabled
	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		server.SetWebSocketServer(wsServer)

		go func() {
			if err := wsServer.Start(ctx); err != nil {
				logger.Error("WebSocket server error", "error", err)
			}
		}()

		// Background refresh loop keeps streamed prices fresh independently
		// of incoming HTTP traffic.
		if len(cfg.Server.Symbols) > 0 {
			go refreshLoop(ctx, engine, wsServer, cfg.Server.Symbols, cfg.Server.RefreshInterval.ToDuration(), logger)
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if wsServer != nil {
			wsServer.Stop()
		}
	}()

	return server.Start()
}

// refreshLoop periodically aggregates the configured symbols and pushes the
// results to WebSocket subscribers.
func refreshLoop(ctx context.Context, engine *oracle.Engine, ws *api.WebSocketServer, symbols []string, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results := engine.GetAggregatedPrices(ctx, symbols)

			fresh := make([]*oracle.AggregatedPrice, 0, len(results))
			for _, res := range results {
				if res.Err != nil {
					logger.Debug("Refresh failed for symbol", "symbol", res.Symbol, "error", res.Err.Error())
					continue
				}
				fresh = append(fresh, res.Price)
			}

			if len(fresh) > 0 {
				ws.SendUpdate(fresh)
			}
		}
	}
}
