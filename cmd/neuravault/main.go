package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ekagra1602/NeuraVault-MCP/config"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/events"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/handlers"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/logger"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/memory"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/metrics"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/telemetry/tracing"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	storeType  = flag.String("store", "", "Override store backend (memory, badger, redis)")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	overrides := buildOverrides()

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting NeuraVault",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Distributed tracing
	tracingShutdown, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Timeline store backend
	store, closeStore, err := newStore(cfg, log)
	if err != nil {
		log.Error("Failed to initialize store", "type", cfg.Store.Type, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("Error closing store", "error", err)
		}
	}()

	// Metrics
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)

	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Retrieval engine
	engineOpts := []memory.Option{memory.WithLogger(log)}
	if metricsManager.Enabled() {
		engineOpts = append(engineOpts, memory.WithMetrics(metricsManager))
	}
	engine := memory.NewEngine(store, engineOpts...)

	// Event stream
	broadcaster := events.NewBroadcaster()
	defer broadcaster.Close()

	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	go wsHandler.ConsumeEvents(ctx, broadcaster)

	// HTTP API
	memoryHandler := handlers.NewMemoryHandler(engine, cfg.Retrieval, broadcaster, log)
	if metricsManager.Enabled() {
		memoryHandler.WithStoreMetrics(metricsManager, cfg.Store.Type)
	}

	apiHandlers := &api.Handlers{
		Memory:    memoryHandler,
		Health:    handlers.NewHealthHandler(engine, cfg.Store.Type),
		Utils:     handlers.NewUtilsHandler(),
		WebSocket: wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Hot reload of the log level when a config file is in use
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, config.NewLoader())
		if err != nil {
			log.Warn("Config watcher disabled", "error", err)
		} else {
			watcher.OnChange(func(updated *config.Config) {
				level := logger.ParseLevel(updated.Log.Level)
				logger.SetLevel(level)
				log.Info("Reloaded configuration", "log_level", updated.Log.Level)
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
		}
	}

	log.Info("NeuraVault is running",
		"http_port", cfg.Server.Port,
		"store", cfg.Store.Type,
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("NeuraVault stopped gracefully")
}

// newStore builds the configured store backend and returns it together with
// a close function for whatever resources it holds.
func newStore(cfg *config.Config, log logger.Logger) (memory.Store, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Store.Type {
	case "badger":
		opts := badger.DefaultOptions(cfg.Store.Badger.Path).
			WithSyncWrites(cfg.Store.Badger.SyncWrites).
			WithLogger(nil)
		if cfg.Store.Badger.ValueLogFileSize > 0 {
			opts = opts.WithValueLogFileSize(cfg.Store.Badger.ValueLogFileSize)
		}
		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger database: %w", err)
		}
		log.Info("Initialized Badger store", "path", cfg.Store.Badger.Path)
		return memory.NewBadgerStore(db), db.Close, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Address,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Info("Initialized Redis store", "address", cfg.Store.Redis.Address)
		return memory.NewRedisStore(client), client.Close, nil

	case "memory", "":
		log.Info("Initialized in-memory store")
		return memory.NewInMemoryStore(), noClose, nil

	default:
		log.Warn("Unknown store type, using in-memory store", "type", cfg.Store.Type)
		return memory.NewInMemoryStore(), noClose, nil
	}
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *storeType != "" {
		overrides["store.type"] = *storeType
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("NeuraVault - Per-User Memory Timeline Engine\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("NeuraVault - Append-only per-user memory timelines with relevance retrieval\n\n")
	fmt.Printf("Usage: neuravault [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  neuravault                                  # Run with default config\n")
	fmt.Printf("  neuravault -config config.yaml              # Use specific config file\n")
	fmt.Printf("  neuravault -port 9090 -log-level debug      # Override specific options\n")
	fmt.Printf("  neuravault -store badger                    # Persist timelines on disk\n")
	fmt.Printf("  neuravault -version                         # Print version info\n")
}
