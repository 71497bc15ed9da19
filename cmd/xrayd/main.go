package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agch-dev/analytics-x-ray/internal/xray/common/clock"
	"github.com/agch-dev/analytics-x-ray/internal/xray/common/log"
	"github.com/agch-dev/analytics-x-ray/internal/xray/config"
	"github.com/agch-dev/analytics-x-ray/internal/xray/gateways/ingest"
	"github.com/agch-dev/analytics-x-ray/internal/xray/repos/decisioncache"
	"github.com/agch-dev/analytics-x-ray/internal/xray/repos/seen"
	"github.com/agch-dev/analytics-x-ray/internal/xray/repos/state/bolt"
	"github.com/agch-dev/analytics-x-ray/internal/xray/repos/state/jsonfile"
	"github.com/agch-dev/analytics-x-ray/internal/xray/services/capture"
	"github.com/agch-dev/analytics-x-ray/internal/xray/services/store"
)

const (
	version = "0.1.0-dev"
	appName = "xrayd"
)

// Application holds the wired components of the panel host.
type Application struct {
	config     *config.AppConfig
	controller *store.Controller
	pipeline   *capture.Pipeline
	ingest     *ingest.TCPServer
	watcher    store.Watcher // nil for backends without change notification
}

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"listen":        cfg.Listen,
		"state_backend": cfg.StateBackend,
		"state_path":    cfg.StatePath,
	}, "Starting analytics-x-ray panel host")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Panel host failed")
	}

	log.Info(nil, "Panel host stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()
	clk := &clock.RealClock{}

	// Persistence backend plus, when the backend supports it, the change
	// watcher other contexts push through.
	var (
		persistence store.Persistence
		watcher     store.Watcher
		err         error
	)
	switch cfg.StateBackend {
	case "bolt":
		persistence, err = bolt.New(cfg.StatePath)
	case "jsonfile":
		persistence, err = jsonfile.New(cfg.StatePath)
		if err == nil {
			watcher, err = jsonfile.NewWatcher(cfg.StatePath, logger)
		}
	default:
		err = fmt.Errorf("unknown state backend: %q", cfg.StateBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build state backend: %w", err)
	}

	controller := store.New(store.Options{
		Persistence: persistence,
		Logger:      logger,
	})

	cache, err := decisioncache.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	log.Info(map[string]any{"type": "LRU", "size": cfg.CacheSize}, "Decision cache configured")

	pipeline := capture.NewPipeline(capture.PipelineOptions{
		Gate:   controller,
		Cache:  cache,
		Seen:   seen.New(cfg.SeenCapacity, cfg.SeenFPRate),
		Buffer: capture.NewEventBuffer(cfg.BufferSize),
		Logger: logger,
	})

	// Any rule change, local or external, invalidates cached decisions.
	controller.Subscribe(pipeline.InvalidateDecisions)

	ingestServer := ingest.NewTCPServer(cfg.Listen, pipeline, clk, logger)

	return &Application{
		config:     cfg,
		controller: controller,
		pipeline:   pipeline,
		ingest:     ingestServer,
		watcher:    watcher,
	}, nil
}

// Run starts the panel host and blocks until the context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if app.watcher != nil {
		go app.controller.Watch(ctx, app.watcher)
	}

	err := app.ingest.Start(ctx)

	log.Info(nil, "Shutdown initiated")
	if app.watcher != nil {
		if werr := app.watcher.Close(); werr != nil {
			log.Warn(map[string]any{"error": werr}, "Error closing state watcher")
		}
	}
	if cerr := app.controller.Close(); cerr != nil {
		log.Warn(map[string]any{"error": cerr}, "Error closing store controller")
	}
	return err
}
