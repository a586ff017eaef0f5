// Tasmocore - Tasmota Device Synchronisation Core
//
// This is the main entry point for the tasmocore daemon. It maintains a
// broker session over MQTT-over-WebSocket, subscribes to the status and
// telemetry topics of every registered Tasmota device, and keeps a live
// projection of each device's state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yudhap/tasmocore/internal/device"
	"github.com/yudhap/tasmocore/internal/infrastructure/config"
	"github.com/yudhap/tasmocore/internal/infrastructure/database"
	"github.com/yudhap/tasmocore/internal/infrastructure/logging"
	"github.com/yudhap/tasmocore/internal/infrastructure/mqtt"
	"github.com/yudhap/tasmocore/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting tasmocore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the device registry database
	db, err := database.Open(database.Config{
		Path:        cfg.Registry.Path,
		WALMode:     cfg.Registry.WALMode,
		BusyTimeout: cfg.Registry.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening registry database: %w", err)
	}
	defer func() {
		log.Info("closing registry database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing registry database", "error", closeErr)
		}
	}()
	log.Info("registry database connected", "path", cfg.Registry.Path)

	// Initialise the device repository and load the registered devices
	repo := device.NewSQLiteRepository(db.DB)
	if initErr := repo.Init(ctx); initErr != nil {
		return fmt.Errorf("initialising device repository: %w", initErr)
	}
	devices, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading registered devices: %w", err)
	}
	log.Info("device registry loaded", "devices", len(devices))

	// Projection store holds the live view of every device
	store := device.NewStore()
	store.SetOnChange(func(deviceTopic string) {
		log.Debug("device state changed", "device", deviceTopic)
	})

	// Broker session: MQTT v3.1.1 over WebSocket
	client := mqtt.New(cfg.Broker)
	client.SetLogger(log)

	sess := session.New(client, store, log)
	sess.SetOnConnectionChange(func(state mqtt.ConnState, errText string) {
		if errText != "" {
			log.Warn("broker connection state changed", "state", state.String(), "error", errText)
			return
		}
		log.Info("broker connection state changed", "state", state.String())
	})

	// Every connect starts from a clean session, so the full topic set is
	// re-subscribed each time the broker comes (back) up.
	sess.SetOnConnect(func() {
		log.Info("broker connected, subscribing registered devices")
		for _, d := range devices {
			sess.Subscribe(d.Topic)
		}
	})

	if err := sess.Connect(); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer func() {
		log.Info("disconnecting from broker")
		if closeErr := sess.Disconnect(); closeErr != nil {
			log.Error("error disconnecting from broker", "error", closeErr)
		}
	}()
	log.Info("broker session established",
		"broker", fmt.Sprintf("%s:%d%s", cfg.Broker.Host, brokerPort(cfg.Broker), cfg.Broker.Path),
		"tls", cfg.Broker.TLS,
	)

	// Verify the registry database is healthy before settling in
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("registry health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Broker session
	// 2. Registry database

	log.Info("tasmocore stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TASMOCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TASMOCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// brokerPort picks the port the session actually dials.
func brokerPort(cfg config.BrokerConfig) int {
	if cfg.TLS {
		return cfg.TLSPort
	}
	return cfg.Port
}
