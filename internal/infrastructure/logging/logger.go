package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/yudhap/tasmocore/internal/infrastructure/config"
)

// serviceName tags every log entry.
const serviceName = "tasmocore"

// Logger wraps slog.Logger for structured application logging.
//
// Every entry carries the service name and build version as default
// fields; level filtering and output format come from configuration.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the logging configuration.
//
// Format selects the handler (json for machine consumption, text for
// development), output picks stdout or stderr, and level filters what
// is emitted. Unrecognised values fall back to json, stdout and info.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version stamped on every entry
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// newHandler builds the slog handler for the configured format, output
// and level.
func newHandler(cfg config.LoggingConfig) slog.Handler {
	var output io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// parseLevel converts a string log level to slog.Level.
// Supported: debug, info, warn/warning, error; unrecognised values
// default to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger carrying additional default attributes.
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns an info-level JSON logger writing to stdout, for use
// during early startup before the configuration file has been loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
