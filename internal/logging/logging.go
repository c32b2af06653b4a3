// Package logging builds the daemon's root slog logger from configuration.
//
// Output is JSON by default and text for interactive use. Every record
// carries the service name and build version.
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("polling gateway", "host", cfg.Gateway.Host)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zberg/go-flexismart/internal/config"
)

const serviceName = "flexismart"

// New creates a logger for cfg.
func New(cfg config.LoggingConfig, version string) *slog.Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return newWithWriter(cfg, version, output)
}

func newWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return slog.New(handler)
}

// ParseLevel converts debug, info, warn(ing) or error to a slog level.
// Anything else is info.
func ParseLevel(level string) slog.Level {
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

// Default is the logger used before configuration is loaded.
func Default() *slog.Logger {
	return New(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, "dev")
}
