package telemetry

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// NewLogger builds a slog.Logger writing to stderr in either "json" or
// "text" format, at the given level (debug/info/warn/error).
func NewLogger(format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewMetricsRegistry creates a fresh Prometheus registry and registers
// every collector passed in; no Go or process collectors are added.
func NewMetricsRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors...)
	return reg
}
