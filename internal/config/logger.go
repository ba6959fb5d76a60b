package config

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the process-wide slog default. Level and output
// format (json for production, text otherwise) come from the config.
func InitLogger(cfg *Config) {
	level := parseLogLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))

	slog.Info("Logger initialized",
		"level", cfg.LogLevel,
		"format", cfg.LogFormat,
	)
}

// parseLogLevel maps a config string to a slog level, defaulting to info
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
