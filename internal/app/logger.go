package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger from LOG_FORMAT: "json" for machine
// readable production output, "text" for line output with source locations,
// and "pretty" (the default) for compact development output.
func NewLogger(cfg *Config) *slog.Logger {
	format := ""
	if cfg != nil {
		format = cfg.LogFormat
	}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
}
