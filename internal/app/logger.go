package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Production runs log JSON at info;
// everything else gets text at debug with source locations for local work.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		level := slog.LevelDebug
		if cfg.IsProduction() {
			level = slog.LevelInfo
		}
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "meridian"))
}
