package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/elonfeng/aqiwatch/internal/config"
)

// New builds the process logger. Text format uses tint for terminals;
// anything else logs JSON.
func New(cfg config.LogConfig, version string) *slog.Logger {
	return newLogger(os.Stderr, cfg, version)
}

func newLogger(w io.Writer, cfg config.LogConfig, version string) *slog.Logger {
	level := cfg.ParseLevel()

	if cfg.Format == "" || cfg.Format == "text" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  level == slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", "aqiwatch",
		"version", version,
	)
}
