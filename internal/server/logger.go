// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// setupLogger installs the default slog logger for the process.
func setupLogger(cfg config.LogConfig) {
	slog.SetDefault(newLogger(os.Stdout, cfg))
}

// newLogger builds a JSON logger or a tint text logger writing to w.
// Colors are only used when w is a terminal.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level := parseLevel(cfg.Level)

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}))
}

// parseLevel maps a level name to slog.Level; unknown names mean info.
func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
