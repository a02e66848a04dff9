// Package logging builds the coecho logger from its configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/webriots/cosched/internal/config"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New returns a logger for cfg.LogLevel and cfg.LogFormat writing to
// w. Unknown levels or formats are an error so that a typo in the
// config file does not silently change what gets logged.
func New(cfg config.EchoConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// ParseLevel converts a log_level value to a slog.Level. An empty
// value is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level: unknown level %q", s)
}

// ParseFormat converts a log_format value. An empty value is text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("log_format: unknown format %q", s)
}
