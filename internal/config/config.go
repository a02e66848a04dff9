// Package config holds the configuration of the coecho command.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// EchoConfig holds configuration for the coecho server.
type EchoConfig struct {
	Addr      string `toml:"addr"`       // Listen address (default "127.0.0.1:8020")
	LogLevel  string `toml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `toml:"log_format"` // Log format: text, json
	MaxBlock  string `toml:"max_block"`  // Cap on an idle poll, e.g. "500ms"; empty blocks indefinitely
	MaxConns  int    `toml:"max_conns"`  // Connections served before exiting; 0 serves forever
}

// DefaultEchoConfig returns sensible defaults.
func DefaultEchoConfig() EchoConfig {
	return EchoConfig{
		Addr:      "127.0.0.1:8020",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadEchoConfig reads a TOML file over the defaults. Keys missing
// from the file keep their default value.
func LoadEchoConfig(path string) (EchoConfig, error) {
	cfg := DefaultEchoConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return EchoConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if _, err := cfg.MaxBlockDuration(); err != nil {
		return EchoConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// MaxBlockDuration parses MaxBlock. An empty value is zero.
func (c EchoConfig) MaxBlockDuration() (time.Duration, error) {
	if c.MaxBlock == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.MaxBlock)
	if err != nil {
		return 0, fmt.Errorf("max_block: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("max_block: negative duration %s", d)
	}
	return d, nil
}
