// Package config loads squadutils settings from a TOML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"squadutils/internal/search"
	"squadutils/internal/squad"
)

// SquadConfig holds the SQUAD instance and default scope.
type SquadConfig struct {
	URL               string        `toml:"url"`
	Token             string        `toml:"token"`
	TokenFile         string        `toml:"token_file"`
	Group             string        `toml:"group"`
	Project           string        `toml:"project"`
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
}

// SearchConfig holds defaults for reproducer searches.
type SearchConfig struct {
	Window          int    `toml:"window"`
	Parallel        int    `toml:"parallel"`
	AllowUnfinished bool   `toml:"allow_unfinished"`
	Completion      string `toml:"completion"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config holds all squadutils configuration.
type Config struct {
	Squad  SquadConfig  `toml:"squad"`
	Search SearchConfig `toml:"search"`
	Log    LogConfig    `toml:"log"`
}

const (
	defaultGroup    = "lkft"
	defaultTimeout  = 60 * time.Second
	defaultParallel = 4
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Squad: SquadConfig{
			URL:     squad.DefaultURL,
			Group:   defaultGroup,
			Timeout: defaultTimeout,
		},
		Search: SearchConfig{
			Window:   search.DefaultWindow,
			Parallel: defaultParallel,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadFrom reads configuration from the given TOML file path on top of
// Default. If the file does not exist, defaults are returned without
// error. Environment variables take precedence over file values:
//   - SQUAD_HOST    overrides squad.url
//   - SQUAD_TOKEN   overrides squad.token
//   - SQUAD_GROUP   overrides squad.group
//   - SQUAD_PROJECT overrides squad.project
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
		}
	}
	applyEnvOverrides(&cfg)
	if cfg.Squad.Token == "" && cfg.Squad.TokenFile != "" {
		token, err := squad.ReadToken(expandHome(cfg.Squad.TokenFile))
		if err != nil {
			return Config{}, fmt.Errorf("read token file: %w", err)
		}
		cfg.Squad.Token = token
	}
	return cfg, nil
}

// DefaultConfigPath returns the default path for the squadutils config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "squadutils", "config.toml")
}

// CompletionPredicate parses the configured completion predicate. An empty value
// is returned as the zero Completion, which search rejects.
func (c SearchConfig) CompletionPredicate() (search.Completion, error) {
	if c.Completion == "" {
		return 0, nil
	}
	return search.ParseCompletion(c.Completion)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQUAD_HOST"); v != "" {
		cfg.Squad.URL = v
	}
	if v := os.Getenv("SQUAD_TOKEN"); v != "" {
		cfg.Squad.Token = v
	}
	if v := os.Getenv("SQUAD_GROUP"); v != "" {
		cfg.Squad.Group = v
	}
	if v := os.Getenv("SQUAD_PROJECT"); v != "" {
		cfg.Squad.Project = v
	}
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
