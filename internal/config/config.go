package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/urnpatch/internal/model"
)

// Patcher holds all configuration for one patcher run.
type Patcher struct {
	// Output plugin that owns every generated region.
	PluginName string `yaml:"plugin_name"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	Verbose  bool   `yaml:"verbose"`   // print the parsed region table

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Redis cell cache (disabled when addr is empty)
	Redis RedisConfig `yaml:"redis"`

	// Worldspaces to patch, each with its own map and metadata file.
	Worldspaces []WorldspaceConfig `yaml:"worldspaces"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds the cell cache connection parameters.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Enabled reports whether the cell cache should be used.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// WorldspaceConfig describes one worldspace handler.
type WorldspaceConfig struct {
	Name       string        `yaml:"name"`
	FormKey    model.FormKey `yaml:"form_key"`
	MapFile    string        `yaml:"map_file"`
	RegionFile string        `yaml:"region_file"`
}

// DefaultPatcher returns Patcher config with sensible defaults.
func DefaultPatcher() Patcher {
	return Patcher{
		PluginName: "UniqueRegionNamesPatcher.esp",
		LogLevel:   "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "urnpatch",
			Password: "urnpatch",
			DBName:   "urnpatch",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			KeyPrefix: "urn",
		},
		Worldspaces: []WorldspaceConfig{
			{
				Name:       "Tamriel",
				FormKey:    model.NewFormKey(0x3C, "Skyrim.esm"),
				MapFile:    "data/tamriel/regionmap.ini",
				RegionFile: "data/tamriel/regions.yaml",
			},
		},
	}
}

// LoadPatcher loads patcher config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadPatcher(path string) (Patcher, error) {
	cfg := DefaultPatcher()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the fields the patcher can't run without.
func (c Patcher) Validate() error {
	if c.PluginName == "" {
		return fmt.Errorf("plugin_name is empty")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	seen := make(map[model.FormKey]string, len(c.Worldspaces))
	for i, ws := range c.Worldspaces {
		if ws.FormKey.IsNull() {
			return fmt.Errorf("worldspaces[%d] (%s): form_key is empty", i, ws.Name)
		}
		if ws.MapFile == "" {
			return fmt.Errorf("worldspaces[%d] (%s): map_file is empty", i, ws.Name)
		}
		if prev, dup := seen[ws.FormKey]; dup {
			return fmt.Errorf("worldspaces[%d] (%s): form_key %s already used by %s", i, ws.Name, ws.FormKey, prev)
		}
		seen[ws.FormKey] = ws.Name
	}
	return nil
}

// ParseLogLevel converts a config log level into a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
