// Package config loads and edits the agenda YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/agenda/internal/guard"
)

// Duration is a time.Duration written as "5m" or "168h" in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the whole configuration file.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Memory  MemoryConfig  `yaml:"memory"`
	Confirm ConfirmConfig `yaml:"confirm"`
	Guard   guard.Policy  `yaml:"guard"`
	Log     LogConfig     `yaml:"log"`
}

type DataConfig struct {
	// Backend is one of memory, sqlite or mongo.
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri,omitempty"`
	MongoDatabase string `yaml:"mongo_database"`
}

type MemoryConfig struct {
	Path            string   `yaml:"path"`
	MaxEntries      int      `yaml:"max_entries"`
	SessionMaxAge   Duration `yaml:"session_max_age"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	DefaultSession  string   `yaml:"default_session"`
}

type ConfirmConfig struct {
	PendingTTL    Duration `yaml:"pending_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type LogConfig struct {
	JSON    bool `yaml:"json"`
	Verbose bool `yaml:"verbose"`
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Dir returns the agenda home directory, ~/.agenda.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agenda"
	}
	return filepath.Join(home, ".agenda")
}

// DefaultPath is where the configuration file lives unless overridden.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	dir := Dir()
	return Config{
		Data: DataConfig{
			Backend:       BackendSQLite,
			SQLitePath:    filepath.Join(dir, "agenda.db"),
			MongoDatabase: "agenda",
		},
		Memory: MemoryConfig{
			Path:            filepath.Join(dir, "memory.json"),
			MaxEntries:      100,
			SessionMaxAge:   Duration(7 * 24 * time.Hour),
			CleanupInterval: Duration(6 * time.Hour),
			DefaultSession:  "default",
		},
		Confirm: ConfirmConfig{
			PendingTTL:    Duration(5 * time.Minute),
			SweepInterval: Duration(5 * time.Minute),
		},
		Guard: guard.Policy{
			AllowedOperations: append([]string(nil), guard.DefaultPolicy.AllowedOperations...),
			ReadOnly:          guard.DefaultPolicy.ReadOnly,
			MaxPending:        guard.DefaultPolicy.MaxPending,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Sealed secrets are returned still sealed; see Unseal.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.Data.SQLitePath = expandHome(cfg.Data.SQLitePath)
	cfg.Memory.Path = expandHome(cfg.Memory.Path)
	return &cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidationResult represents the outcome of a configuration check.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Validate checks the configuration for mistakes and risky settings.
func Validate(cfg *Config) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	fail := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}

	switch cfg.Data.Backend {
	case BackendMemory:
		res.Warnings = append(res.Warnings, "data.backend is memory; records are lost on exit")
	case BackendSQLite:
		if cfg.Data.SQLitePath == "" {
			fail("data.sqlite_path is required for the sqlite backend")
		}
	case BackendMongo:
		if cfg.Data.MongoURI == "" {
			fail("data.mongo_uri is required for the mongo backend")
		}
		if cfg.Data.MongoDatabase == "" {
			fail("data.mongo_database is required for the mongo backend")
		}
	default:
		fail("data.backend %q is not one of memory, sqlite, mongo", cfg.Data.Backend)
	}

	if cfg.Memory.MaxEntries <= 0 {
		fail("memory.max_entries must be positive")
	}
	if cfg.Memory.SessionMaxAge <= 0 {
		fail("memory.session_max_age must be positive")
	}
	if cfg.Memory.CleanupInterval <= 0 {
		fail("memory.cleanup_interval must be positive")
	}
	if cfg.Memory.Path == "" {
		res.Warnings = append(res.Warnings, "memory.path is empty; conversation memory will not be persisted")
	}
	if strings.TrimSpace(cfg.Memory.DefaultSession) == "" {
		fail("memory.default_session must not be empty")
	}

	if cfg.Confirm.PendingTTL <= 0 {
		fail("confirm.pending_ttl must be positive")
	} else if cfg.Confirm.PendingTTL.Std() < 30*time.Second {
		res.Warnings = append(res.Warnings, "confirm.pending_ttl is under 30s; prompts may expire before anyone answers")
	}
	if cfg.Confirm.SweepInterval <= 0 {
		fail("confirm.sweep_interval must be positive")
	}

	if len(cfg.Guard.AllowedOperations) == 0 {
		res.Warnings = append(res.Warnings, "guard.allowed_operations is empty; only confirm_operation and get_context can run")
	}
	if err := cfg.Guard.ValidatePatterns(); err != nil {
		fail("guard.allowed_operations: %v", err)
	}
	if cfg.Guard.MaxPending < 0 {
		fail("guard.max_pending must not be negative")
	}
	return res
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
