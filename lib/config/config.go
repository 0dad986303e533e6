// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "BUGDASH_CONFIG"

// Config is the master configuration for bugdash.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Store selects and configures the document store.
	Store StoreConfig `yaml:"store"`

	// Workspace is the workspace selected at startup. It may be left
	// empty; the dashboard then reports that setup is required.
	Workspace workspace.Context `yaml:"workspace"`

	// Engine tunes the sync and mutation engine.
	Engine EngineConfig `yaml:"engine"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Identity is the signed-in user.
	Identity IdentityConfig `yaml:"identity"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Store   *StoreConfig   `yaml:"store,omitempty"`
	Engine  *EngineConfig  `yaml:"engine,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// StoreConfig configures the document store.
type StoreConfig struct {
	// Backend is memory, sqlite or postgres.
	// Default: memory
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the embedded store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: ${HOME}/.cache/bugdash/bugdash.db
	Path string `yaml:"path"`

	// PoolSize is the number of connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`

	// PollInterval is how often to check for writes by other
	// processes.
	// Default: 1s
	PollInterval string `yaml:"poll_interval"`
}

// PostgresConfig configures the shared store.
type PostgresConfig struct {
	// DSN is a libpq connection string or URL. ${VAR} references are
	// expanded, so passwords can stay in the environment.
	DSN string `yaml:"dsn"`

	// Channel is the LISTEN/NOTIFY channel for change notifications.
	// Default: bugdash_documents
	Channel string `yaml:"channel"`

	// MaxConns caps the connection pool.
	// Default: 8
	MaxConns int `yaml:"max_conns"`
}

// EngineConfig tunes the engine.
type EngineConfig struct {
	// MutationTimeout bounds each store write. Empty means no bound.
	MutationTimeout string `yaml:"mutation_timeout"`

	// BulkConcurrency caps parallel writes in bulk actions.
	// Default: 4
	BulkConcurrency int `yaml:"bulk_concurrency"`

	// RequireLoadedPermissions denies mutations until the role payload
	// has loaded.
	// Default: false (development), true (production)
	RequireLoadedPermissions bool `yaml:"require_loaded_permissions"`

	// RetryTransient resubscribes failed feeds with backoff.
	// Default: false (development), true (production)
	RetryTransient bool `yaml:"retry_transient"`

	// ShortIDLength is how many trailing ID characters search
	// matches.
	// Default: 6
	ShortIDLength int `yaml:"short_id_length"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// IdentityConfig names the signed-in user.
type IdentityConfig struct {
	UserID      string `yaml:"user_id"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name"`

	// PermissionsFile is a JSON, JSONC or YAML role payload. Empty
	// leaves capabilities provisional.
	PermissionsFile string `yaml:"permissions_file"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Store: StoreConfig{
			Backend: BackendMemory,
			SQLite: SQLiteConfig{
				Path:         "${HOME}/.cache/bugdash/bugdash.db",
				PoolSize:     4,
				PollInterval: "1s",
			},
			Postgres: PostgresConfig{
				Channel:  "bugdash_documents",
				MaxConns: 8,
			},
		},
		Engine: EngineConfig{
			BulkConcurrency: 4,
			ShortIDLength:   6,
		},
	}
}

// Load loads configuration from the BUGDASH_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if BUGDASH_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your bugdash.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${VAR} references
// in paths and the postgres DSN.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: no mutations on provisional
		// permissions, and failed feeds recover on their own.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Engine: &EngineConfig{
					RequireLoadedPermissions: true,
					RetryTransient:           true,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Store != nil {
		if overrides.Store.Backend != "" {
			c.Store.Backend = overrides.Store.Backend
		}
		if overrides.Store.SQLite.Path != "" {
			c.Store.SQLite.Path = overrides.Store.SQLite.Path
		}
		if overrides.Store.SQLite.PoolSize != 0 {
			c.Store.SQLite.PoolSize = overrides.Store.SQLite.PoolSize
		}
		if overrides.Store.SQLite.PollInterval != "" {
			c.Store.SQLite.PollInterval = overrides.Store.SQLite.PollInterval
		}
		if overrides.Store.Postgres.DSN != "" {
			c.Store.Postgres.DSN = overrides.Store.Postgres.DSN
		}
		if overrides.Store.Postgres.Channel != "" {
			c.Store.Postgres.Channel = overrides.Store.Postgres.Channel
		}
		if overrides.Store.Postgres.MaxConns != 0 {
			c.Store.Postgres.MaxConns = overrides.Store.Postgres.MaxConns
		}
	}

	if overrides.Engine != nil {
		if overrides.Engine.MutationTimeout != "" {
			c.Engine.MutationTimeout = overrides.Engine.MutationTimeout
		}
		if overrides.Engine.BulkConcurrency != 0 {
			c.Engine.BulkConcurrency = overrides.Engine.BulkConcurrency
		}
		if overrides.Engine.ShortIDLength != 0 {
			c.Engine.ShortIDLength = overrides.Engine.ShortIDLength
		}
		// Booleans are always applied from overrides.
		c.Engine.RequireLoadedPermissions = overrides.Engine.RequireLoadedPermissions
		c.Engine.RetryTransient = overrides.Engine.RetryTransient
	}

	if overrides.Metrics != nil && overrides.Metrics.Listen != "" {
		c.Metrics.Listen = overrides.Metrics.Listen
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.SQLite.Path = expandVars(c.Store.SQLite.Path, vars)
	c.Store.Postgres.DSN = expandVars(c.Store.Postgres.DSN, vars)
	c.Identity.PermissionsFile = expandVars(c.Identity.PermissionsFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// channelPattern matches an unquoted Postgres identifier.
var channelPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	backends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend must be one of: %v", backends))
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("store.sqlite.path is required"))
		}
		if c.Store.SQLite.PoolSize < 1 {
			errs = append(errs, fmt.Errorf("store.sqlite.pool_size must be at least 1"))
		}
		if _, err := parseDuration(c.Store.SQLite.PollInterval); err != nil {
			errs = append(errs, fmt.Errorf("store.sqlite.poll_interval: %w", err))
		}
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("store.postgres.dsn is required"))
		}
		if !channelPattern.MatchString(c.Store.Postgres.Channel) {
			errs = append(errs, fmt.Errorf("store.postgres.channel %q is not a valid identifier", c.Store.Postgres.Channel))
		}
		if c.Store.Postgres.MaxConns < 1 {
			errs = append(errs, fmt.Errorf("store.postgres.max_conns must be at least 1"))
		}
	}

	if c.Workspace != (workspace.Context{}) {
		if err := c.Workspace.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("workspace: %w", err))
		}
	}

	if _, err := parseDuration(c.Engine.MutationTimeout); err != nil {
		errs = append(errs, fmt.Errorf("engine.mutation_timeout: %w", err))
	}
	if c.Engine.BulkConcurrency < 1 {
		errs = append(errs, fmt.Errorf("engine.bulk_concurrency must be at least 1"))
	}
	if c.Engine.ShortIDLength < 1 {
		errs = append(errs, fmt.Errorf("engine.short_id_length must be at least 1"))
	}

	if c.Identity.PermissionsFile != "" && c.Identity.UserID == "" {
		errs = append(errs, fmt.Errorf("identity.permissions_file requires identity.user_id"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MutationTimeout returns engine.mutation_timeout, or zero when unset.
// Call Validate first; an unparseable value also returns zero.
func (c *Config) MutationTimeout() time.Duration {
	d, _ := parseDuration(c.Engine.MutationTimeout)
	return d
}

// PollInterval returns store.sqlite.poll_interval, or zero when unset.
func (c *Config) PollInterval() time.Duration {
	d, _ := parseDuration(c.Store.SQLite.PollInterval)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// EnsurePaths creates the directories the configured store needs.
func (c *Config) EnsurePaths() error {
	if c.Store.Backend != BackendSQLite || c.Store.SQLite.Path == "" {
		return nil
	}
	dir := filepath.Dir(c.Store.SQLite.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
