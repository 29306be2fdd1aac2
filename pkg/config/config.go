// Package config loads the workspace configuration: storage adapter,
// enabled locales, content types and save tuning. Files may be TOML, YAML or
// JSON and are hot-reloaded while watched.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/entitydoc/pkg/core"
)

// Adapter names.
const (
	AdapterMemory = "memory"
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
)

// DefaultPath is looked up when no config file is given.
const DefaultPath = "entitydoc.toml"

// Config is the workspace configuration.
type Config struct {
	// Throttle is a Go duration string, e.g. "5s".
	Throttle     string             `toml:"throttle" json:"throttle" yaml:"throttle"`
	Patch        bool               `toml:"patch" json:"patch" yaml:"patch"`
	ReadOnly     bool               `toml:"read_only" json:"read_only" yaml:"read_only"`
	Locales      []string           `toml:"locales" json:"locales" yaml:"locales"`
	Storage      Storage            `toml:"storage" json:"storage" yaml:"storage"`
	Logging      Logging            `toml:"logging" json:"logging" yaml:"logging"`
	ContentTypes []core.ContentType `toml:"content_types" json:"content_types" yaml:"content_types"`
}

// Storage selects and locates the entity repository.
type Storage struct {
	Adapter string `toml:"adapter" json:"adapter" yaml:"adapter"`
	Path    string `toml:"path" json:"path" yaml:"path"`
	// Format is the fs adapter file format: "json" or "yaml".
	Format string `toml:"format" json:"format" yaml:"format"`
}

// Logging configures the CLI logger.
type Logging struct {
	Level string `toml:"level" json:"level" yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Throttle: "5s",
		Locales:  []string{"en-US"},
		Storage: Storage{
			Adapter: AdapterFS,
			Path:    "content",
			Format:  "json",
		},
		Logging: Logging{Level: "info"},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if d, err := time.ParseDuration(c.Throttle); err != nil {
		errs = append(errs, fmt.Errorf("throttle: %w", err))
	} else if d <= 0 {
		errs = append(errs, errors.New("throttle must be positive"))
	}
	if len(c.Locales) == 0 {
		errs = append(errs, errors.New("at least one locale must be enabled"))
	}
	switch c.Storage.Adapter {
	case AdapterMemory:
	case AdapterFS, AdapterSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the %s adapter", c.Storage.Adapter))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage adapter %q", c.Storage.Adapter))
	}
	if c.Storage.Adapter == AdapterFS && c.Storage.Format != "json" && c.Storage.Format != "yaml" {
		errs = append(errs, fmt.Errorf("unknown storage format %q", c.Storage.Format))
	}
	seen := make(map[string]bool, len(c.ContentTypes))
	for _, ct := range c.ContentTypes {
		if ct.ID == "" {
			errs = append(errs, errors.New("content type without id"))
			continue
		}
		if seen[ct.ID] {
			errs = append(errs, fmt.Errorf("duplicate content type %q", ct.ID))
		}
		seen[ct.ID] = true
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ApplyEnvOverrides applies ENTITYDOC_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ENTITYDOC_STORAGE_ADAPTER"); v != "" {
		c.Storage.Adapter = v
	}
	if v := os.Getenv("ENTITYDOC_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("ENTITYDOC_THROTTLE"); v != "" {
		c.Throttle = v
	}
	if v := os.Getenv("ENTITYDOC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ENTITYDOC_LOCALES"); v != "" {
		c.Locales = strings.Split(v, ",")
	}
}

// ThrottleDuration returns the parsed throttle. Call Validate first.
func (c *Config) ThrottleDuration() time.Duration {
	d, _ := time.ParseDuration(c.Throttle)
	return d
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Logging.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return level, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Permissions denies updates in read-only workspaces.
func (c *Config) Permissions() core.Permissions {
	if !c.ReadOnly {
		return core.AllowAll
	}
	return core.PermissionFunc(func(action string) bool { return action != "update" })
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Locales = slices.Clone(c.Locales)
	clone.ContentTypes = make([]core.ContentType, len(c.ContentTypes))
	for i, ct := range c.ContentTypes {
		clone.ContentTypes[i] = core.ContentType{ID: ct.ID, Fields: slices.Clone(ct.Fields)}
	}
	return &clone
}
