package entitydoc

import (
	"context"
	"log/slog"

	"github.com/aretw0/entitydoc/internal/platform"
	"github.com/aretw0/entitydoc/pkg/clock"
	"github.com/aretw0/entitydoc/pkg/config"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/document"
	"github.com/aretw0/entitydoc/pkg/paths"
)

// Version of the library, overridden at build time with
// -ldflags "-X github.com/aretw0/entitydoc.Version=...".
var Version = "dev"

// --- Types ---

type (
	Entity     = core.Entity
	Ref        = core.Ref
	Sys        = core.Sys
	Fields     = core.Fields
	Action     = core.Action
	Repository = core.Repository
	Path       = paths.Path
	Document   = document.Document
	Status     = document.Status
	Config     = config.Config
	Workspace  = platform.Workspace
)

// Entity types.
const (
	TypeEntry = core.TypeEntry
	TypeAsset = core.TypeAsset
)

// Lifecycle actions.
const (
	ActionPublish   = core.ActionPublish
	ActionUnpublish = core.ActionUnpublish
	ActionArchive   = core.ActionArchive
	ActionUnarchive = core.ActionUnarchive
	ActionDelete    = core.ActionDelete
)

// Field returns the path of a field-locale value.
func Field(field, locale string) Path {
	return paths.Field(field, locale)
}

// --- Configuration ---

// Option configures a Workspace.
type Option = platform.Option

// WithLogger sets the logger for the workspace and its documents.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository injects a repository instead of the configured adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithAdapter selects the storage adapter by name ("fs", "sqlite", "memory").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithConfig uses cfg instead of reading entitydoc.toml.
func WithConfig(cfg *Config) Option {
	return platform.WithConfig(cfg)
}

// WithConfigPath reads the configuration from path.
func WithConfigPath(path string) Option {
	return platform.WithConfigPath(path)
}

// WithReadOnly opens the storage read-only.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithForceTemp forces the storage into a temporary directory.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist requires the workspace directory to exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithDevSafety controls the `go run` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithTelemetry sets the conflict telemetry sink.
func WithTelemetry(t core.Telemetry) Option {
	return platform.WithTelemetry(t)
}

// WithClock sets the time source of the save throttle.
func WithClock(c clock.Clock) Option {
	return platform.WithClock(c)
}

// WithWatcherErrorHandler receives runtime failures of the storage watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return config.Default()
}

// --- Factory ---

// Open prepares the workspace rooted at path.
func Open(ctx context.Context, path string, opts ...Option) (*Workspace, error) {
	return platform.Open(ctx, path, opts...)
}

// NewRepository builds the repository cfg selects under root, without a
// workspace around it.
func NewRepository(ctx context.Context, root string, cfg *Config, opts ...Option) (Repository, error) {
	return platform.Init(ctx, root, cfg, opts...)
}

// OpenDocument opens a single document on repo without a workspace.
func OpenDocument(ctx context.Context, repo Repository, ref Ref, opts ...document.Option) (*Document, error) {
	return document.Open(ctx, repo, ref, opts...)
}

// --- Safety & Utils ---

// ResolveWorkspacePath applies the dev sandbox rules to a path.
func ResolveWorkspacePath(userPath string, forceTemp bool) string {
	return platform.ResolveWorkspacePath(userPath, forceTemp)
}

// IsDevRun reports whether the process runs via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards from startDir for a workspace root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
