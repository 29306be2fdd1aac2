package platform

import (
	"log/slog"

	"github.com/aretw0/entitydoc/pkg/clock"
	"github.com/aretw0/entitydoc/pkg/config"
	"github.com/aretw0/entitydoc/pkg/core"
)

// options holds the internal configuration of a workspace.
type options struct {
	repository   core.Repository
	logger       *slog.Logger
	adapter      string
	config       *config.Config
	configPath   string
	forceTemp    bool
	mustExist    bool
	readOnly     bool
	devSafety    bool
	errorHandler func(error)
	telemetry    core.Telemetry
	clock        clock.Clock
}

// Option defines a functional option for configuring a workspace.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		logger:    slog.New(slog.DiscardHandler),
		devSafety: true,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for the workspace and everything it wires.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRepository injects a repository. The configured adapter is skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithAdapter overrides the storage adapter of the configuration by name
// ("fs", "sqlite" or "memory").
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithConfig uses cfg instead of reading the configuration file.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithConfigPath reads the configuration from path instead of
// <root>/entitydoc.toml.
func WithConfigPath(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithForceTemp forces the storage into a temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithMustExist requires the workspace directory to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithReadOnly opens the storage read-only. Documents report CanEdit false
// and every write is rejected with AccessDenied.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run`: by
// default storage is re-rooted into a temporary directory so development
// runs never touch real content.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithWatcherErrorHandler receives runtime failures of the storage watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithTelemetry sets the conflict telemetry sink. Defaults to logging the
// events.
func WithTelemetry(t core.Telemetry) Option {
	return func(o *options) {
		o.telemetry = t
	}
}

// WithClock sets the time source of every document's save throttle.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
