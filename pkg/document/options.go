package document

import (
	"log/slog"
	"time"

	"github.com/aretw0/entitydoc/pkg/clock"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/scheduler"
	"github.com/aretw0/entitydoc/pkg/telemetry"
)

// options holds the collaborators of a document.
type options struct {
	logger       *slog.Logger
	clock        clock.Clock
	throttle     time.Duration
	schema       core.SchemaProvider
	locales      core.LocaleProvider
	permissions  core.Permissions
	telemetry    core.Telemetry
	transitioner core.Transitioner
	patch        bool
}

// Option configures a Document or a Registry.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:      slog.New(slog.DiscardHandler),
		clock:       clock.Real(),
		throttle:    scheduler.DefaultThrottle,
		permissions: core.AllowAll,
		telemetry:   telemetry.Nop,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger. A nil logger keeps the discard default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the time source of the save throttle.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithThrottle sets the delay between the first pending change and its save.
func WithThrottle(d time.Duration) Option {
	return func(o *options) {
		o.throttle = d
	}
}

// WithSchema sets the content types used for text-field checks and
// normalization.
func WithSchema(schema core.SchemaProvider) Option {
	return func(o *options) {
		o.schema = schema
	}
}

// WithLocales sets the enabled locales. Without it normalization is off.
func WithLocales(locales core.LocaleProvider) Option {
	return func(o *options) {
		o.locales = locales
	}
}

// WithPermissions sets the permission checker behind Status.CanEdit.
func WithPermissions(p core.Permissions) Option {
	return func(o *options) {
		o.permissions = p
	}
}

// WithTelemetry sets the sink conflict reports are tracked on.
func WithTelemetry(t core.Telemetry) Option {
	return func(o *options) {
		o.telemetry = t
	}
}

// WithTransitioner sets the lifecycle state manager. By default the
// repository is used when it implements core.Transitioner.
func WithTransitioner(t core.Transitioner) Option {
	return func(o *options) {
		o.transitioner = t
	}
}

// WithPatch saves diffs instead of full documents when the repository
// implements core.Patcher.
func WithPatch(patch bool) Option {
	return func(o *options) {
		o.patch = patch
	}
}
