package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/aretw0/entitydoc/pkg/adapters/fs"
	"github.com/aretw0/entitydoc/pkg/config"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/document"
	"github.com/aretw0/entitydoc/pkg/telemetry"
)

// Workspace wires a configuration, a repository and a document registry.
type Workspace struct {
	Root     string
	Repo     core.Repository
	Catalog  *config.Catalog
	Registry *document.Registry

	logger *slog.Logger
	loader *config.Loader

	mu       sync.Mutex
	config   *config.Config
	watchers []*fs.Watcher
	closed   bool
}

// Open prepares the workspace at root:
//
//	ws, err := platform.Open(ctx, "./site", platform.WithAdapter("sqlite"))
//
// The configuration comes from WithConfig, or from <root>/entitydoc.toml
// when present, or the defaults.
func Open(ctx context.Context, root string, opts ...Option) (*Workspace, error) {
	o := buildOptions(opts)

	useTemp := o.forceTemp || (IsDevRun() && o.devSafety && !o.readOnly)
	resolved := ResolveWorkspacePath(root, useTemp)
	if IsDevRun() && useTemp {
		o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
	}

	ws := &Workspace{Root: resolved, logger: o.logger}

	cfg := o.config
	if cfg == nil {
		path := o.configPath
		if path == "" {
			path = filepath.Join(resolved, config.DefaultPath)
		}
		ws.loader = config.NewLoader(path, o.logger)
		var err error
		if cfg, err = ws.loader.Load(); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = cfg.Clone()
	}
	if o.readOnly {
		cfg.ReadOnly = true
	}
	ws.config = cfg

	repo, err := initRepository(ctx, resolved, cfg, o)
	if err != nil {
		return nil, err
	}
	ws.Repo = repo
	ws.Catalog = config.NewCatalog(cfg)

	sink := o.telemetry
	if sink == nil {
		sink = telemetry.NewLogger(o.logger)
	}
	docOpts := []document.Option{
		document.WithLogger(o.logger),
		document.WithThrottle(cfg.ThrottleDuration()),
		document.WithSchema(ws.Catalog),
		document.WithLocales(ws.Catalog),
		document.WithPermissions(cfg.Permissions()),
		document.WithTelemetry(sink),
		document.WithPatch(cfg.Patch),
	}
	if o.clock != nil {
		docOpts = append(docOpts, document.WithClock(o.clock))
	}
	ws.Registry = document.NewRegistry(repo, docOpts...)

	o.logger.Debug("workspace opened", "root", resolved, "adapter", cfg.Storage.Adapter)
	return ws, nil
}

// Config returns the current configuration.
func (w *Workspace) Config() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.config
}

// Acquire opens or shares the document of ref. Call release when done.
func (w *Workspace) Acquire(ctx context.Context, ref core.Ref) (*document.Document, func(), error) {
	return w.Registry.Acquire(ctx, ref)
}

// Create stores a new entity when the repository supports it.
func (w *Workspace) Create(ctx context.Context, e core.Entity) (core.Entity, error) {
	c, ok := w.Repo.(Creator)
	if !ok {
		return core.Entity{}, fmt.Errorf("%w: repository cannot create entities", core.ErrIllegalOperation)
	}
	return c.Create(ctx, e)
}

// List enumerates entities of one type when the repository supports it.
func (w *Workspace) List(ctx context.Context, entityType string) ([]core.Entity, error) {
	l, ok := w.Repo.(Lister)
	if !ok {
		return nil, fmt.Errorf("%w: repository cannot list entities", core.ErrIllegalOperation)
	}
	return l.List(ctx, entityType)
}

// Delete removes an entity when the repository supports it.
func (w *Workspace) Delete(ctx context.Context, ref core.Ref) error {
	d, ok := w.Repo.(Deleter)
	if !ok {
		return fmt.Errorf("%w: repository cannot delete entities", core.ErrIllegalOperation)
	}
	return d.Delete(ctx, ref)
}

// Watch starts push notifications for external storage edits and
// hot-reloads the configuration file. Locales and content types apply to
// open documents on their next normalization.
func (w *Workspace) Watch(ctx context.Context) error {
	if repo, ok := w.Repo.(*fs.Repository); ok {
		watcher, err := repo.Watch(ctx)
		if err != nil {
			return fmt.Errorf("watch storage: %w", err)
		}
		w.mu.Lock()
		w.watchers = append(w.watchers, watcher)
		w.mu.Unlock()
	}

	if w.loader == nil {
		return nil
	}
	w.loader.OnChange(func(cfg *config.Config) {
		w.mu.Lock()
		w.config = cfg
		w.mu.Unlock()
		w.Catalog.Update(cfg)
		w.logger.Info("configuration reloaded", "locales", cfg.Locales)
	})
	if err := w.loader.Watch(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	return nil
}

// Close destroys open documents, stops watchers and closes the repository.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	watchers := w.watchers
	w.watchers = nil
	w.mu.Unlock()

	var errs []error
	if err := w.Registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, watcher := range watchers {
		if err := watcher.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if w.loader != nil {
		if err := w.loader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := w.Repo.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
