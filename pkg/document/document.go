// Package document is the public face of an entity being edited: typed
// reads and writes by path, reactive save status, lifecycle transitions and
// teardown. A Document owns its store, change bus and save scheduler.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/entitydoc/pkg/bus"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/normalize"
	"github.com/aretw0/entitydoc/pkg/paths"
	"github.com/aretw0/entitydoc/pkg/scheduler"
	"github.com/aretw0/entitydoc/pkg/status"
	"github.com/aretw0/entitydoc/pkg/store"
)

// PermissionUpdate is the action checked for CanEdit.
const PermissionUpdate = "update"

// Status is the reactive state of a document.
type Status struct {
	// Saving is true while a repository write runs, not while changes wait
	// for the throttle.
	Saving bool
	// Dirty is false only when the entity is published without later changes.
	Dirty bool
	// CanEdit is false for archived or deleted entities and without update
	// permission.
	CanEdit bool
	// Connected is false only while the last error is a disconnection.
	Connected bool
	// Err is the last unrecovered error.
	Err error
}

// Document is a live, editable entity.
type Document struct {
	ref        core.Ref
	repo       core.Repository
	opts       *options
	logger     *slog.Logger
	bus        *bus.Bus
	store      *store.Store
	sched      *scheduler.Scheduler
	normalizer normalize.Normalizer

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	listeners   map[int]func(Status)
	nextID      int
	last        Status
	unsubscribe []func()
	destroyed   bool
}

// Open fetches the entity and wraps it in a Document.
func Open(ctx context.Context, repo core.Repository, ref core.Ref, opts ...Option) (*Document, error) {
	entity, err := repo.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, core.Classify(err))
	}
	return New(entity, repo, opts...), nil
}

// New wraps an already loaded entity. The entity is normalized before it
// becomes the save baseline, so loading alone never triggers a save.
func New(entity core.Entity, repo core.Repository, opts ...Option) *Document {
	o := buildOptions(opts)
	if ct, ok := core.ContentTypeOf(entity.Sys, o.schema); ok && o.locales != nil {
		entity = normalize.Snapshot(entity, ct, o.locales.EnabledLocales())
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Document{
		ref:        entity.Sys.Ref(),
		repo:       repo,
		opts:       o,
		logger:     o.logger.With("ref", entity.Sys.Ref().String()),
		bus:        bus.New(),
		normalizer: normalize.Normalizer{Schema: o.schema, Locales: o.locales},
		ctx:        ctx,
		cancel:     cancel,
		listeners:  make(map[int]func(Status)),
	}
	d.store = store.New(entity, o.schema, d.bus)
	d.sched = scheduler.New(entity, scheduler.Config{
		Store:     d.store,
		Repo:      repo,
		Telemetry: o.telemetry,
		Clock:     o.clock,
		Throttle:  o.throttle,
		UsePatch:  o.patch,
		Normalize: func() { d.Normalize() },
		OnChange:  d.emit,
		Logger:    d.logger,
	})

	d.bus.Intercept(func(p paths.Path) {
		if p.Under(paths.RootFields) || p.Under(paths.RootMetadata) {
			d.normalizer.Apply(d.store)
		}
	})
	d.bus.Subscribe(d.sched.Notify)
	d.bus.SubscribeAt(paths.Path{paths.RootSys}, func(paths.Path) { d.emit() })

	if n, ok := repo.(core.Notifier); ok {
		d.unsubscribe = append(d.unsubscribe,
			n.OnContentEntityChanged(d.ref, func() { d.remoteChanged("entity changed") }),
			n.OnAssetFileProcessed(d.ref, func() { d.remoteChanged("asset file processed") }),
		)
	}

	d.last = d.Status()
	return d
}

// Ref identifies the entity.
func (d *Document) Ref() core.Ref {
	return d.ref
}

// Changes exposes the change bus for path-level reactivity.
func (d *Document) Changes() *bus.Bus {
	return d.bus
}

// GetValueAt returns a copy of the value at p, or nil.
func (d *Document) GetValueAt(p paths.Path) any {
	return d.store.GetValueAt(p)
}

// GetVersion returns the server-confirmed version.
func (d *Document) GetVersion() int {
	return d.store.Sys().Version
}

// Snapshot returns a deep copy of the live entity.
func (d *Document) Snapshot() core.Entity {
	return d.store.Snapshot()
}

// SetValueAt writes value at p. Text fields accept strings only and unset on
// "". Setting an asset file that carries an upload marker saves right away
// and returns once that save settled.
func (d *Document) SetValueAt(ctx context.Context, p paths.Path, value any) error {
	if err := d.edit(func() error { return d.store.SetValueAt(p, value) }); err != nil {
		return err
	}
	if d.isUpload(p, value) {
		d.logger.Debug("upload in progress, saving immediately")
		return d.sched.Attempt(ctx)
	}
	return nil
}

// PushValueAt appends to the list at p.
func (d *Document) PushValueAt(p paths.Path, value any) error {
	return d.edit(func() error { return d.store.PushValueAt(p, value) })
}

// InsertValueAt inserts into the list at p.
func (d *Document) InsertValueAt(p paths.Path, index int, value any) error {
	return d.edit(func() error { return d.store.InsertValueAt(p, index, value) })
}

// RemoveValueAt unsets p.
func (d *Document) RemoveValueAt(p paths.Path) error {
	return d.edit(func() error { return d.store.RemoveValueAt(p) })
}

func (d *Document) edit(fn func() error) error {
	if d.isDestroyed() {
		return core.ErrDestroyed
	}
	if err := fn(); err != nil {
		return err
	}
	d.sched.ClearError()
	return nil
}

func (d *Document) isUpload(p paths.Path, value any) bool {
	if d.ref.Type != core.TypeAsset || len(p) != 3 || p[0] != paths.RootFields || p[1] != "file" {
		return false
	}
	file, ok := value.(map[string]any)
	if !ok {
		return false
	}
	_, uploading := file["upload"]
	return uploading
}

// Normalize strips fields and locales the schema or the enabled locales no
// longer allow, e.g. after a locale was disabled.
func (d *Document) Normalize() []paths.Path {
	return d.normalizer.Apply(d.store)
}

// Save flushes pending changes now, even after a non-transient error.
func (d *Document) Save(ctx context.Context) error {
	if d.isDestroyed() {
		return core.ErrDestroyed
	}
	return d.sched.Flush(ctx)
}

// EntityState returns the lifecycle label of the entity.
func (d *Document) EntityState() status.State {
	return status.Of(d.store.Sys())
}

// ApplyAction flushes pending edits and then runs a lifecycle transition,
// so the server never transitions stale content.
func (d *Document) ApplyAction(ctx context.Context, action core.Action) (core.Entity, error) {
	if d.isDestroyed() {
		return core.Entity{}, core.ErrDestroyed
	}
	tr := d.opts.transitioner
	if tr == nil {
		var ok bool
		if tr, ok = d.repo.(core.Transitioner); !ok {
			return core.Entity{}, fmt.Errorf("%w: no lifecycle state manager for %s", core.ErrIllegalOperation, d.ref)
		}
	}
	d.logger.Info("applying lifecycle action", "action", string(action))
	return d.sched.Transition(ctx, func(ctx context.Context, e core.Entity) (core.Entity, error) {
		return tr.Transition(ctx, e, action)
	})
}

func (d *Document) remoteChanged(reason string) {
	if d.isDestroyed() {
		return
	}
	d.logger.Debug("remote notification", "reason", reason)
	lifecycle.Go(d.ctx, func(ctx context.Context) error {
		return d.sched.ApplyRemote(ctx)
	}, lifecycle.WithErrorHandler(func(err error) {
		d.logger.Warn("remote update failed", "error", err)
	}))
}

// Status computes the current reactive state.
func (d *Document) Status() Status {
	sys := d.store.Sys()
	err := d.sched.Err()
	return Status{
		Saving:    d.sched.Saving(),
		Dirty:     status.IsDirty(sys),
		CanEdit:   !status.IsArchived(sys) && !status.IsDeleted(sys) && d.opts.permissions.Can(PermissionUpdate),
		Connected: !core.IsDisconnected(err),
		Err:       err,
	}
}

// OnStatus calls fn whenever Status changes. Listeners run synchronously on
// the goroutine that caused the change and must not block. The returned
// function unsubscribes.
func (d *Document) OnStatus(fn func(Status)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return func() {}
	}
	d.nextID++
	id := d.nextID
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

func (d *Document) emit() {
	current := d.Status()

	d.mu.Lock()
	if d.destroyed || current == d.last {
		d.mu.Unlock()
		return
	}
	d.last = current
	listeners := make([]func(Status), 0, len(d.listeners))
	for _, fn := range d.listeners {
		listeners = append(listeners, fn)
	}
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(current)
	}
}

func (d *Document) isDestroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// Destroy detaches every listener and subscription, then saves pending
// edits one last time. A save already in flight completes first. Calling it
// again only repeats the final save.
func (d *Document) Destroy(ctx context.Context) error {
	d.mu.Lock()
	first := !d.destroyed
	d.destroyed = true
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.listeners = make(map[int]func(Status))
	d.mu.Unlock()

	if first {
		for _, fn := range unsubscribe {
			fn()
		}
		d.cancel()
		d.bus.Close()
		d.logger.Debug("document destroyed")
	}

	if err := d.sched.Final(ctx); err != nil {
		return fmt.Errorf("final save of %s: %w", d.ref, err)
	}
	return nil
}
