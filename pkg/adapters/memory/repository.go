// Package memory is an in-memory entity repository with the optimistic
// versioning rules of the real API. It backs tests and demos.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/diff"
	"github.com/aretw0/entitydoc/pkg/paths"
	"github.com/aretw0/entitydoc/pkg/status"
)

// Repository implements core.Repository, core.Patcher, core.Transitioner
// and core.Notifier.
type Repository struct {
	mu        sync.Mutex
	entities  map[core.Ref]core.Entity
	failures  []error
	calls     []core.Entity
	inFlight  int
	maxFlight int
	nextSub   int
	changed   map[core.Ref]map[int]func()
	processed map[core.Ref]map[int]func()

	// BeforeUpdate, when set, runs before every Update/Patch is applied and
	// may block to simulate latency.
	BeforeUpdate func(ctx context.Context, entity core.Entity)
	// Now stamps updatedAt. Defaults to time.Now.
	Now func() time.Time
	// User stamps updatedBy.
	User string
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		entities:  make(map[core.Ref]core.Entity),
		changed:   make(map[core.Ref]map[int]func()),
		processed: make(map[core.Ref]map[int]func()),
		Now:       time.Now,
		User:      "memory",
	}
}

// Put stores entity as the current server state without version checks.
func (r *Repository) Put(entity core.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[entity.Sys.Ref()] = entity.Clone()
}

// Modify applies a concurrent server-side edit, bumping the version, and
// notifies subscribers of the entity.
func (r *Repository) Modify(ref core.Ref, fn func(e *core.Entity)) (core.Entity, error) {
	r.mu.Lock()
	current, ok := r.entities[ref]
	if !ok {
		r.mu.Unlock()
		return core.Entity{}, &core.RepositoryError{Code: core.CodeNotFound, Message: ref.String()}
	}
	next := current.Clone()
	fn(&next)
	next.Sys = current.Sys.Clone()
	next.Sys.Version++
	next.Sys.UpdatedAt = r.Now()
	next.Sys.UpdatedBy = "remote"
	r.entities[ref] = next
	subs := r.subscribers(r.changed, ref)
	r.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return next.Clone(), nil
}

// Delete removes the entity so later fetches report NotFound.
func (r *Repository) Delete(ref core.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entities, ref)
}

// FailNext queues errors returned by the next Update/Patch calls, in order.
func (r *Repository) FailNext(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, errs...)
}

// Calls returns the payloads of every Update/Patch call, failed ones included.
func (r *Repository) Calls() []core.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Entity, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Clone()
	}
	return out
}

// MaxInFlight is the highest number of concurrently running writes observed.
func (r *Repository) MaxInFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxFlight
}

// Update implements core.Repository.
func (r *Repository) Update(ctx context.Context, entity core.Entity) (core.Entity, error) {
	return r.write(ctx, entity)
}

// Patch implements core.Patcher. The diff is applied to the stored entity.
func (r *Repository) Patch(ctx context.Context, previous, next core.Entity) (core.Entity, error) {
	merged := next.Clone()
	r.mu.Lock()
	stored, ok := r.entities[next.Sys.Ref()]
	r.mu.Unlock()
	if ok && stored.Sys.Version == next.Sys.Version {
		merged = stored.Clone()
		merged.Sys = next.Sys
		for _, p := range diff.Entity(previous, next) {
			k, _ := p.Key()
			if k == paths.TagsKey {
				merged.Metadata.Tags = append([]core.Link(nil), next.Metadata.Tags...)
				continue
			}
			v, present := next.Fields[k.Field][k.Locale]
			if !present {
				delete(merged.Fields[k.Field], k.Locale)
				continue
			}
			if merged.Fields[k.Field] == nil {
				merged.Fields[k.Field] = map[string]any{}
			}
			merged.Fields[k.Field][k.Locale] = core.CloneValue(v)
		}
	}
	return r.write(ctx, merged)
}

func (r *Repository) write(ctx context.Context, entity core.Entity) (core.Entity, error) {
	r.mu.Lock()
	r.calls = append(r.calls, entity.Clone())
	r.inFlight++
	if r.inFlight > r.maxFlight {
		r.maxFlight = r.inFlight
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if r.BeforeUpdate != nil {
		r.BeforeUpdate(ctx, entity.Clone())
	}
	if err := ctx.Err(); err != nil {
		return core.Entity{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return core.Entity{}, err
	}

	ref := entity.Sys.Ref()
	current, ok := r.entities[ref]
	if !ok {
		return core.Entity{}, &core.RepositoryError{Code: core.CodeNotFound, Message: ref.String()}
	}
	if current.Sys.Version != entity.Sys.Version {
		return core.Entity{}, &core.RepositoryError{Code: core.CodeVersionMismatch}
	}
	if status.IsArchived(current.Sys) {
		return core.Entity{}, &core.RepositoryError{Code: core.CodeBadRequest, Message: "cannot update an archived entity"}
	}

	next := entity.Clone()
	next.Sys = current.Sys.Clone()
	next.Sys.Version++
	next.Sys.UpdatedAt = r.Now()
	next.Sys.UpdatedBy = r.User
	r.entities[ref] = next
	return next.Clone(), nil
}

// Get implements core.Repository.
func (r *Repository) Get(ctx context.Context, ref core.Ref) (core.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[ref]
	if !ok {
		return core.Entity{}, &core.RepositoryError{Code: core.CodeNotFound, Message: ref.String()}
	}
	return e.Clone(), nil
}

// Transition implements core.Transitioner.
func (r *Repository) Transition(ctx context.Context, entity core.Entity, action core.Action) (core.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := entity.Sys.Ref()
	current, ok := r.entities[ref]
	if !ok {
		return core.Entity{}, &core.RepositoryError{Code: core.CodeNotFound, Message: ref.String()}
	}
	if current.Sys.Version != entity.Sys.Version {
		return core.Entity{}, &core.RepositoryError{Code: core.CodeVersionMismatch}
	}
	sys, err := status.Apply(current.Sys, action, r.Now(), r.User)
	if err != nil {
		return core.Entity{}, err
	}
	current.Sys = sys
	r.entities[ref] = current
	return current.Clone(), nil
}

// OnContentEntityChanged implements core.Notifier.
func (r *Repository) OnContentEntityChanged(ref core.Ref, fn func()) func() {
	return r.subscribe(r.changed, ref, fn)
}

// OnAssetFileProcessed implements core.Notifier.
func (r *Repository) OnAssetFileProcessed(ref core.Ref, fn func()) func() {
	return r.subscribe(r.processed, ref, fn)
}

// ProcessAsset marks the file of an asset as processed and notifies.
func (r *Repository) ProcessAsset(ref core.Ref, locale string, url string) error {
	_, err := r.Modify(ref, func(e *core.Entity) {
		file, _ := e.Fields["file"][locale].(map[string]any)
		if file == nil {
			file = map[string]any{}
		}
		delete(file, "upload")
		file["url"] = url
		if e.Fields["file"] == nil {
			e.Fields["file"] = map[string]any{}
		}
		e.Fields["file"][locale] = file
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	subs := r.subscribers(r.processed, ref)
	r.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
	return nil
}

func (r *Repository) subscribe(table map[core.Ref]map[int]func(), ref core.Ref, fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	if table[ref] == nil {
		table[ref] = make(map[int]func())
	}
	table[ref][id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(table[ref], id)
	}
}

func (r *Repository) subscribers(table map[core.Ref]map[int]func(), ref core.Ref) []func() {
	out := make([]func(), 0, len(table[ref]))
	for _, fn := range table[ref] {
		out = append(out, fn)
	}
	return out
}

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Entities    int `json:"entities"`
	Calls       int `json:"calls"`
	MaxInFlight int `json:"max_in_flight"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RepositoryState{Entities: len(r.entities), Calls: len(r.calls), MaxInFlight: r.maxFlight}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "memory-repository"
}

var (
	_ core.Repository              = (*Repository)(nil)
	_ core.Patcher                 = (*Repository)(nil)
	_ core.Transitioner            = (*Repository)(nil)
	_ core.Notifier                = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
