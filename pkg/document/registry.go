package document

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/entitydoc/pkg/core"
)

// Registry shares one Document per entity between its users. Each Acquire
// must be paired with a call to the release function it returns; the
// document is destroyed when the last user releases it.
type Registry struct {
	repo   core.Repository
	opts   []Option
	logger *slog.Logger

	mu   sync.Mutex
	docs map[core.Ref]*entry
}

type entry struct {
	doc   *Document
	refs  int
	ready chan struct{}
	err   error
}

// NewRegistry creates a registry opening documents from repo with opts.
func NewRegistry(repo core.Repository, opts ...Option) *Registry {
	return &Registry{
		repo:   repo,
		opts:   opts,
		logger: buildOptions(opts).logger,
		docs:   make(map[core.Ref]*entry),
	}
}

// Acquire returns the shared document for ref, opening it on first use.
// Concurrent first acquisitions open the entity once.
func (r *Registry) Acquire(ctx context.Context, ref core.Ref) (*Document, func(), error) {
	r.mu.Lock()
	e, ok := r.docs[ref]
	if ok {
		e.refs++
		r.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			r.release(ref, e)
			return nil, nil, ctx.Err()
		}
		if e.err != nil {
			r.release(ref, e)
			return nil, nil, e.err
		}
		return e.doc, r.releaseFunc(ref, e), nil
	}
	e = &entry{refs: 1, ready: make(chan struct{})}
	r.docs[ref] = e
	r.mu.Unlock()

	e.doc, e.err = Open(ctx, r.repo, ref, r.opts...)
	close(e.ready)
	if e.err != nil {
		r.release(ref, e)
		return nil, nil, e.err
	}
	r.logger.Debug("document opened", "ref", ref.String())
	return e.doc, r.releaseFunc(ref, e), nil
}

func (r *Registry) releaseFunc(ref core.Ref, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(ref, e) })
	}
}

func (r *Registry) release(ref core.Ref, e *entry) {
	r.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last && r.docs[ref] == e {
		delete(r.docs, ref)
	}
	r.mu.Unlock()

	if !last || e.doc == nil {
		return
	}
	if err := e.doc.Destroy(context.Background()); err != nil {
		r.logger.Warn("destroy on release failed", "ref", ref.String(), "error", err)
		return
	}
	r.logger.Debug("document released", "ref", ref.String())
}

// Len returns the number of open documents.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// Close destroys every open document regardless of outstanding users.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	open := make([]*entry, 0, len(r.docs))
	for ref, e := range r.docs {
		open = append(open, e)
		delete(r.docs, ref)
	}
	r.mu.Unlock()

	var firstErr error
	for _, e := range open {
		<-e.ready
		if e.doc == nil {
			continue
		}
		if err := e.doc.Destroy(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) refs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.docs))
	for ref := range r.docs {
		out = append(out, ref.String())
	}
	sort.Strings(out)
	return out
}
