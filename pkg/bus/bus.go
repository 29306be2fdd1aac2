// Package bus is the path-addressed change notification stream every derived
// read-view of a document is fed from.
package bus

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/entitydoc/pkg/paths"
)

// Handler receives the path of a change.
type Handler func(p paths.Path)

type subscription struct {
	id      uint64
	matches func(paths.Path) bool
	fn      Handler
}

// Bus delivers changes synchronously, in subscription order, without
// buffering. The interceptor, when set, runs before every subscriber so the
// rest of the subscribers only ever observe normalized data.
type Bus struct {
	mu          sync.Mutex
	nextID      uint64
	intercept   Handler
	subscribers []subscription
	closed      bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Intercept installs the handler that runs ahead of all subscribers.
func (b *Bus) Intercept(fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.intercept = fn
}

// Subscribe receives every change. The returned function unsubscribes.
func (b *Bus) Subscribe(fn Handler) func() {
	return b.add(func(paths.Path) bool { return true }, fn)
}

// SubscribeAt receives changes at, above or below p.
func (b *Bus) SubscribeAt(p paths.Path, fn Handler) func() {
	watched := append(paths.Path(nil), p...)
	return b.add(func(changed paths.Path) bool {
		return paths.Affects(changed, watched)
	}, fn)
}

// SubscribePattern receives changes whose slash-joined path matches the glob,
// e.g. "fields/*/en-US" or "metadata/**".
func (b *Bus) SubscribePattern(pattern string, fn Handler) (func(), error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	return b.add(func(changed paths.Path) bool {
		ok, _ := doublestar.Match(pattern, changed.String())
		return ok
	}, fn), nil
}

func (b *Bus) add(matches func(paths.Path) bool, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscription{id: id, matches: matches, fn: fn})
	return func() { b.remove(id) }
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish announces a change at p.
func (b *Bus) Publish(p paths.Path) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	intercept := b.intercept
	subs := append([]subscription(nil), b.subscribers...)
	b.mu.Unlock()

	if intercept != nil {
		intercept(p)
	}
	for _, s := range subs {
		if s.matches(p) {
			s.fn(p)
		}
	}
}

// Len returns the number of subscribers, the interceptor excluded.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close detaches every subscriber and drops further changes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.intercept = nil
	b.subscribers = nil
}
