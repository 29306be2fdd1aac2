package fs

import (
	"sync"
	"time"

	"github.com/aretw0/entitydoc/pkg/core"
)

// debouncer collapses bursts of filesystem events per entity. Editors often
// write a file in several steps; only the last event of a burst fires.
type debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	timers  map[core.Ref]*time.Timer
	wg      sync.WaitGroup
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		timers: make(map[core.Ref]*time.Timer),
	}
}

// add schedules fn for ref, replacing a pending call for the same ref.
func (d *debouncer) add(ref core.Ref, fn func(core.Ref)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[ref]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[ref] == t {
			delete(d.timers, ref)
		}
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn(ref)
		}
	})
	d.timers[ref] = t
}

// pending returns the number of scheduled calls.
func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// stopAndWait drops pending calls and waits up to timeout for running ones.
func (d *debouncer) stopAndWait(timeout time.Duration) bool {
	d.mu.Lock()
	d.stopped = true
	for ref, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, ref)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
