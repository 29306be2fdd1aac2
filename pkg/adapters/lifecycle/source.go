// Package lifecycle exposes document changes as a lifecycle.Source, so a
// supervisor or event router can react to edits and save status.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/document"
	"github.com/aretw0/entitydoc/pkg/paths"
)

// Event kinds.
const (
	KindChange = "change"
	KindStatus = "status"
)

// Event is a document change or status transition.
type Event struct {
	Ref    core.Ref
	Kind   string
	Path   paths.Path      // set for KindChange
	Status document.Status // set for KindStatus
}

func (e Event) String() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s %s saving=%t dirty=%t connected=%t", e.Ref, e.Kind, e.Status.Saving, e.Status.Dirty, e.Status.Connected)
	}
	return fmt.Sprintf("%s %s %s", e.Ref, e.Kind, e.Path)
}

type documentSource struct {
	doc     *document.Document
	pattern string
	out     chan lifecycle.Event

	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
}

// NewSource creates a lifecycle.Source emitting the changes of doc whose
// path matches pattern (a doublestar glob over "/"-joined paths; empty
// matches everything) and every status transition.
//
// Document listeners run on the editing goroutine and must not block, so
// events are queued and forwarded by a tracked goroutine.
func NewSource(doc *document.Document, pattern string) lifecycle.Source {
	return &documentSource{
		doc:     doc,
		pattern: pattern,
		out:     make(chan lifecycle.Event),
		wake:    make(chan struct{}, 1),
	}
}

func (s *documentSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *documentSource) Start(ctx context.Context) error {
	ref := s.doc.Ref()
	onChange := func(p paths.Path) {
		s.push(Event{Ref: ref, Kind: KindChange, Path: append(paths.Path(nil), p...)})
	}

	var unsubChanges func()
	if s.pattern == "" {
		unsubChanges = s.doc.Changes().Subscribe(onChange)
	} else {
		var err error
		if unsubChanges, err = s.doc.Changes().SubscribePattern(s.pattern, onChange); err != nil {
			return fmt.Errorf("subscribe %q: %w", s.pattern, err)
		}
	}
	unsubStatus := s.doc.OnStatus(func(st document.Status) {
		s.push(Event{Ref: ref, Kind: KindStatus, Status: st})
	})

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer unsubStatus()
		defer unsubChanges()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			for _, e := range s.drain() {
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

func (s *documentSource) push(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *documentSource) drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}
