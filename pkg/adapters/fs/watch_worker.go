package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/entitydoc/pkg/core"
)

// DefaultWatchDelay is how long a file must stay quiet before its change is
// reported.
const DefaultWatchDelay = 50 * time.Millisecond

// Watcher turns external edits of entity files into OnContentEntityChanged
// notifications. Writes made through the repository itself are recognized by
// their version and not reported.
type Watcher struct {
	*worker.BaseWorker
	repo      *Repository
	delay     time.Duration
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

// Watch starts a Watcher bound to ctx.
func (r *Repository) Watch(ctx context.Context) (*Watcher, error) {
	w := newWatcher(r, DefaultWatchDelay)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func newWatcher(repo *Repository, delay time.Duration) *Watcher {
	return &Watcher{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		delay:      delay,
	}
}

// Start begins watching the entity directories.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watched := 0
	for _, t := range []string{core.TypeEntry, core.TypeAsset} {
		dir := filepath.Join(w.repo.Path, typeDir(t))
		if err := watcher.Add(dir); err != nil {
			w.repo.config.Logger.Debug("not watching directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = watcher.Close()
		return fmt.Errorf("no entity directories to watch under %s", w.repo.Path)
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.delay)
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

// Stop ends the watch loop and waits for it.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *Watcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"path":              w.repo.Path,
		}
	})
}

func (w *Watcher) shouldIgnore(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, TempFilePrefix) || strings.HasPrefix(base, ".") {
		return true
	}
	_, ok := w.repo.resolveRef(event.Name)
	return !ok
}

// processFilesystemEvent debounces an event for its entity. Returns false
// when the event does not concern an entity file.
func (w *Watcher) processFilesystemEvent(ctx context.Context, event fsnotify.Event) (processed bool) {
	if w.shouldIgnore(event) {
		return false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ref, _ := w.repo.resolveRef(event.Name)
	path := event.Name

	w.repo.config.Logger.Debug("event received", "ref", ref.String(), "op", event.Op.String())
	w.debouncer.add(ref, func(ref core.Ref) {
		if ctx.Err() != nil {
			return
		}
		if w.settle(path) {
			w.repo.config.Logger.Info("external change detected", "ref", ref.String())
			w.repo.notify(w.repo.changed, ref)
		}
	})
	return true
}

// settle brings the index in line with path and reports whether the entity
// changed outside the repository.
func (w *Watcher) settle(path string) bool {
	rel := w.repo.rel(path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if _, known := w.repo.cache.Version(rel); !known {
			return false
		}
		w.repo.cache.Delete(rel)
		w.saveIndex()
		return true
	}
	changed := w.repo.refresh(path)
	w.saveIndex()
	return changed
}

func (w *Watcher) saveIndex() {
	if err := w.repo.cache.Save(); err != nil {
		w.report(fmt.Errorf("failed to save index: %w", err))
	}
}

// reconcile catches up after the kernel dropped events.
func (w *Watcher) reconcile(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		refs, err := w.repo.Reconcile(ctx)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			w.repo.notify(w.repo.changed, ref)
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		w.report(fmt.Errorf("reconcile failed: %w", err))
	}))
}

func (w *Watcher) report(err error) {
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
		return
	}
	w.repo.config.Logger.Error("watcher error", "error", err)
}

// run is the main event loop for the watcher worker.
func (w *Watcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)

			// Stack traces only at debug level.
			if w.repo.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.repo.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.repo.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// Wait for in-flight callbacks before the worker reports stopped.
	w.debouncer.stopAndWait(5 * time.Second)

	return err
}

func (w *Watcher) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			if errors.Is(wErr, fsnotify.ErrEventOverflow) {
				w.repo.config.Logger.Warn("fsnotify overflow, reconciling")
				w.reconcile(ctx)
				continue
			}
			w.report(wErr)
		}
	}
}
