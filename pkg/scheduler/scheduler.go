// Package scheduler persists local entity edits: it coalesces bursts of
// changes behind a throttle, keeps at most one save in flight, retries after
// disconnections and hands version conflicts to the conflict resolver.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"golang.org/x/sync/semaphore"

	"github.com/aretw0/entitydoc/pkg/clock"
	"github.com/aretw0/entitydoc/pkg/conflict"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/diff"
	"github.com/aretw0/entitydoc/pkg/paths"
	"github.com/aretw0/entitydoc/pkg/status"
)

// DefaultThrottle is the delay between the first pending change and the
// save it triggers.
const DefaultThrottle = 5 * time.Second

// Store is the live entity the scheduler saves from and merges into.
type Store interface {
	Snapshot() core.Entity
	ReplaceSys(sys core.Sys)
	ApplyRaw(p paths.Path, value any) error
	Unset(p paths.Path) bool
}

// Config wires a Scheduler.
type Config struct {
	Store     Store
	Repo      core.Repository
	Telemetry core.Telemetry
	Clock     clock.Clock
	Throttle  time.Duration
	// UsePatch sends diffs through core.Patcher when the repository supports it.
	UsePatch bool
	// Normalize re-applies normalization after the server confirmed a state.
	Normalize func()
	// OnChange is called whenever Saving, Updating or Err may have changed.
	OnChange func()
	Logger   *slog.Logger
}

// LastSaved is the last state the server agreed with, and when it was taken.
type LastSaved struct {
	Entity core.Entity
	At     time.Time
}

// Scheduler is the save state machine of one document.
type Scheduler struct {
	cfg      Config
	resolver *conflict.Resolver
	ref      core.Ref

	ctx    context.Context
	cancel context.CancelFunc

	// transition is held by lifecycle transitions and by save attempts, so
	// an attempt waits for an in-flight transition and re-evaluates after it.
	transition *semaphore.Weighted
	// exclusive is held by saves and remote updates; they never overlap.
	exclusive *semaphore.Weighted

	mu        sync.Mutex
	timer     clock.Timer
	saving    bool
	updating  bool
	buffered  bool
	err       error
	lastSaved LastSaved
	onChange  func()
	destroyed bool
}

// New creates a scheduler whose baseline is the entity as loaded from the
// server.
func New(loaded core.Entity, cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg: cfg,
		resolver: &conflict.Resolver{
			Repo:      cfg.Repo,
			Telemetry: cfg.Telemetry,
			Logger:    cfg.Logger,
		},
		ref:        loaded.Sys.Ref(),
		ctx:        ctx,
		cancel:     cancel,
		transition: semaphore.NewWeighted(1),
		exclusive:  semaphore.NewWeighted(1),
		lastSaved:  LastSaved{Entity: loaded.Clone(), At: cfg.Clock.Now()},
		onChange:   cfg.OnChange,
	}
}

// Saving reports whether a repository write is running.
func (s *Scheduler) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Updating reports whether a remote update is being applied.
func (s *Scheduler) Updating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updating
}

// Err returns the last unrecovered error.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LastSaved returns a copy of the baseline.
func (s *Scheduler) LastSaved() LastSaved {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LastSaved{Entity: s.lastSaved.Entity.Clone(), At: s.lastSaved.At}
}

// Pending reports whether the throttle window is open.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Notify feeds a change event. Only changes under fields or metadata count.
// While a save runs they are buffered and replayed once it completes.
func (s *Scheduler) Notify(p paths.Path) {
	if !p.Under(paths.RootFields) && !p.Under(paths.RootMetadata) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	if s.saving {
		s.buffered = true
		return
	}
	s.startThrottleLocked()
}

// ClearError drops a recorded error after a new local edit so automatic
// saving resumes. A version mismatch is kept: it needs a reload. A
// disconnection is kept until a request succeeds; it retries on its own.
func (s *Scheduler) ClearError() {
	s.mu.Lock()
	if s.err == nil || core.IsVersionMismatch(s.err) || core.IsDisconnected(s.err) {
		s.mu.Unlock()
		return
	}
	s.err = nil
	s.mu.Unlock()
	s.changed()
}

func (s *Scheduler) startThrottleLocked() {
	if s.timer != nil || s.destroyed {
		return
	}
	s.timer = s.cfg.Clock.AfterFunc(s.cfg.Throttle, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()
	s.spawn("throttled save", func(ctx context.Context) error {
		return s.Attempt(ctx)
	})
}

func (s *Scheduler) spawn(name string, fn func(ctx context.Context) error) {
	lifecycle.Go(s.ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			s.cfg.Logger.Debug(name+" finished with error", "ref", s.ref.String(), "error", err)
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.cfg.Logger.Error(name+" panic", "ref", s.ref.String(), "error", err)
	}))
}

// Attempt runs one save attempt once no lifecycle transition or other save
// is in flight. It is a no-op when nothing changed since the last save, or
// when a non-transient error halted automatic saving.
func (s *Scheduler) Attempt(ctx context.Context) error {
	return s.locked(ctx, func() error {
		return s.save(ctx, false)
	})
}

// Flush saves pending changes now, regardless of a recorded error.
func (s *Scheduler) Flush(ctx context.Context) error {
	return s.locked(ctx, func() error {
		return s.flush(ctx)
	})
}

func (s *Scheduler) locked(ctx context.Context, fn func() error) error {
	if err := s.transition.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.transition.Release(1)
	if err := s.exclusive.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.exclusive.Release(1)
	return fn()
}

// flush saves until local state matches the server or a save fails. A merged
// conflict leaves the local edits unsaved, hence the second round.
func (s *Scheduler) flush(ctx context.Context) error {
	for range 2 {
		if err := s.save(ctx, true); err != nil {
			return err
		}
		if diff.Equal(s.cfg.Store.Snapshot(), s.LastSaved().Entity) {
			return nil
		}
	}
	return s.Err()
}

// save must be called with both gates held.
func (s *Scheduler) save(ctx context.Context, force bool) error {
	local := s.cfg.Store.Snapshot()

	s.mu.Lock()
	base := LastSaved{Entity: s.lastSaved.Entity, At: s.lastSaved.At}
	lastErr := s.err
	s.mu.Unlock()

	if diff.Equal(local, base.Entity) {
		return nil
	}
	if lastErr != nil && !core.IsDisconnected(lastErr) && !force {
		s.cfg.Logger.Debug("save skipped, automatic saving halted", "ref", s.ref.String(), "error", lastErr)
		return nil
	}

	s.setSaving(true)
	defer s.finishSave()

	// The write outlives a destroy: its result still lands in LastSaved.
	callCtx := context.WithoutCancel(ctx)
	saved, err := s.persist(callCtx, base.Entity, local)
	if err == nil {
		confirmed := local
		confirmed.Sys = saved.Sys
		s.cfg.Store.ReplaceSys(saved.Sys)
		s.mu.Lock()
		s.lastSaved = LastSaved{Entity: confirmed, At: s.cfg.Clock.Now()}
		s.err = nil
		s.mu.Unlock()
		s.cfg.Logger.Debug("entity saved", "ref", s.ref.String(), "version", saved.Sys.Version)
		s.normalize()
		return nil
	}

	classified := core.Classify(err)
	if classified.Kind == core.KindVersionMismatch {
		return s.resolve(callCtx, base, local)
	}
	s.cfg.Logger.Warn("save failed", "ref", s.ref.String(), "kind", classified.Kind.String(), "error", err)
	s.recordError(classified)
	return classified
}

func (s *Scheduler) persist(ctx context.Context, base, local core.Entity) (core.Entity, error) {
	if s.cfg.UsePatch {
		if p, ok := s.cfg.Repo.(core.Patcher); ok {
			return p.Patch(ctx, base, local)
		}
	}
	return s.cfg.Repo.Update(ctx, local)
}

func (s *Scheduler) resolve(ctx context.Context, base LastSaved, local core.Entity) error {
	res, err := s.resolver.Resolve(ctx, conflict.Input{
		Ref:         s.ref,
		Base:        base.Entity,
		BaseSavedAt: base.At,
		Local:       local,
	})
	if err != nil {
		classified := core.Classify(err)
		s.recordError(classified)
		return classified
	}

	switch res.Outcome {
	case conflict.Abandoned:
		return nil
	case conflict.Archived:
		s.cfg.Store.ReplaceSys(res.Remote.Sys)
		archived := &core.SyncError{Kind: core.KindArchived, Err: fmt.Errorf("%s was archived at version %d", s.ref, res.Remote.Sys.Version)}
		s.recordError(archived)
		return archived
	case conflict.Merged:
		return s.merge(res.Remote, res.Report.RemoteChanged)
	default:
		mismatch := &core.SyncError{Kind: core.KindVersionMismatch, Err: fmt.Errorf("%d conflicting paths", len(res.Report.SamePath))}
		s.recordError(mismatch)
		return mismatch
	}
}

// merge writes the remote changes into the live entity and adopts the remote
// state as the new baseline. Local edits on other paths stay pending and are
// saved through the throttle, even when the remote only changed sys.
func (s *Scheduler) merge(remote core.Entity, keys []paths.Key) error {
	if err := conflict.Merge(s.cfg.Store, remote, keys); err != nil {
		wrapped := &core.SyncError{Kind: core.KindInternalServer, Err: fmt.Errorf("merge remote changes: %w", err)}
		s.recordError(wrapped)
		return wrapped
	}
	s.cfg.Store.ReplaceSys(remote.Sys)
	s.mu.Lock()
	s.lastSaved = LastSaved{Entity: remote.Clone(), At: s.cfg.Clock.Now()}
	s.err = nil
	s.mu.Unlock()
	s.normalize()

	if !diff.Equal(s.cfg.Store.Snapshot(), remote) {
		s.mu.Lock()
		if s.saving {
			s.buffered = true
		} else {
			s.startThrottleLocked()
		}
		s.mu.Unlock()
	}
	s.changed()
	return nil
}

// ApplyRemote refreshes the entity after a server-pushed change
// notification. It is serialized against saves.
func (s *Scheduler) ApplyRemote(ctx context.Context) error {
	if err := s.exclusive.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.exclusive.Release(1)

	s.setUpdating(true)
	defer s.setUpdating(false)

	remote, err := s.cfg.Repo.Get(context.WithoutCancel(ctx), s.ref)
	if err != nil {
		classified := core.Classify(err)
		s.cfg.Logger.Warn("remote update fetch failed", "ref", s.ref.String(), "error", err)
		return classified
	}

	local := s.cfg.Store.Snapshot()
	if remote.Sys.Version <= local.Sys.Version {
		return nil
	}

	base := s.LastSaved()
	report := conflict.Compare(base.Entity, local, remote)
	report.Ref = s.ref
	report.BaseSavedAt = base.At
	if len(report.LocalChanged) > 0 && !status.IsArchived(remote.Sys) && s.cfg.Telemetry != nil {
		s.cfg.Telemetry.Track(conflict.EventName, report.Payload())
	}
	if !report.AutoResolvable {
		mismatch := &core.SyncError{Kind: core.KindVersionMismatch, Err: fmt.Errorf("remote change overlaps %d local paths", len(report.SamePath))}
		s.recordError(mismatch)
		return mismatch
	}
	s.cfg.Logger.Debug("applying remote update", "ref", s.ref.String(), "version", remote.Sys.Version)
	return s.merge(remote, report.RemoteChanged)
}

// Transition runs a lifecycle-state change: pending edits are flushed first
// so the server never transitions stale data, then apply runs with saves and
// remote updates held off. Anything that accumulated meanwhile is saved
// through the throttle afterwards.
func (s *Scheduler) Transition(ctx context.Context, apply func(ctx context.Context, entity core.Entity) (core.Entity, error)) (core.Entity, error) {
	updated, err := s.transitionLocked(ctx, apply)
	s.mu.Lock()
	s.startThrottleLocked()
	s.mu.Unlock()
	return updated, err
}

func (s *Scheduler) transitionLocked(ctx context.Context, apply func(ctx context.Context, entity core.Entity) (core.Entity, error)) (core.Entity, error) {
	if err := s.transition.Acquire(ctx, 1); err != nil {
		return core.Entity{}, err
	}
	defer s.transition.Release(1)
	if err := s.exclusive.Acquire(ctx, 1); err != nil {
		return core.Entity{}, err
	}
	defer s.exclusive.Release(1)

	if err := s.flush(ctx); err != nil {
		return core.Entity{}, fmt.Errorf("flush before transition: %w", err)
	}

	updated, err := apply(context.WithoutCancel(ctx), s.cfg.Store.Snapshot())
	if err != nil {
		return core.Entity{}, core.Classify(err)
	}
	s.cfg.Store.ReplaceSys(updated.Sys)
	s.mu.Lock()
	s.lastSaved.Entity.Sys = updated.Sys.Clone()
	s.mu.Unlock()
	s.changed()
	return updated, nil
}

// Final saves one last time on destroy. Status callbacks and the throttle
// are detached first; an in-flight save is waited for. Calling it again is
// harmless.
func (s *Scheduler) Final(ctx context.Context) error {
	s.mu.Lock()
	s.destroyed = true
	s.onChange = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.cancel()

	return s.locked(ctx, func() error {
		return s.flush(ctx)
	})
}

func (s *Scheduler) setSaving(v bool) {
	s.mu.Lock()
	s.saving = v
	s.mu.Unlock()
	s.changed()
}

func (s *Scheduler) setUpdating(v bool) {
	s.mu.Lock()
	s.updating = v
	s.mu.Unlock()
	s.changed()
}

// finishSave closes the saving gate, then replays changes buffered during
// the save, or schedules a retry after a disconnection.
func (s *Scheduler) finishSave() {
	s.mu.Lock()
	s.saving = false
	if s.buffered || core.IsDisconnected(s.err) {
		s.startThrottleLocked()
	}
	s.buffered = false
	s.mu.Unlock()
	s.changed()
}

func (s *Scheduler) recordError(err *core.SyncError) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.changed()
}

func (s *Scheduler) normalize() {
	if s.cfg.Normalize != nil {
		s.cfg.Normalize()
	}
}

func (s *Scheduler) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
