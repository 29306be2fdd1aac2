// Package conflict detects version conflicts between local and remote edits
// of an entity and merges remote changes that do not overlap local ones.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/diff"
	"github.com/aretw0/entitydoc/pkg/paths"
	"github.com/aretw0/entitydoc/pkg/status"
)

// EventName is the telemetry event every conflict report is emitted as.
const EventName = "entity_editor:conflict"

// Report describes one conflict-handling cycle.
type Report struct {
	Ref            core.Ref
	LocalChanged   []paths.Key
	RemoteChanged  []paths.Key
	SamePath       []paths.Key
	AutoResolvable bool
	LocalSys       core.Sys
	RemoteSys      core.Sys
	BaseSavedAt    time.Time
}

// Compare diffs local and remote against the last state both agreed on. The
// conflict is auto-resolvable iff the two sides touched disjoint paths.
func Compare(base, local, remote core.Entity) Report {
	localKeys := diff.Keys(base, local)
	remoteKeys := diff.Keys(base, remote)
	same := localKeys.Intersect(remoteKeys)

	return Report{
		Ref:            local.Sys.Ref(),
		LocalChanged:   diff.SortedKeys(localKeys),
		RemoteChanged:  diff.SortedKeys(remoteKeys),
		SamePath:       diff.SortedKeys(same),
		AutoResolvable: same.Cardinality() == 0,
		LocalSys:       local.Sys,
		RemoteSys:      remote.Sys,
	}
}

// Payload renders the report for telemetry. Counts are precomputed so
// aggregate analysis does not need to parse path lists.
func (r Report) Payload() map[string]any {
	return map[string]any{
		"entityId":                      r.Ref.ID,
		"entityType":                    r.Ref.Type,
		"localChangesPaths":             keyStrings(r.LocalChanged),
		"remoteChangesPaths":            keyStrings(r.RemoteChanged),
		"sameFieldLocaleConflictsPaths": keyStrings(r.SamePath),
		"sameFieldLocaleConflictsCount": len(r.SamePath),
		"localChangesCount":             len(r.LocalChanged),
		"remoteChangesCount":            len(r.RemoteChanged),
		"isConflictAutoResolvable":      r.AutoResolvable,
		"localEntityState":              string(status.Of(r.LocalSys)),
		"remoteEntityState":             string(status.Of(r.RemoteSys)),
		"localEntityVersion":            r.LocalSys.Version,
		"remoteEntityVersion":           r.RemoteSys.Version,
		"localEntityUpdatedAt":          r.LocalSys.UpdatedAt,
		"remoteEntityUpdatedAt":         r.RemoteSys.UpdatedAt,
		"remoteEntityUpdatedBy":         r.RemoteSys.UpdatedBy,
		"localEntityLastSaveAt":         r.BaseSavedAt,
	}
}

func keyStrings(keys []paths.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}

// Outcome is how a conflict cycle ended.
type Outcome int

const (
	// Merged means remote changes were disjoint from local ones and can be
	// merged into the live entity.
	Merged Outcome = iota + 1
	// Unresolved means both sides changed the same path.
	Unresolved
	// Abandoned means the remote entity is gone.
	Abandoned
	// Archived means the remote entity was archived meanwhile. Archiving is
	// not an edit conflict and is not reported.
	Archived
)

// Input is the state a conflict is evaluated from.
type Input struct {
	Ref         core.Ref
	Base        core.Entity
	BaseSavedAt time.Time
	Local       core.Entity
}

// Result carries the fetched remote entity and the report.
type Result struct {
	Outcome Outcome
	Remote  core.Entity
	Report  Report
}

// Resolver fetches remote state and classifies conflicts.
type Resolver struct {
	Repo      core.Repository
	Telemetry core.Telemetry
	Logger    *slog.Logger
}

// Resolve runs one conflict cycle. A remote entity that no longer exists
// abandons the cycle without error; any other fetch failure is reported as
// an internal server error. An archived remote ends the cycle without
// telemetry.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Result, error) {
	remote, err := r.Repo.Get(ctx, in.Ref)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			r.log().Debug("conflict abandoned, remote entity not found", "ref", in.Ref.String())
			return Result{Outcome: Abandoned}, nil
		}
		return Result{}, &core.SyncError{Kind: core.KindInternalServer, Err: fmt.Errorf("fetch remote entity: %w", err)}
	}

	if status.IsArchived(remote.Sys) {
		r.log().Info("version conflict with archived entity", "ref", in.Ref.String(), "version", remote.Sys.Version)
		return Result{Outcome: Archived, Remote: remote}, nil
	}

	report := Compare(in.Base, in.Local, remote)
	report.Ref = in.Ref
	report.BaseSavedAt = in.BaseSavedAt
	if r.Telemetry != nil {
		r.Telemetry.Track(EventName, report.Payload())
	}

	outcome := Unresolved
	if report.AutoResolvable {
		outcome = Merged
	}
	r.log().Info("version conflict",
		"ref", in.Ref.String(),
		"auto_resolvable", report.AutoResolvable,
		"local_changes", len(report.LocalChanged),
		"remote_changes", len(report.RemoteChanged),
	)
	return Result{Outcome: outcome, Remote: remote, Report: report}, nil
}

func (r *Resolver) log() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// Target is the store surface a merge writes through.
type Target interface {
	ApplyRaw(p paths.Path, value any) error
	Unset(p paths.Path) bool
}

// Merge overwrites only the given paths with the remote values, leaving the
// rest of the local entity intact. A path missing on the remote is unset.
func Merge(t Target, remote core.Entity, keys []paths.Key) error {
	for _, k := range keys {
		if k == paths.TagsKey {
			tags := append([]core.Link{}, remote.Metadata.Tags...)
			if err := t.ApplyRaw(paths.Tags(), tags); err != nil {
				return err
			}
			continue
		}
		v, ok := remote.Fields[k.Field][k.Locale]
		if !ok {
			t.Unset(k.Path())
			continue
		}
		if err := t.ApplyRaw(k.Path(), v); err != nil {
			return err
		}
	}
	return nil
}
