// Package status classifies entity lifecycle state and implements the
// server-side transition rules shared by the repository adapters.
package status

import (
	"fmt"
	"time"

	"github.com/aretw0/entitydoc/pkg/core"
)

// State is the lifecycle label of an entity, orthogonal to its field data.
type State string

const (
	Draft        State = "draft"
	Published    State = "published"
	Changed      State = "changed"
	Archived     State = "archived"
	Deleted      State = "deleted"
	Inaccessible State = "inaccessible"
)

// Of labels an entity by its header.
func Of(sys core.Sys) State {
	switch {
	case sys.ID == "":
		return Inaccessible
	case sys.DeletedVersion != nil:
		return Deleted
	case sys.ArchivedVersion != nil:
		return Archived
	case sys.PublishedVersion == nil:
		return Draft
	case sys.Version == *sys.PublishedVersion+1:
		return Published
	default:
		return Changed
	}
}

// IsDirty is true unless the entity is published with no later changes.
func IsDirty(sys core.Sys) bool {
	return !(sys.PublishedVersion != nil && sys.Version == *sys.PublishedVersion+1)
}

// IsArchived reports whether the entity is archived.
func IsArchived(sys core.Sys) bool {
	return sys.ArchivedVersion != nil
}

// IsDeleted reports whether the entity is deleted.
func IsDeleted(sys core.Sys) bool {
	return sys.DeletedVersion != nil
}

// Apply computes the header produced by a transition. Every transition bumps
// the version, except delete which only records the deleted version.
func Apply(sys core.Sys, action core.Action, now time.Time, by string) (core.Sys, error) {
	out := sys.Clone()
	switch action {
	case core.ActionPublish:
		if IsArchived(sys) {
			return sys, badRequest("cannot publish an archived entity")
		}
		out.PublishedVersion = core.IntPtr(sys.Version)
	case core.ActionUnpublish:
		if sys.PublishedVersion == nil {
			return sys, badRequest("entity is not published")
		}
		out.PublishedVersion = nil
	case core.ActionArchive:
		if IsArchived(sys) {
			return sys, badRequest("entity is already archived")
		}
		if sys.PublishedVersion != nil {
			return sys, badRequest("cannot archive a published entity")
		}
		out.ArchivedVersion = core.IntPtr(sys.Version)
	case core.ActionUnarchive:
		if !IsArchived(sys) {
			return sys, badRequest("entity is not archived")
		}
		out.ArchivedVersion = nil
	case core.ActionDelete:
		if sys.PublishedVersion != nil {
			return sys, badRequest("cannot delete a published entity")
		}
		out.DeletedVersion = core.IntPtr(sys.Version)
		out.UpdatedAt = now
		out.UpdatedBy = by
		return out, nil
	default:
		return sys, badRequest(fmt.Sprintf("unknown action %q", action))
	}
	out.Version = sys.Version + 1
	out.UpdatedAt = now
	out.UpdatedBy = by
	return out, nil
}

func badRequest(msg string) error {
	return &core.RepositoryError{Code: core.CodeBadRequest, Message: msg}
}
