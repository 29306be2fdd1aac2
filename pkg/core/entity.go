// Package core holds the entity model and the contracts of the collaborators
// the synchronization core consumes (repository, schema, locales, permissions,
// lifecycle transitions, telemetry).
package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity types.
const (
	TypeEntry = "Entry"
	TypeAsset = "Asset"
)

// Fields maps a field ID to its per-locale values.
type Fields map[string]map[string]any

// LinkSys identifies the target of a Link.
type LinkSys struct {
	Type     string `json:"type" yaml:"type"`
	LinkType string `json:"linkType" yaml:"linkType"`
	ID       string `json:"id" yaml:"id"`
}

// Link is a reference to another resource, used for tags.
type Link struct {
	Sys LinkSys `json:"sys" yaml:"sys"`
}

// TagLink builds a Link pointing at the tag with the given ID.
func TagLink(id string) Link {
	return Link{Sys: LinkSys{Type: "Link", LinkType: "Tag", ID: id}}
}

// Metadata carries the tag collection of an entity.
type Metadata struct {
	Tags []Link `json:"tags" yaml:"tags"`
}

// TagIDs returns the link IDs in collection order.
func (m Metadata) TagIDs() []string {
	ids := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		ids = append(ids, t.Sys.ID)
	}
	return ids
}

// Sys is the server-owned header of an entity. It is replaced wholesale
// whenever the server confirms a new version and never patched locally.
type Sys struct {
	ID               string    `json:"id" yaml:"id"`
	Type             string    `json:"type" yaml:"type"`
	ContentType      string    `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Version          int       `json:"version" yaml:"version"`
	PublishedVersion *int      `json:"publishedVersion,omitempty" yaml:"publishedVersion,omitempty"`
	ArchivedVersion  *int      `json:"archivedVersion,omitempty" yaml:"archivedVersion,omitempty"`
	DeletedVersion   *int      `json:"deletedVersion,omitempty" yaml:"deletedVersion,omitempty"`
	CreatedAt        time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"updatedAt"`
	CreatedBy        string    `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	UpdatedBy        string    `json:"updatedBy,omitempty" yaml:"updatedBy,omitempty"`
}

// Ref returns the identity of the entity this header belongs to.
func (s Sys) Ref() Ref {
	return Ref{Type: s.Type, ID: s.ID}
}

// Get returns a header attribute by its wire name.
func (s Sys) Get(key string) (any, bool) {
	switch key {
	case "id":
		return s.ID, true
	case "type":
		return s.Type, true
	case "contentType":
		return s.ContentType, s.ContentType != ""
	case "version":
		return s.Version, true
	case "publishedVersion":
		return derefInt(s.PublishedVersion)
	case "archivedVersion":
		return derefInt(s.ArchivedVersion)
	case "deletedVersion":
		return derefInt(s.DeletedVersion)
	case "createdAt":
		return s.CreatedAt, true
	case "updatedAt":
		return s.UpdatedAt, true
	case "createdBy":
		return s.CreatedBy, s.CreatedBy != ""
	case "updatedBy":
		return s.UpdatedBy, s.UpdatedBy != ""
	}
	return nil, false
}

func derefInt(v *int) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

// IntPtr is a helper for the optional version attributes of Sys.
func IntPtr(v int) *int {
	return &v
}

// Clone returns a copy of the header with its optional versions detached.
func (s Sys) Clone() Sys {
	out := s
	if s.PublishedVersion != nil {
		out.PublishedVersion = IntPtr(*s.PublishedVersion)
	}
	if s.ArchivedVersion != nil {
		out.ArchivedVersion = IntPtr(*s.ArchivedVersion)
	}
	if s.DeletedVersion != nil {
		out.DeletedVersion = IntPtr(*s.DeletedVersion)
	}
	return out
}

// NewID returns a fresh, time-ordered entity ID.
func NewID() string {
	return ulid.Make().String()
}

// Ref identifies an entity by type and ID.
type Ref struct {
	Type string
	ID   string
}

func (r Ref) String() string {
	return r.Type + "/" + r.ID
}

// Entity is a structured, versioned, multi-locale CMS document.
type Entity struct {
	Sys      Sys      `json:"sys" yaml:"sys"`
	Fields   Fields   `json:"fields" yaml:"fields"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Clone deep-copies the entity. The returned Fields map is never nil.
func (e Entity) Clone() Entity {
	out := Entity{
		Sys:    e.Sys.Clone(),
		Fields: make(Fields, len(e.Fields)),
	}
	for id, locales := range e.Fields {
		cp := make(map[string]any, len(locales))
		for code, v := range locales {
			cp[code] = CloneValue(v)
		}
		out.Fields[id] = cp
	}
	if e.Metadata.Tags != nil {
		out.Metadata.Tags = append([]Link(nil), e.Metadata.Tags...)
	}
	return out
}

// CloneValue deep-copies a JSON-like value. Scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, val := range t {
			cp[k] = CloneValue(val)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, val := range t {
			cp[i] = CloneValue(val)
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	case Fields:
		return Entity{Fields: t}.Clone().Fields
	case []Link:
		return append([]Link(nil), t...)
	default:
		return v
	}
}
