// Package paths addresses locations inside an entity tree.
package paths

import (
	"slices"
	"strconv"
	"strings"
)

// Roots of the entity tree.
const (
	RootSys      = "sys"
	RootFields   = "fields"
	RootMetadata = "metadata"
	SegmentTags  = "tags"
)

// Path is an ordered list of segments, e.g. ["fields","title","en-US"].
// Numeric segments address slice elements when the container is a slice.
type Path []string

// New builds a path from segments. Ints are rendered as indices.
func New(segments ...any) Path {
	p := make(Path, 0, len(segments))
	for _, s := range segments {
		switch v := s.(type) {
		case string:
			p = append(p, v)
		case int:
			p = append(p, strconv.Itoa(v))
		}
	}
	return p
}

// Field returns the path of a field-locale value.
func Field(field, locale string) Path {
	return Path{RootFields, field, locale}
}

// Tags is the path of the tag collection.
func Tags() Path {
	return Path{RootMetadata, SegmentTags}
}

// Append returns a new path with extra segments.
func (p Path) Append(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Index returns a new path addressing the i-th element under p.
func (p Path) Index(i int) Path {
	return p.Append(strconv.Itoa(i))
}

// Equal reports segment-wise equality.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) p.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && slices.Equal(p[:len(prefix)], prefix)
}

// Under reports whether p lives under the given root.
func (p Path) Under(root string) bool {
	return len(p) > 0 && p[0] == root
}

// Affects reports whether a change at a is visible at b, i.e. one path is an
// ancestor of the other.
func Affects(a, b Path) bool {
	return a.HasPrefix(b) || b.HasPrefix(a)
}

// String renders the path slash-separated, the form glob patterns match.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Key is the canonical comparable identity of a merge-granular path:
// a field-locale pair or the tag collection.
type Key struct {
	Root   string
	Field  string
	Locale string
}

// TagsKey identifies the tag collection.
var TagsKey = Key{Root: RootMetadata}

// Key maps p to its merge-granular key. ok is false for paths that are not
// at or below a field-locale value or the tag collection.
func (p Path) Key() (Key, bool) {
	switch {
	case len(p) >= 3 && p[0] == RootFields:
		return Key{Root: RootFields, Field: p[1], Locale: p[2]}, true
	case len(p) >= 2 && p[0] == RootMetadata && p[1] == SegmentTags:
		return TagsKey, true
	}
	return Key{}, false
}

// Path converts the key back to a path.
func (k Key) Path() Path {
	if k.Root == RootMetadata {
		return Tags()
	}
	return Field(k.Field, k.Locale)
}

// String renders "fields:<field>:<locale>" or "metadata:tags".
func (k Key) String() string {
	if k.Root == RootMetadata {
		return RootMetadata + ":" + SegmentTags
	}
	return RootFields + ":" + k.Field + ":" + k.Locale
}

// Less orders keys: field-locale keys by field then locale, tags last.
func (k Key) Less(other Key) bool {
	if k.Root != other.Root {
		return k.Root == RootFields
	}
	if k.Field != other.Field {
		return k.Field < other.Field
	}
	return k.Locale < other.Locale
}
