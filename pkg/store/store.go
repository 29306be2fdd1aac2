// Package store holds the single mutable copy of an entity being edited and
// announces every mutation on the change bus.
package store

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/aretw0/entitydoc/pkg/bus"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/paths"
)

// Store is the local source of truth for sys, fields and metadata.
// Mutations run under the lock; change events are published after it is
// released so subscribers may read the store.
type Store struct {
	mu     sync.RWMutex
	entity core.Entity
	schema core.SchemaProvider
	bus    *bus.Bus
}

// New wraps a clone of entity. schema may be nil, in which case no field is
// treated as text.
func New(entity core.Entity, schema core.SchemaProvider, b *bus.Bus) *Store {
	return &Store{
		entity: entity.Clone(),
		schema: schema,
		bus:    b,
	}
}

// Snapshot returns a deep clone of the current entity.
func (s *Store) Snapshot() core.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entity.Clone()
}

// Sys returns the current server-confirmed header.
func (s *Store) Sys() core.Sys {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entity.Sys.Clone()
}

// ReplaceSys swaps the header wholesale and announces it.
func (s *Store) ReplaceSys(sys core.Sys) {
	s.mu.Lock()
	s.entity.Sys = sys.Clone()
	s.mu.Unlock()
	s.bus.Publish(paths.Path{paths.RootSys})
}

// GetValueAt returns a copy of the value at p, the whole entity for an empty
// path, and nil for missing locations.
func (s *Store) GetValueAt(p paths.Path) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(p) == 0 {
		return s.entity.Clone()
	}
	switch p[0] {
	case paths.RootSys:
		if len(p) == 1 {
			return s.entity.Sys.Clone()
		}
		if len(p) == 2 {
			v, _ := s.entity.Sys.Get(p[1])
			return v
		}
	case paths.RootFields:
		switch len(p) {
		case 1:
			return core.CloneValue(s.entity.Fields)
		case 2:
			locales, ok := s.entity.Fields[p[1]]
			if !ok {
				return nil
			}
			return core.CloneValue(map[string]any(locales))
		default:
			v, ok := s.entity.Fields[p[1]][p[2]]
			if !ok {
				return nil
			}
			v, _ = paths.Get(v, p[3:])
			return core.CloneValue(v)
		}
	case paths.RootMetadata:
		if len(p) == 1 {
			return core.Metadata{Tags: append([]core.Link(nil), s.entity.Metadata.Tags...)}
		}
		if p[1] != paths.SegmentTags {
			return nil
		}
		if len(p) == 2 {
			return append([]core.Link(nil), s.entity.Metadata.Tags...)
		}
		i, err := strconv.Atoi(p[2])
		if err != nil || i < 0 || i >= len(s.entity.Metadata.Tags) || len(p) > 3 {
			return nil
		}
		return s.entity.Metadata.Tags[i]
	}
	return nil
}

// SetValueAt stores value at p. Text fields reject non-string values and
// treat the empty string as unset.
func (s *Store) SetValueAt(p paths.Path, value any) error {
	if def, ok := s.fieldDef(p); ok && def.Type.IsText() && len(p) == 3 {
		str, isString := value.(string)
		if !isString {
			return fmt.Errorf("%w: field %q expects a string, got %T", core.ErrInvalidValue, p[1], value)
		}
		if str == "" {
			s.Unset(p)
			return nil
		}
	}
	return s.ApplyRaw(p, value)
}

// ApplyRaw stores value at p without field-type checks. It is the write path
// of remote merges.
func (s *Store) ApplyRaw(p paths.Path, value any) error {
	s.mu.Lock()
	err := s.set(p, core.CloneValue(value))
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.Publish(p)
	return nil
}

// PushValueAt appends value to the slice at p. A non-slice existing value
// makes it a silent no-op.
func (s *Store) PushValueAt(p paths.Path, value any) error {
	return s.splice(p, -1, value)
}

// InsertValueAt inserts value at index of the slice at p. Indices are
// clamped to the slice bounds. A non-slice existing value makes it a silent
// no-op.
func (s *Store) InsertValueAt(p paths.Path, index int, value any) error {
	if index < 0 {
		index = 0
	}
	return s.splice(p, index, value)
}

// RemoveValueAt unsets p. The tag collection and its ancestors cannot be
// removed, only replaced.
func (s *Store) RemoveValueAt(p paths.Path) error {
	if paths.Tags().HasPrefix(p) {
		return fmt.Errorf("%w: cannot remove %q", core.ErrIllegalOperation, p.String())
	}
	if p.Under(paths.RootSys) {
		return fmt.Errorf("%w: sys is read-only", core.ErrIllegalOperation)
	}
	s.Unset(p)
	return nil
}

// Unset removes the value at p and announces the change when something was
// removed.
func (s *Store) Unset(p paths.Path) bool {
	s.mu.Lock()
	removed := s.unset(p)
	s.mu.Unlock()
	if removed {
		s.bus.Publish(p)
	}
	return removed
}

func (s *Store) fieldDef(p paths.Path) (core.FieldDef, bool) {
	if len(p) < 2 || p[0] != paths.RootFields {
		return core.FieldDef{}, false
	}
	s.mu.RLock()
	sys := s.entity.Sys
	s.mu.RUnlock()
	ct, ok := core.ContentTypeOf(sys, s.schema)
	if !ok {
		return core.FieldDef{}, false
	}
	return ct.Field(p[1])
}

func (s *Store) splice(p paths.Path, index int, value any) error {
	s.mu.Lock()
	current, err := s.getLocked(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	var next any
	switch list := current.(type) {
	case nil:
		next = insert([]any(nil), index, value)
	case []any:
		next = insert(list, index, value)
	case []core.Link:
		link, ok := value.(core.Link)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: tags hold core.Link values, got %T", core.ErrInvalidValue, value)
		}
		next = insertLink(list, index, link)
	default:
		s.mu.Unlock()
		return nil
	}
	err = s.set(p, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.Publish(p)
	return nil
}

func insert(list []any, index int, value any) []any {
	value = core.CloneValue(value)
	if index < 0 || index >= len(list) {
		return append(list, value)
	}
	out := make([]any, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, value)
	return append(out, list[index:]...)
}

func insertLink(list []core.Link, index int, link core.Link) []core.Link {
	if index < 0 || index >= len(list) {
		return append(list, link)
	}
	out := make([]core.Link, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, link)
	return append(out, list[index:]...)
}

// getLocked returns the live value at p for splicing. Tags are returned as
// []core.Link; a missing tag collection is an empty one.
func (s *Store) getLocked(p paths.Path) (any, error) {
	switch {
	case len(p) >= 3 && p[0] == paths.RootFields:
		v, _ := paths.Get(s.entity.Fields[p[1]][p[2]], p[3:])
		return v, nil
	case len(p) == 2 && p[0] == paths.RootMetadata && p[1] == paths.SegmentTags:
		if s.entity.Metadata.Tags == nil {
			return []core.Link{}, nil
		}
		return s.entity.Metadata.Tags, nil
	}
	return nil, fmt.Errorf("%w: %q does not address a collection", core.ErrIllegalOperation, p.String())
}

func (s *Store) set(p paths.Path, value any) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: cannot replace the whole entity", core.ErrIllegalOperation)
	}
	switch p[0] {
	case paths.RootFields:
		return s.setField(p, value)
	case paths.RootMetadata:
		return s.setMetadata(p, value)
	case paths.RootSys:
		return fmt.Errorf("%w: sys is read-only", core.ErrIllegalOperation)
	}
	return fmt.Errorf("%w: unknown root %q", core.ErrIllegalOperation, p[0])
}

func (s *Store) setField(p paths.Path, value any) error {
	if s.entity.Fields == nil {
		s.entity.Fields = core.Fields{}
	}
	switch len(p) {
	case 1:
		fields, ok := value.(core.Fields)
		if !ok {
			return fmt.Errorf("%w: fields expects core.Fields, got %T", core.ErrInvalidValue, value)
		}
		s.entity.Fields = fields
		return nil
	case 2:
		locales, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: field %q expects a locale map, got %T", core.ErrInvalidValue, p[1], value)
		}
		s.entity.Fields[p[1]] = locales
		return nil
	}
	locales := s.entity.Fields[p[1]]
	if locales == nil {
		locales = map[string]any{}
		s.entity.Fields[p[1]] = locales
	}
	next, err := paths.Set(locales[p[2]], p[3:], value)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidValue, err)
	}
	locales[p[2]] = next
	return nil
}

func (s *Store) setMetadata(p paths.Path, value any) error {
	if len(p) == 1 {
		md, ok := value.(core.Metadata)
		if !ok {
			return fmt.Errorf("%w: metadata expects core.Metadata, got %T", core.ErrInvalidValue, value)
		}
		s.entity.Metadata = md
		return nil
	}
	if p[1] != paths.SegmentTags {
		return fmt.Errorf("%w: unknown metadata key %q", core.ErrIllegalOperation, p[1])
	}
	switch len(p) {
	case 2:
		tags, ok := value.([]core.Link)
		if !ok {
			return fmt.Errorf("%w: tags expect []core.Link, got %T", core.ErrInvalidValue, value)
		}
		s.entity.Metadata.Tags = tags
		return nil
	case 3:
		link, ok := value.(core.Link)
		i, err := strconv.Atoi(p[2])
		if !ok || err != nil || i < 0 || i >= len(s.entity.Metadata.Tags) {
			return fmt.Errorf("%w: cannot set tag %q", core.ErrInvalidValue, p[2])
		}
		s.entity.Metadata.Tags[i] = link
		return nil
	}
	return fmt.Errorf("%w: tags cannot be edited below the link", core.ErrIllegalOperation)
}

func (s *Store) unset(p paths.Path) bool {
	switch {
	case len(p) == 2 && p[0] == paths.RootFields:
		if _, ok := s.entity.Fields[p[1]]; !ok {
			return false
		}
		delete(s.entity.Fields, p[1])
		return true
	case len(p) == 3 && p[0] == paths.RootFields:
		if _, ok := s.entity.Fields[p[1]][p[2]]; !ok {
			return false
		}
		delete(s.entity.Fields[p[1]], p[2])
		return true
	case len(p) > 3 && p[0] == paths.RootFields:
		v, ok := s.entity.Fields[p[1]][p[2]]
		if !ok {
			return false
		}
		return paths.Unset(v, p[3:])
	case len(p) == 3 && p[0] == paths.RootMetadata && p[1] == paths.SegmentTags:
		i, err := strconv.Atoi(p[2])
		if err != nil || i < 0 || i >= len(s.entity.Metadata.Tags) {
			return false
		}
		tags := s.entity.Metadata.Tags
		s.entity.Metadata.Tags = append(tags[:i:i], tags[i+1:]...)
		return true
	}
	return false
}
