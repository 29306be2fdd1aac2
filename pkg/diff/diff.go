// Package diff computes the structural paths that differ between two entity
// states, at field-locale and tag-collection granularity.
package diff

import (
	"reflect"
	"slices"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/paths"
)

// Fields returns every ["fields", field, locale] path whose value differs
// between a and b, including pairs present on one side only.
func Fields(a, b core.Fields) []paths.Path {
	keys := mapset.NewThreadUnsafeSet[paths.Key]()
	collect := func(from, other core.Fields) {
		for field, locales := range from {
			for locale, v := range locales {
				ov, ok := other[field][locale]
				if !ok || !reflect.DeepEqual(v, ov) {
					keys.Add(paths.Key{Root: paths.RootFields, Field: field, Locale: locale})
				}
			}
		}
	}
	collect(a, b)
	collect(b, a)
	return toPaths(keys)
}

// Tags returns [["metadata","tags"]] when the tag link IDs of a and b differ
// as sets. Order is ignored.
func Tags(a, b core.Metadata) []paths.Path {
	as := mapset.NewThreadUnsafeSet(a.TagIDs()...)
	bs := mapset.NewThreadUnsafeSet(b.TagIDs()...)
	if as.Equal(bs) {
		return nil
	}
	return []paths.Path{paths.Tags()}
}

// Entity returns the changed field-locale and tag paths between a and b.
func Entity(a, b core.Entity) []paths.Path {
	return append(Fields(a.Fields, b.Fields), Tags(a.Metadata, b.Metadata)...)
}

// Keys is Entity as a set of canonical keys.
func Keys(a, b core.Entity) mapset.Set[paths.Key] {
	keys := mapset.NewThreadUnsafeSet[paths.Key]()
	for _, p := range Entity(a, b) {
		if k, ok := p.Key(); ok {
			keys.Add(k)
		}
	}
	return keys
}

// Equal reports whether a and b carry the same fields and the same tags in
// the same order. Sys is not compared.
func Equal(a, b core.Entity) bool {
	return len(Fields(a.Fields, b.Fields)) == 0 &&
		slices.Equal(a.Metadata.TagIDs(), b.Metadata.TagIDs())
}

// SortedKeys returns the keys of s in a deterministic order.
func SortedKeys(s mapset.Set[paths.Key]) []paths.Key {
	keys := s.ToSlice()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func toPaths(keys mapset.Set[paths.Key]) []paths.Path {
	sorted := SortedKeys(keys)
	out := make([]paths.Path, 0, len(sorted))
	for _, k := range sorted {
		out = append(out, k.Path())
	}
	return out
}
