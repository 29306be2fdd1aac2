// Package normalize strips fields and locales that the content type or the
// enabled locale list no longer allow.
package normalize

import (
	"sort"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/paths"
)

// Removals lists the paths normalization would unset: fields unknown to ct,
// and locales outside enabled on localized fields. Non-localized fields keep
// every locale they already carry so authored content is never discarded.
func Removals(entity core.Entity, ct core.ContentType, enabled []string) []paths.Path {
	allowed := make(map[string]bool, len(enabled))
	for _, code := range enabled {
		allowed[code] = true
	}

	fieldIDs := make([]string, 0, len(entity.Fields))
	for id := range entity.Fields {
		fieldIDs = append(fieldIDs, id)
	}
	sort.Strings(fieldIDs)

	var out []paths.Path
	for _, id := range fieldIDs {
		def, ok := ct.Field(id)
		if !ok {
			out = append(out, paths.Path{paths.RootFields, id})
			continue
		}
		if !def.Localized {
			continue
		}
		locales := make([]string, 0, len(entity.Fields[id]))
		for code := range entity.Fields[id] {
			if !allowed[code] {
				locales = append(locales, code)
			}
		}
		sort.Strings(locales)
		for _, code := range locales {
			out = append(out, paths.Field(id, code))
		}
	}
	return out
}

// Snapshot returns a normalized clone of entity.
func Snapshot(entity core.Entity, ct core.ContentType, enabled []string) core.Entity {
	out := entity.Clone()
	for _, p := range Removals(out, ct, enabled) {
		if len(p) == 2 {
			delete(out.Fields, p[1])
			continue
		}
		delete(out.Fields[p[1]], p[2])
	}
	return out
}

// Target is the store surface normalization mutates through, so removals are
// announced like any other change.
type Target interface {
	Snapshot() core.Entity
	Unset(p paths.Path) bool
}

// Normalizer pulls the schema and the enabled locales at the time it runs.
type Normalizer struct {
	Schema  core.SchemaProvider
	Locales core.LocaleProvider
}

// Apply normalizes the target in place. An entity whose content type cannot
// be resolved is left untouched. It returns the removed paths.
func (n Normalizer) Apply(t Target) []paths.Path {
	entity := t.Snapshot()
	ct, ok := core.ContentTypeOf(entity.Sys, n.Schema)
	if !ok || n.Locales == nil {
		return nil
	}
	removals := Removals(entity, ct, n.Locales.EnabledLocales())
	for _, p := range removals {
		t.Unset(p)
	}
	return removals
}
