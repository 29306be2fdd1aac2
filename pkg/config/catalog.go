package config

import (
	"slices"
	"sync"

	"github.com/aretw0/entitydoc/pkg/core"
)

// Catalog serves the content types and enabled locales of the current
// configuration. Documents pull from it at normalization time, so a reload
// takes effect on the next normalization.
type Catalog struct {
	mu      sync.RWMutex
	types   map[string]core.ContentType
	locales []string
}

// NewCatalog builds a catalog from cfg.
func NewCatalog(cfg *Config) *Catalog {
	c := &Catalog{}
	c.Update(cfg)
	return c
}

// Update replaces the catalog contents.
func (c *Catalog) Update(cfg *Config) {
	types := make(map[string]core.ContentType, len(cfg.ContentTypes))
	for _, ct := range cfg.ContentTypes {
		types[ct.ID] = ct
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = types
	c.locales = slices.Clone(cfg.Locales)
}

// ContentType implements core.SchemaProvider.
func (c *Catalog) ContentType(id string) (core.ContentType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.types[id]
	return ct, ok
}

// EnabledLocales implements core.LocaleProvider.
func (c *Catalog) EnabledLocales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.locales)
}

var (
	_ core.SchemaProvider = (*Catalog)(nil)
	_ core.LocaleProvider = (*Catalog)(nil)
)
