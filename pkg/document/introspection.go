package document

import (
	"time"

	"github.com/aretw0/introspection"
)

// DocumentState exposes internal state for observability.
type DocumentState struct {
	Ref         string    `json:"ref"`
	Version     int       `json:"version"`
	EntityState string    `json:"entity_state"`
	Saving      bool      `json:"saving"`
	Updating    bool      `json:"updating"`
	Pending     bool      `json:"pending"`
	Dirty       bool      `json:"dirty"`
	CanEdit     bool      `json:"can_edit"`
	Connected   bool      `json:"connected"`
	Error       string    `json:"error,omitempty"`
	LastSavedAt time.Time `json:"last_saved_at"`
	Subscribers int       `json:"subscribers"`
	Destroyed   bool      `json:"destroyed"`
}

// State implements introspection.Introspectable.
func (d *Document) State() any {
	st := d.Status()
	s := DocumentState{
		Ref:         d.ref.String(),
		Version:     d.GetVersion(),
		EntityState: string(d.EntityState()),
		Saving:      st.Saving,
		Updating:    d.sched.Updating(),
		Pending:     d.sched.Pending(),
		Dirty:       st.Dirty,
		CanEdit:     st.CanEdit,
		Connected:   st.Connected,
		LastSavedAt: d.sched.LastSaved().At,
		Subscribers: d.bus.Len(),
		Destroyed:   d.isDestroyed(),
	}
	if st.Err != nil {
		s.Error = st.Err.Error()
	}
	return s
}

// ComponentType implements introspection.Component.
func (d *Document) ComponentType() string {
	return "document"
}

// RegistryState lists the shared documents.
type RegistryState struct {
	Open []string `json:"open"`
}

// State implements introspection.Introspectable.
func (r *Registry) State() any {
	return RegistryState{Open: r.refs()}
}

// ComponentType implements introspection.Component.
func (r *Registry) ComponentType() string {
	return "document-registry"
}

var (
	_ introspection.Introspectable = (*Document)(nil)
	_ introspection.Component      = (*Document)(nil)
	_ introspection.Introspectable = (*Registry)(nil)
	_ introspection.Component      = (*Registry)(nil)
)
