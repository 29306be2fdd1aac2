package core

import "context"

// Repository is the entity store the document persists to.
// Adhering to this interface keeps the synchronization core independent of
// the transport (HTTP API, filesystem, SQL).
type Repository interface {
	// Update writes the entity. The server rejects it with CodeVersionMismatch
	// when entity.Sys.Version is not the current version, and returns the
	// stored entity with its new Sys on success.
	Update(ctx context.Context, entity Entity) (Entity, error)

	// Get fetches the current server state of an entity.
	Get(ctx context.Context, ref Ref) (Entity, error)
}

// Patcher is implemented by repositories that accept a diff between the last
// saved state and the next state instead of a full document.
type Patcher interface {
	Patch(ctx context.Context, previous, next Entity) (Entity, error)
}

// Notifier delivers server-pushed notifications about entities.
// Both methods return a function that cancels the subscription.
type Notifier interface {
	OnContentEntityChanged(ref Ref, fn func()) (unsubscribe func())
	OnAssetFileProcessed(ref Ref, fn func()) (unsubscribe func())
}

// Action is a lifecycle-state transition request.
type Action string

const (
	ActionPublish   Action = "publish"
	ActionUnpublish Action = "unpublish"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
	ActionDelete    Action = "delete"
)

// Transitioner applies lifecycle-state transitions on the server.
type Transitioner interface {
	Transition(ctx context.Context, entity Entity, action Action) (Entity, error)
}

// Permissions answers access questions for the current user.
type Permissions interface {
	Can(action string) bool
}

// PermissionFunc adapts a function to Permissions.
type PermissionFunc func(action string) bool

func (f PermissionFunc) Can(action string) bool {
	return f(action)
}

// AllowAll grants every action.
var AllowAll Permissions = PermissionFunc(func(string) bool { return true })

// Telemetry is a fire-and-forget analytics sink.
type Telemetry interface {
	Track(event string, payload map[string]any)
}
