// Package entitydoc is the composition root of the entity document
// synchronization core.
//
// An entitydoc Document is a mutable local view of a versioned, multi-locale
// CMS entity. Edits are applied locally, coalesced behind a save throttle and
// persisted against the repository that owns the source of truth. Version
// conflicts are detected on save and disjoint changes are merged
// automatically; overlapping ones surface as a VersionMismatch status.
//
// Features:
//
//   - **Path-addressed edits**: `SetValueAt`, `PushValueAt`, `InsertValueAt` and
//     `RemoveValueAt` over `["fields", field, locale, ...]` paths.
//   - **Throttled saves**: at most one write in flight, bursts coalesced,
//     edits during a save buffered for the next one.
//   - **Conflict auto-merge**: remote-only changes are merged into the local
//     state and the save retried.
//   - **Reactive status**: saving, dirty, editable and connected flags.
//   - **Adapters**: in-memory, JSON/YAML files with change watching, SQLite.
//
// Usage:
//
//	ws, err := entitydoc.Open(ctx, "./site", entitydoc.WithLogger(logger))
//	doc, release, err := ws.Acquire(ctx, entitydoc.Ref{Type: entitydoc.TypeEntry, ID: "home"})
//	defer release()
//
//	err = doc.SetValueAt(ctx, entitydoc.Field("title", "en-US"), "Welcome")
package entitydoc
