// Package fs stores entities as JSON or YAML files, one file per entity,
// under a directory per entity type:
//
//	<root>/entries/<id>.json
//	<root>/assets/<id>.json
//
// It applies the same optimistic versioning rules as the remote API and can
// watch the tree for external edits.
package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/status"
)

// Formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DefaultSystemDir holds the version index.
const DefaultSystemDir = ".entitydoc"

// Repository implements core.Repository, core.Transitioner and core.Notifier
// on top of the filesystem.
type Repository struct {
	Path        string
	config      Config
	ext         string
	serializers map[string]Serializer
	cache       *cache

	// writeMu serializes read-check-write cycles.
	writeMu sync.Mutex

	mu            sync.RWMutex
	nextSub       int
	changed       map[core.Ref]map[int]func()
	processed     map[core.Ref]map[int]func()
	watcherActive bool
	lastReconcile *time.Time
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	Format    string // FormatJSON (default) or FormatYAML, used for new files
	SystemDir string // defaults to DefaultSystemDir
	MustExist bool
	ReadOnly  bool
	Logger    *slog.Logger
	// ErrorHandler receives watcher failures. Defaults to logging them.
	ErrorHandler func(error)
	// Now stamps updatedAt. Defaults to time.Now.
	Now func() time.Time
	// User stamps updatedBy.
	User string
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.User == "" {
		config.User = "fs"
	}
	ext := ".json"
	if config.Format == FormatYAML {
		ext = ".yaml"
	}
	return &Repository{
		Path:        config.Path,
		config:      config,
		ext:         ext,
		serializers: DefaultSerializers(),
		cache:       newCache(config.Path, config.SystemDir),
		changed:     make(map[core.Ref]map[int]func()),
		processed:   make(map[core.Ref]map[int]func()),
	}
}

// Initialize creates the directory layout and loads the version index.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("repository path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("repository path is not a directory: %s", r.Path)
		}
	}
	if !r.config.ReadOnly {
		for _, t := range []string{core.TypeEntry, core.TypeAsset} {
			if err := os.MkdirAll(filepath.Join(r.Path, typeDir(t)), 0755); err != nil {
				return fmt.Errorf("failed to create repository directory: %w", err)
			}
		}
	}
	if err := r.cache.Load(); err != nil {
		return err
	}
	r.config.Logger.Debug("repository initialized", "path", r.Path, "indexed", r.cache.Len())
	return nil
}

// typeDir maps an entity type to its directory name.
func typeDir(t string) string {
	switch t {
	case core.TypeEntry:
		return "entries"
	case core.TypeAsset:
		return "assets"
	}
	return strings.ToLower(t) + "s"
}

func dirType(dir string) (string, bool) {
	switch dir {
	case "entries":
		return core.TypeEntry, true
	case "assets":
		return core.TypeAsset, true
	}
	return "", false
}

func validateRef(ref core.Ref) error {
	if ref.ID == "" || ref.Type == "" {
		return badRequest("entity has no type or ID")
	}
	if strings.ContainsAny(ref.ID, `/\`) || ref.ID == "." || ref.ID == ".." {
		return badRequest(fmt.Sprintf("invalid entity ID %q", ref.ID))
	}
	return nil
}

func badRequest(msg string) error {
	return &core.RepositoryError{Code: core.CodeBadRequest, Message: msg}
}

func notFound(ref core.Ref) error {
	return &core.RepositoryError{Code: core.CodeNotFound, Message: ref.String()}
}

// locate returns the file holding ref, preferring the configured format.
func (r *Repository) locate(ref core.Ref) (string, bool) {
	base := filepath.Join(r.Path, typeDir(ref.Type), ref.ID)
	if _, err := os.Stat(base + r.ext); err == nil {
		return base + r.ext, true
	}
	for ext := range r.serializers {
		if ext == r.ext {
			continue
		}
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext, true
		}
	}
	return base + r.ext, false
}

// resolveRef maps a file path back to the entity it holds.
func (r *Repository) resolveRef(path string) (core.Ref, bool) {
	ext := filepath.Ext(path)
	if _, ok := r.serializers[ext]; !ok {
		return core.Ref{}, false
	}
	t, ok := dirType(filepath.Base(filepath.Dir(path)))
	if !ok {
		return core.Ref{}, false
	}
	return core.Ref{Type: t, ID: strings.TrimSuffix(filepath.Base(path), ext)}, true
}

func (r *Repository) rel(path string) string {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (r *Repository) read(path string) (core.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Entity{}, err
	}
	ser, ok := r.serializers[filepath.Ext(path)]
	if !ok {
		return core.Entity{}, fmt.Errorf("no serializer for %s", path)
	}
	e, err := ser.Parse(bytes.NewReader(data))
	if err != nil {
		return core.Entity{}, fmt.Errorf("failed to parse %s: %w", r.rel(path), err)
	}
	return e, nil
}

func (r *Repository) write(path string, e core.Entity) error {
	data, err := r.serializers[filepath.Ext(path)].Serialize(e)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", e.Sys.Ref(), err)
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return err
	}
	r.index(path, e)
	return r.cache.Save()
}

func (r *Repository) index(path string, e core.Entity) {
	var mtime time.Time
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime()
	}
	r.cache.Set(r.rel(path), &indexEntry{Ref: e.Sys.Ref(), Version: e.Sys.Version, LastModified: mtime})
}

func (r *Repository) checkWritable() error {
	if r.config.ReadOnly {
		return &core.RepositoryError{Code: core.CodeAccessDenied, Message: core.ErrReadOnly.Error()}
	}
	return nil
}

// Get implements core.Repository.
func (r *Repository) Get(ctx context.Context, ref core.Ref) (core.Entity, error) {
	if err := validateRef(ref); err != nil {
		return core.Entity{}, err
	}
	path, ok := r.locate(ref)
	if !ok {
		return core.Entity{}, notFound(ref)
	}
	e, err := r.read(path)
	if errors.Is(err, os.ErrNotExist) {
		return core.Entity{}, notFound(ref)
	}
	return e, err
}

// Create stores a new entity at version 1. It fails when the ID is taken.
// An empty ID is replaced by a generated one.
func (r *Repository) Create(ctx context.Context, e core.Entity) (core.Entity, error) {
	if err := r.checkWritable(); err != nil {
		return core.Entity{}, err
	}
	if e.Sys.ID == "" {
		e.Sys.ID = core.NewID()
	}
	ref := e.Sys.Ref()
	if err := validateRef(ref); err != nil {
		return core.Entity{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	path, exists := r.locate(ref)
	if exists {
		return core.Entity{}, badRequest(fmt.Sprintf("%s already exists", ref))
	}
	now := r.config.Now()
	next := e.Clone()
	next.Sys = core.Sys{
		ID:          ref.ID,
		Type:        ref.Type,
		ContentType: e.Sys.ContentType,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   r.config.User,
		UpdatedBy:   r.config.User,
	}
	if err := r.write(path, next); err != nil {
		return core.Entity{}, err
	}
	r.config.Logger.Debug("entity created", "ref", ref.String())
	return next, nil
}

// Update implements core.Repository.
func (r *Repository) Update(ctx context.Context, e core.Entity) (core.Entity, error) {
	return r.modify(ctx, e.Sys, func(current core.Entity) (core.Entity, error) {
		if status.IsArchived(current.Sys) {
			return core.Entity{}, badRequest("cannot update an archived entity")
		}
		next := e.Clone()
		next.Sys = current.Sys.Clone()
		next.Sys.Version++
		next.Sys.UpdatedAt = r.config.Now()
		next.Sys.UpdatedBy = r.config.User
		return next, nil
	})
}

// Transition implements core.Transitioner.
func (r *Repository) Transition(ctx context.Context, e core.Entity, action core.Action) (core.Entity, error) {
	return r.modify(ctx, e.Sys, func(current core.Entity) (core.Entity, error) {
		sys, err := status.Apply(current.Sys, action, r.config.Now(), r.config.User)
		if err != nil {
			return core.Entity{}, err
		}
		current.Sys = sys
		return current, nil
	})
}

// modify runs fn on the stored entity when sys carries its current version
// and writes the result.
func (r *Repository) modify(ctx context.Context, sys core.Sys, fn func(core.Entity) (core.Entity, error)) (core.Entity, error) {
	if err := r.checkWritable(); err != nil {
		return core.Entity{}, err
	}
	ref := sys.Ref()
	if err := validateRef(ref); err != nil {
		return core.Entity{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Entity{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	path, ok := r.locate(ref)
	if !ok {
		return core.Entity{}, notFound(ref)
	}
	current, err := r.read(path)
	if err != nil {
		return core.Entity{}, err
	}
	if current.Sys.Version != sys.Version {
		return core.Entity{}, &core.RepositoryError{
			Code:    core.CodeVersionMismatch,
			Message: fmt.Sprintf("%s is at version %d, got %d", ref, current.Sys.Version, sys.Version),
		}
	}
	next, err := fn(current)
	if err != nil {
		return core.Entity{}, err
	}
	if err := r.write(path, next); err != nil {
		return core.Entity{}, err
	}
	return next, nil
}

// List returns the entities of one type ordered by ID.
func (r *Repository) List(ctx context.Context, entityType string) ([]core.Entity, error) {
	dir := filepath.Join(r.Path, typeDir(entityType))
	items, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []core.Entity
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if item.IsDir() || strings.HasPrefix(item.Name(), TempFilePrefix) {
			continue
		}
		if _, ok := r.serializers[filepath.Ext(item.Name())]; !ok {
			continue
		}
		e, err := r.read(filepath.Join(dir, item.Name()))
		if err != nil {
			r.config.Logger.Warn("skipping unreadable entity", "file", item.Name(), "error", err)
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sys.ID < out[j].Sys.ID })
	return out, nil
}

// Delete removes the entity file.
func (r *Repository) Delete(ctx context.Context, ref core.Ref) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if err := validateRef(ref); err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	path, ok := r.locate(ref)
	if !ok {
		return notFound(ref)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	r.cache.Delete(r.rel(path))
	return r.cache.Save()
}

// ProcessAsset records the processed URL of an asset file, replacing its
// upload marker, and notifies subscribers of both the change and the
// processing.
func (r *Repository) ProcessAsset(ctx context.Context, ref core.Ref, locale, url string) error {
	if ref.Type != core.TypeAsset {
		return badRequest(fmt.Sprintf("%s is not an asset", ref))
	}
	current, err := r.Get(ctx, ref)
	if err != nil {
		return err
	}
	_, err = r.modify(ctx, current.Sys, func(e core.Entity) (core.Entity, error) {
		file, _ := e.Fields["file"][locale].(map[string]any)
		if file == nil {
			file = map[string]any{}
		}
		delete(file, "upload")
		file["url"] = url
		if e.Fields["file"] == nil {
			e.Fields["file"] = map[string]any{}
		}
		e.Fields["file"][locale] = file
		e.Sys.Version++
		e.Sys.UpdatedAt = r.config.Now()
		e.Sys.UpdatedBy = r.config.User
		return e, nil
	})
	if err != nil {
		return err
	}
	r.notify(r.changed, ref)
	r.notify(r.processed, ref)
	return nil
}

// Reconcile compares the files on disk with the version index and returns
// the entities that changed or disappeared since they were last indexed.
func (r *Repository) Reconcile(ctx context.Context) ([]core.Ref, error) {
	seen := make(map[string]bool)
	var changed []core.Ref

	for _, t := range []string{core.TypeEntry, core.TypeAsset} {
		dir := filepath.Join(r.Path, typeDir(t))
		items, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			path := filepath.Join(dir, item.Name())
			ref, ok := r.resolveRef(path)
			if !ok || item.IsDir() || strings.HasPrefix(item.Name(), TempFilePrefix) {
				continue
			}
			rel := r.rel(path)
			seen[rel] = true

			info, err := item.Info()
			if err != nil {
				continue
			}
			if _, fresh := r.cache.Get(rel, info.ModTime()); fresh {
				continue
			}
			if r.refresh(path) {
				changed = append(changed, ref)
			}
		}
	}

	r.cache.Range(func(rel string, entry *indexEntry) {
		if !seen[rel] {
			changed = append(changed, entry.Ref)
		}
	})
	r.cache.Prune(seen)
	if err := r.cache.Save(); err != nil {
		return changed, err
	}
	r.recordReconcile()
	return changed, nil
}

// refresh re-reads path and updates the index. It reports whether the file
// holds a version the index did not know, which means someone else wrote it.
func (r *Repository) refresh(path string) bool {
	e, err := r.read(path)
	if err != nil {
		r.config.Logger.Debug("ignoring unreadable file", "path", path, "error", err)
		return false
	}
	known, ok := r.cache.Version(r.rel(path))
	r.index(path, e)
	return !ok || known != e.Sys.Version
}

// OnContentEntityChanged implements core.Notifier. Subscribers hear about
// external edits only while Watch runs.
func (r *Repository) OnContentEntityChanged(ref core.Ref, fn func()) func() {
	return r.subscribe(r.changed, ref, fn)
}

// OnAssetFileProcessed implements core.Notifier.
func (r *Repository) OnAssetFileProcessed(ref core.Ref, fn func()) func() {
	return r.subscribe(r.processed, ref, fn)
}

func (r *Repository) subscribe(table map[core.Ref]map[int]func(), ref core.Ref, fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	if table[ref] == nil {
		table[ref] = make(map[int]func())
	}
	table[ref][id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(table[ref], id)
	}
}

func (r *Repository) notify(table map[core.Ref]map[int]func(), ref core.Ref) {
	r.mu.RLock()
	subs := make([]func(), 0, len(table[ref]))
	for _, fn := range table[ref] {
		subs = append(subs, fn)
	}
	r.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

var (
	_ core.Repository   = (*Repository)(nil)
	_ core.Transitioner = (*Repository)(nil)
	_ core.Notifier     = (*Repository)(nil)
)
