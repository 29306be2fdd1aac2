// Package sqlite is an entity repository backed by a SQLite database. Each
// entity is one row holding its JSON body; the version column carries the
// optimistic lock.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/introspection"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/diff"
	"github.com/aretw0/entitydoc/pkg/paths"
	"github.com/aretw0/entitydoc/pkg/status"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
    type        TEXT NOT NULL,
    id          TEXT NOT NULL,
    version     INTEGER NOT NULL,
    body        TEXT NOT NULL,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (type, id)
);

CREATE INDEX IF NOT EXISTS idx_entities_updated ON entities(type, updated_at);
`

// Config holds the configuration for the SQLite repository.
type Config struct {
	// Path of the database file. ":memory:" keeps it in memory.
	Path   string
	Logger *slog.Logger
	// Now stamps updatedAt. Defaults to time.Now.
	Now func() time.Time
	// User stamps updatedBy.
	User string
}

// Repository implements core.Repository, core.Transitioner and core.Patcher.
type Repository struct {
	db     *sql.DB
	config Config
}

// Open opens or creates the database at cfg.Path and applies the schema.
func Open(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.User == "" {
		cfg.User = "sqlite"
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	cfg.Logger.Debug("sqlite repository opened", "path", cfg.Path)
	return &Repository{db: db, config: cfg}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func badRequest(msg string) error {
	return &core.RepositoryError{Code: core.CodeBadRequest, Message: msg}
}

func notFound(ref core.Ref) error {
	return &core.RepositoryError{Code: core.CodeNotFound, Message: ref.String()}
}

func encode(e core.Entity) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", e.Sys.Ref(), err)
	}
	return string(data), nil
}

func decode(body string) (core.Entity, error) {
	var e core.Entity
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return core.Entity{}, fmt.Errorf("decode entity: %w", err)
	}
	return core.NormalizeNumbers(e), nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q querier, ref core.Ref) (core.Entity, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM entities WHERE type = ? AND id = ?`, ref.Type, ref.ID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entity{}, notFound(ref)
	}
	if err != nil {
		return core.Entity{}, fmt.Errorf("query %s: %w", ref, err)
	}
	return decode(body)
}

// Get implements core.Repository.
func (r *Repository) Get(ctx context.Context, ref core.Ref) (core.Entity, error) {
	return get(ctx, r.db, ref)
}

// Create inserts a new entity at version 1. An empty ID is replaced by a
// generated one.
func (r *Repository) Create(ctx context.Context, e core.Entity) (core.Entity, error) {
	if e.Sys.Type == "" {
		return core.Entity{}, badRequest("entity has no type")
	}
	if e.Sys.ID == "" {
		e.Sys.ID = core.NewID()
	}
	now := r.config.Now()
	next := e.Clone()
	next.Sys = core.Sys{
		ID:          e.Sys.ID,
		Type:        e.Sys.Type,
		ContentType: e.Sys.ContentType,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   r.config.User,
		UpdatedBy:   r.config.User,
	}
	body, err := encode(next)
	if err != nil {
		return core.Entity{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO entities (type, id, version, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (type, id) DO NOTHING`,
		next.Sys.Type, next.Sys.ID, next.Sys.Version, body, now.UnixNano(),
	)
	if err != nil {
		return core.Entity{}, fmt.Errorf("insert %s: %w", next.Sys.Ref(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Entity{}, badRequest(fmt.Sprintf("%s already exists", next.Sys.Ref()))
	}
	return next, nil
}

// Update implements core.Repository.
func (r *Repository) Update(ctx context.Context, e core.Entity) (core.Entity, error) {
	return r.modify(ctx, e.Sys, func(current core.Entity) (core.Entity, error) {
		if status.IsArchived(current.Sys) {
			return core.Entity{}, badRequest("cannot update an archived entity")
		}
		next := e.Clone()
		next.Sys = r.bump(current.Sys)
		return next, nil
	})
}

// Patch implements core.Patcher. Only the field-locale values and tags that
// differ between previous and next are written over the stored entity.
func (r *Repository) Patch(ctx context.Context, previous, next core.Entity) (core.Entity, error) {
	return r.modify(ctx, next.Sys, func(current core.Entity) (core.Entity, error) {
		if status.IsArchived(current.Sys) {
			return core.Entity{}, badRequest("cannot update an archived entity")
		}
		merged := current.Clone()
		for _, p := range diff.Entity(previous, next) {
			k, _ := p.Key()
			if k == paths.TagsKey {
				merged.Metadata.Tags = append([]core.Link(nil), next.Metadata.Tags...)
				continue
			}
			v, present := next.Fields[k.Field][k.Locale]
			if !present {
				delete(merged.Fields[k.Field], k.Locale)
				continue
			}
			if merged.Fields[k.Field] == nil {
				merged.Fields[k.Field] = map[string]any{}
			}
			merged.Fields[k.Field][k.Locale] = core.CloneValue(v)
		}
		merged.Sys = r.bump(current.Sys)
		return merged, nil
	})
}

func (r *Repository) bump(sys core.Sys) core.Sys {
	out := sys.Clone()
	out.Version++
	out.UpdatedAt = r.config.Now()
	out.UpdatedBy = r.config.User
	return out
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

// modify runs fn on the stored entity inside a transaction when sys carries
// its current version.
func (r *Repository) modify(ctx context.Context, sys core.Sys, fn func(core.Entity) (core.Entity, error)) (core.Entity, error) {
	ref := sys.Ref()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Entity{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := get(ctx, tx, ref)
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
	body, err := encode(next)
	if err != nil {
		return core.Entity{}, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE entities SET version = ?, body = ?, updated_at = ?
		WHERE type = ? AND id = ? AND version = ?`,
		next.Sys.Version, body, r.config.Now().UnixNano(), ref.Type, ref.ID, sys.Version,
	)
	if err != nil {
		return core.Entity{}, fmt.Errorf("update %s: %w", ref, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return core.Entity{}, &core.RepositoryError{Code: core.CodeVersionMismatch}
	}
	if err := tx.Commit(); err != nil {
		return core.Entity{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// List returns the entities of one type, most recently updated first.
func (r *Repository) List(ctx context.Context, entityType string) ([]core.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT body FROM entities WHERE type = ? ORDER BY updated_at DESC, id`, entityType)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entityType, err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		e, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the entity row.
func (r *Repository) Delete(ctx context.Context, ref core.Ref) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE type = ? AND id = ?`, ref.Type, ref.ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(ref)
	}
	return nil
}

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path     string `json:"path"`
	Entities int    `json:"entities"`
	OpenConn int    `json:"open_connections"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	var count int
	_ = r.db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&count)
	return RepositoryState{
		Path:     r.config.Path,
		Entities: count,
		OpenConn: r.db.Stats().OpenConnections,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite-repository"
}

var (
	_ core.Repository              = (*Repository)(nil)
	_ core.Patcher                 = (*Repository)(nil)
	_ core.Transitioner            = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
