package platform

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aretw0/entitydoc/pkg/adapters/fs"
	"github.com/aretw0/entitydoc/pkg/adapters/memory"
	"github.com/aretw0/entitydoc/pkg/adapters/sqlite"
	"github.com/aretw0/entitydoc/pkg/config"
	"github.com/aretw0/entitydoc/pkg/core"
)

// Creator is implemented by repositories that can store new entities.
type Creator interface {
	Create(ctx context.Context, e core.Entity) (core.Entity, error)
}

// Lister is implemented by repositories that can enumerate entities.
type Lister interface {
	List(ctx context.Context, entityType string) ([]core.Entity, error)
}

// Deleter is implemented by repositories that can remove entities.
type Deleter interface {
	Delete(ctx context.Context, ref core.Ref) error
}

// Init builds and initializes the repository selected by cfg. Relative
// storage paths are resolved against root.
func Init(ctx context.Context, root string, cfg *config.Config, opts ...Option) (core.Repository, error) {
	return initRepository(ctx, root, cfg, buildOptions(opts))
}

func initRepository(ctx context.Context, root string, cfg *config.Config, o *options) (core.Repository, error) {
	if o.repository != nil {
		return o.repository, nil
	}

	adapter := cfg.Storage.Adapter
	if o.adapter != "" {
		adapter = o.adapter
	}

	switch adapter {
	case config.AdapterFS:
		return initFS(ctx, storagePath(root, cfg), cfg, o)
	case config.AdapterSQLite:
		return initSQLite(storagePath(root, cfg), o)
	case config.AdapterMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", adapter)
	}
}

func storagePath(root string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.Storage.Path) {
		return cfg.Storage.Path
	}
	return filepath.Join(root, cfg.Storage.Path)
}

func initFS(ctx context.Context, path string, cfg *config.Config, o *options) (core.Repository, error) {
	repo := fs.NewRepository(fs.Config{
		Path:         path,
		Format:       cfg.Storage.Format,
		MustExist:    o.mustExist,
		ReadOnly:     cfg.ReadOnly,
		Logger:       o.logger.With("adapter", config.AdapterFS),
		ErrorHandler: o.errorHandler,
	})
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func initSQLite(path string, o *options) (core.Repository, error) {
	return sqlite.Open(sqlite.Config{
		Path:   path,
		Logger: o.logger.With("adapter", config.AdapterSQLite),
	})
}
