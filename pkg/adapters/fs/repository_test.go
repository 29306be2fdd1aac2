package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/entitydoc/pkg/adapters/fs"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/status"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// setupRepo creates an initialized repository in a temp dir.
func setupRepo(t *testing.T, opts ...func(*fs.Config)) (*fs.Repository, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "content")
	cfg := fs.Config{
		Path: root,
		Now:  func() time.Time { return fixedNow },
		User: "tester",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	repo := fs.NewRepository(cfg)
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return repo, root
}

func createEntry(t *testing.T, repo *fs.Repository, id string) core.Entity {
	t.Helper()
	e, err := repo.Create(context.Background(), core.Entity{
		Sys:    core.Sys{ID: id, Type: core.TypeEntry, ContentType: "article"},
		Fields: core.Fields{"title": {"en": "Hello"}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return e
}

func codeOf(err error) core.ErrorCode {
	var re *core.RepositoryError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func TestCreateAndGet(t *testing.T) {
	repo, root := setupRepo(t)
	ctx := context.Background()

	created := createEntry(t, repo, "e1")
	if created.Sys.Version != 1 || created.Sys.CreatedBy != "tester" {
		t.Errorf("Unexpected sys: %+v", created.Sys)
	}
	if _, err := os.Stat(filepath.Join(root, "entries", "e1.json")); err != nil {
		t.Fatalf("Expected entity file: %v", err)
	}

	got, err := repo.Get(ctx, core.Ref{Type: core.TypeEntry, ID: "e1"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Fields["title"]["en"] != "Hello" {
		t.Errorf("Expected title Hello, got %v", got.Fields["title"]["en"])
	}

	if _, err := repo.Create(ctx, created); codeOf(err) != core.CodeBadRequest {
		t.Errorf("Expected BadRequest for duplicate, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := setupRepo(t)
	_, err := repo.Get(context.Background(), core.Ref{Type: core.TypeEntry, ID: "missing"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestInvalidID(t *testing.T) {
	repo, _ := setupRepo(t)
	_, err := repo.Get(context.Background(), core.Ref{Type: core.TypeEntry, ID: "../escape"})
	if codeOf(err) != core.CodeBadRequest {
		t.Errorf("Expected BadRequest, got %v", err)
	}
}

func TestUpdate_Versioning(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	e := createEntry(t, repo, "e1")

	e.Fields["title"]["en"] = "Changed"
	saved, err := repo.Update(ctx, e)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if saved.Sys.Version != 2 || saved.Sys.UpdatedBy != "tester" {
		t.Errorf("Unexpected sys after update: %+v", saved.Sys)
	}

	// e still carries version 1.
	_, err = repo.Update(ctx, e)
	if codeOf(err) != core.CodeVersionMismatch {
		t.Fatalf("Expected VersionMismatch, got %v", err)
	}
	if kind, _ := core.KindOf(core.Classify(err)); kind != core.KindVersionMismatch {
		t.Errorf("Expected classified VersionMismatch, got %v", kind)
	}
}

func TestUpdate_Archived(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	e := createEntry(t, repo, "e1")

	archived, err := repo.Transition(ctx, e, core.ActionArchive)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if status.Of(archived.Sys) != status.Archived {
		t.Fatalf("Expected archived, got %s", status.Of(archived.Sys))
	}

	_, err = repo.Update(ctx, archived)
	if kind, _ := core.KindOf(core.Classify(err)); kind != core.KindArchived {
		t.Errorf("Expected Archived kind, got %v (%v)", kind, err)
	}
}

func TestTransition_Publish(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	e := createEntry(t, repo, "e1")

	published, err := repo.Transition(ctx, e, core.ActionPublish)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if status.Of(published.Sys) != status.Published {
		t.Errorf("Expected published, got %s", status.Of(published.Sys))
	}

	reloaded, err := repo.Get(ctx, e.Sys.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Sys.Version != published.Sys.Version {
		t.Errorf("Expected persisted version %d, got %d", published.Sys.Version, reloaded.Sys.Version)
	}
}

func TestReadOnly(t *testing.T) {
	_, root := setupRepo(t)
	repo := fs.NewRepository(fs.Config{Path: root, ReadOnly: true})
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := repo.Create(context.Background(), core.Entity{Sys: core.Sys{ID: "e1", Type: core.TypeEntry}})
	if kind, _ := core.KindOf(core.Classify(err)); kind != core.KindOpenForbidden {
		t.Errorf("Expected OpenForbidden, got %v (%v)", kind, err)
	}
}

func TestMustExist(t *testing.T) {
	repo := fs.NewRepository(fs.Config{Path: filepath.Join(t.TempDir(), "nope"), MustExist: true})
	if err := repo.Initialize(context.Background()); err == nil {
		t.Error("Expected error for missing path")
	}
}

func TestYAMLFormat(t *testing.T) {
	repo, root := setupRepo(t, func(c *fs.Config) { c.Format = fs.FormatYAML })
	createEntry(t, repo, "e1")

	if _, err := os.Stat(filepath.Join(root, "entries", "e1.yaml")); err != nil {
		t.Fatalf("Expected yaml file: %v", err)
	}
	got, err := repo.Get(context.Background(), core.Ref{Type: core.TypeEntry, ID: "e1"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Sys.ContentType != "article" {
		t.Errorf("Expected content type article, got %q", got.Sys.ContentType)
	}
}

func TestListAndDelete(t *testing.T) {
	repo, root := setupRepo(t)
	ctx := context.Background()
	createEntry(t, repo, "b")
	createEntry(t, repo, "a")
	if err := os.WriteFile(filepath.Join(root, "entries", "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	list, err := repo.List(ctx, core.TypeEntry)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Sys.ID != "a" || list[1].Sys.ID != "b" {
		t.Fatalf("Unexpected list: %v", list)
	}

	if err := repo.Delete(ctx, core.Ref{Type: core.TypeEntry, ID: "a"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, core.Ref{Type: core.TypeEntry, ID: "a"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestProcessAsset(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	asset, err := repo.Create(ctx, core.Entity{
		Sys:    core.Sys{ID: "img", Type: core.TypeAsset},
		Fields: core.Fields{"file": {"en": map[string]any{"upload": "blob://x"}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var changed, processed int
	unsubChanged := repo.OnContentEntityChanged(asset.Sys.Ref(), func() { changed++ })
	defer unsubChanged()
	unsubProcessed := repo.OnAssetFileProcessed(asset.Sys.Ref(), func() { processed++ })

	if err := repo.ProcessAsset(ctx, asset.Sys.Ref(), "en", "https://cdn/x.png"); err != nil {
		t.Fatalf("ProcessAsset failed: %v", err)
	}
	if changed != 1 || processed != 1 {
		t.Errorf("Expected one notification each, got changed=%d processed=%d", changed, processed)
	}

	got, err := repo.Get(ctx, asset.Sys.Ref())
	if err != nil {
		t.Fatal(err)
	}
	file := got.Fields["file"]["en"].(map[string]any)
	if _, uploading := file["upload"]; uploading || file["url"] != "https://cdn/x.png" {
		t.Errorf("Unexpected file: %v", file)
	}
	if got.Sys.Version != 2 {
		t.Errorf("Expected version 2, got %d", got.Sys.Version)
	}

	unsubProcessed()
	if err := repo.ProcessAsset(ctx, asset.Sys.Ref(), "en", "https://cdn/y.png"); err != nil {
		t.Fatal(err)
	}
	if processed != 1 {
		t.Errorf("Expected no notification after unsubscribe, got %d", processed)
	}
}

func TestReconcile(t *testing.T) {
	repo, root := setupRepo(t)
	ctx := context.Background()
	createEntry(t, repo, "own")

	// Written by someone else.
	external := `{"sys": {"id": "ext", "type": "Entry", "version": 3}, "fields": {}}`
	if err := os.WriteFile(filepath.Join(root, "entries", "ext.json"), []byte(external), 0644); err != nil {
		t.Fatal(err)
	}

	refs, err := repo.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "ext" {
		t.Fatalf("Expected only ext to be reported, got %v", refs)
	}

	if err := os.Remove(filepath.Join(root, "entries", "ext.json")); err != nil {
		t.Fatal(err)
	}
	refs, err = repo.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ID != "ext" {
		t.Errorf("Expected removed ext to be reported, got %v", refs)
	}

	state := repo.State().(fs.RepositoryState)
	if state.LastReconcile == nil || state.Indexed != 1 {
		t.Errorf("Unexpected state: %+v", state)
	}
}

func TestCreate_GeneratesID(t *testing.T) {
	repo, _ := setupRepo(t)
	e, err := repo.Create(context.Background(), core.Entity{Sys: core.Sys{Type: core.TypeEntry}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(e.Sys.ID) != 26 {
		t.Errorf("Expected a ULID, got %q", e.Sys.ID)
	}
}
