package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/entitydoc/pkg/core"
)

func TestCache_Load(t *testing.T) {
	t.Run("Starts Empty if File Missing", func(t *testing.T) {
		c := newCache(t.TempDir(), ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries, got %d", c.Len())
		}
	})

	t.Run("Loads Valid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".cache")
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			t.Fatal(err)
		}
		jsonContent := `{
			"version": 1,
			"entries": {
				"entries/e1.json": {"ref": {"Type": "Entry", "ID": "e1"}, "version": 7}
			}
		}`
		if err := os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte(jsonContent), 0644); err != nil {
			t.Fatal(err)
		}

		c := newCache(tmpDir, ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		v, ok := c.Version("entries/e1.json")
		if !ok || v != 7 {
			t.Errorf("Expected version 7, got %d (found=%v)", v, ok)
		}
	})

	t.Run("Resets on Corrupted JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".cache")
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		c := newCache(tmpDir, ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load should not fail on corruption: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected reset cache, got %d entries", c.Len())
		}
	})
}

func TestCache_GetSetSave(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCache(tmpDir, ".cache")
	mtime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c.Set("entries/e1.json", &indexEntry{Ref: core.Ref{Type: core.TypeEntry, ID: "e1"}, Version: 3, LastModified: mtime})

	if _, ok := c.Get("entries/e1.json", mtime); !ok {
		t.Error("Expected fresh entry for matching mtime")
	}
	if _, ok := c.Get("entries/e1.json", mtime.Add(time.Second)); ok {
		t.Error("Expected stale entry for different mtime")
	}
	if v, ok := c.Version("entries/e1.json"); !ok || v != 3 {
		t.Errorf("Expected version 3, got %d", v)
	}

	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reloaded := newCache(tmpDir, ".cache")
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	entry, ok := reloaded.Get("entries/e1.json", mtime)
	if !ok {
		t.Fatal("Expected entry after reload")
	}
	if entry.Ref.ID != "e1" || entry.Version != 3 {
		t.Errorf("Unexpected entry after reload: %+v", entry)
	}
}

func TestCache_SaveSkipsWhenClean(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCache(tmpDir, ".cache")
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
		t.Error("Expected no index file for a clean cache")
	}
}

func TestCache_PruneAndDelete(t *testing.T) {
	c := newCache(t.TempDir(), ".cache")
	c.Set("entries/a.json", &indexEntry{Version: 1})
	c.Set("entries/b.json", &indexEntry{Version: 1})
	c.Set("assets/c.json", &indexEntry{Version: 1})

	c.Prune(map[string]bool{"entries/a.json": true, "assets/c.json": true})
	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries after prune, got %d", c.Len())
	}

	c.Delete("assets/c.json")
	var seen []string
	c.Range(func(rel string, _ *indexEntry) { seen = append(seen, rel) })
	if len(seen) != 1 || seen[0] != "entries/a.json" {
		t.Errorf("Expected only entries/a.json, got %v", seen)
	}
}
