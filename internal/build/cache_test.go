package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildCache_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", CacheFileName)
	c := NewBuildCache()
	c.Update("src/main.lua", 1700000000, []string{"src/util.lua"})
	c.Update("src/util.lua", 1700000001, nil)

	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	got := LoadCache(path)
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCache_OnDiskShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), CacheFileName)
	data := `{"files": {"a.lua": {"mtime": 42, "deps": ["b.lua"]}}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c := LoadCache(path)
	fc, ok := c.Get("a.lua")
	if !ok || fc.MTime != 42 || len(fc.Deps) != 1 || fc.Deps[0] != "b.lua" {
		t.Fatalf("unexpected entry: %+v (%v)", fc, ok)
	}
}

func TestBuildCache_MissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	if c := LoadCache(filepath.Join(dir, "missing.json")); len(c.Files) != 0 {
		t.Fatalf("expected empty cache for missing file")
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c := LoadCache(corrupt); c == nil || len(c.Files) != 0 {
		t.Fatalf("expected empty cache for corrupt file")
	}
}
