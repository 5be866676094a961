package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newChainProject lays out main -> util -> core plus an unrelated tool file,
// all with the same fixed mtime.
func newChainProject(t *testing.T) (root, export string) {
	t.Helper()

	root = t.TempDir()
	export = filepath.Join(t.TempDir(), "out")
	files := map[string]string{
		"main.lua":      "local util = require(\"util\")\nprint(util)\n",
		"util.lua":      "local core = require \"core\"\nreturn core\n",
		"core.lua":      "return {}\n",
		"tools/bin.lua": "print('standalone')\n",
	}
	for name, src := range files {
		setMTime(t, writeTempFile(t, root, name, src), 1700000000)
	}
	return root, export
}

func loadProject(t *testing.T, root, export string) *Project {
	t.Helper()

	p, err := Load(context.Background(), Options{Root: root, ExportDir: export})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestLoad_FirstRunTokenizesEverything(t *testing.T) {
	root, export := newChainProject(t)
	p := loadProject(t, root, export)

	if got := len(p.Files()); got != 4 {
		t.Fatalf("expected 4 tokenized files, got %d", got)
	}
	main := filepath.Join(root, "main.lua")
	util := filepath.Join(root, "util.lua")
	core := filepath.Join(root, "core.lua")
	if diff := cmp.Diff([]string{util}, p.Dependencies(main)); diff != "" {
		t.Errorf("main deps (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{util}, p.Dependents(core)); diff != "" {
		t.Errorf("core dependents (-want +got):\n%s", diff)
	}

	p.Close()
	c := LoadCache(p.CachePath())
	if len(c.Files) != 4 {
		t.Fatalf("expected 4 cache entries, got %d", len(c.Files))
	}
	if fc, _ := c.Get(main); fc.MTime != 1700000000 || len(fc.Deps) != 1 {
		t.Errorf("unexpected cache entry for main: %+v", fc)
	}
}

func TestLoad_IncrementalClosure(t *testing.T) {
	root, export := newChainProject(t)
	loadProject(t, root, export).Close()

	// Nothing touched: nothing to do.
	p := loadProject(t, root, export)
	if len(p.Changed()) != 0 || len(p.Affected()) != 0 {
		t.Fatalf("expected clean project, changed=%v affected=%v", p.Changed(), p.Affected())
	}
	p.Close()

	core := filepath.Join(root, "core.lua")
	setMTime(t, core, 1700000001)

	p = loadProject(t, root, export)
	if diff := cmp.Diff([]string{core}, p.Changed()); diff != "" {
		t.Errorf("changed (-want +got):\n%s", diff)
	}
	want := []string{core, filepath.Join(root, "main.lua"), filepath.Join(root, "util.lua")}
	if diff := cmp.Diff(want, p.Affected()); diff != "" {
		t.Errorf("affected (-want +got):\n%s", diff)
	}
	if _, ok := p.Tokens(filepath.Join(root, "tools", "bin.lua")); ok {
		t.Errorf("unrelated file was retokenized")
	}
	// The graph stays complete for files that were not retokenized.
	if diff := cmp.Diff([]string{filepath.Join(root, "util.lua")}, p.Dependents(core)); diff != "" {
		t.Errorf("core dependents (-want +got):\n%s", diff)
	}
}

func TestLoad_NewRequireLoadsUnchangedImport(t *testing.T) {
	root, export := newChainProject(t)
	loadProject(t, root, export).Close()

	bin := filepath.Join(root, "tools", "bin.lua")
	if err := os.WriteFile(bin, []byte("require \"core\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	setMTime(t, bin, 1700000001)

	p := loadProject(t, root, export)
	core := filepath.Join(root, "core.lua")
	if diff := cmp.Diff([]string{bin}, p.Files()); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{core}, p.Imports()); diff != "" {
		t.Errorf("imports (-want +got):\n%s", diff)
	}
	if _, ok := p.Tokens(core); !ok {
		t.Error("expected tokens for the imported file")
	}
}

func TestLoad_ReadOnlyLeavesExportAlone(t *testing.T) {
	root, export := newChainProject(t)

	p, err := Load(context.Background(), Options{Root: root, ExportDir: export, ReadOnly: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Changed()) != 4 {
		t.Errorf("expected every file changed, got %v", p.Changed())
	}
	if _, err := os.Stat(export); !os.IsNotExist(err) {
		t.Fatalf("export directory created: %v", err)
	}
}

func TestLoad_ExportInsideRootIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeTempFile(t, root, "main.lua", "print(1)\n")
	export := filepath.Join(root, "build")
	writeTempFile(t, export, "main.lua", "print(1)\n")

	p := loadProject(t, root, export)
	if diff := cmp.Diff([]string{filepath.Join(root, "main.lua")}, p.AllFiles()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PrunesVanishedFiles(t *testing.T) {
	root, export := newChainProject(t)
	loadProject(t, root, export).Close()

	bin := filepath.Join(root, "tools", "bin.lua")
	if err := os.Remove(bin); err != nil {
		t.Fatal(err)
	}
	p := loadProject(t, root, export)
	if _, ok := p.Cache().Get(bin); ok {
		t.Errorf("cache still holds removed file")
	}
}

func TestLoad_MissingRoot(t *testing.T) {
	_, err := Load(context.Background(), Options{
		Root:      filepath.Join(t.TempDir(), "missing"),
		ExportDir: t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestOutputPath(t *testing.T) {
	root, export := newChainProject(t)
	p := loadProject(t, root, export)

	got, err := p.OutputPath(filepath.Join(root, "tools", "bin.lua"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(export, "tools", "bin.lua"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
	if _, err := p.OutputPath(filepath.Join(filepath.Dir(root), "other.lua")); err == nil {
		t.Errorf("expected error for path outside root")
	}
}
