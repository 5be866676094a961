package build

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	return p
}

func setMTime(t *testing.T, path string, sec int64) {
	t.Helper()

	ts := time.Unix(sec, 0)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestChangedFiles_MTimeEquality(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.lua", "")
	b := writeTempFile(t, dir, "b.lua", "")
	c := writeTempFile(t, dir, "c.lua", "")
	setMTime(t, a, 1700000000)
	setMTime(t, b, 1700000000)
	setMTime(t, c, 1700000000)

	cache := NewBuildCache()
	cache.Update(a, 1700000000, nil) // equal: unchanged
	cache.Update(b, 1699999999, nil) // one second off: changed
	// c absent: changed

	got := ChangedFiles([]string{a, b, c}, cache)
	if diff := cmp.Diff([]string{b, c}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestModTimeMissingFile(t *testing.T) {
	if got := ModTime(filepath.Join(t.TempDir(), "nope.lua")); got != 0 {
		t.Fatalf("expected 0 for missing file, got %d", got)
	}
}

func TestAffectedSet(t *testing.T) {
	// main -> util -> core, app -> util, tool (isolated), a <-> b cycle
	forward := map[string][]string{
		"main": {"util"},
		"app":  {"util"},
		"util": {"core"},
		"a":    {"b"},
		"b":    {"a"},
	}
	reverse := map[string][]string{
		"util": {"main", "app"},
		"core": {"util"},
		"a":    {"b"},
		"b":    {"a"},
	}

	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{"leaf change reaches all owners", []string{"core"}, []string{"app", "core", "main", "util"}},
		{"root change reaches deps and siblings", []string{"main"}, []string{"app", "core", "main", "util"}},
		{"isolated file", []string{"tool"}, []string{"tool"}},
		{"cycle terminates", []string{"a"}, []string{"a", "b"}},
		{"nothing changed", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AffectedSet(tt.changed, forward, reverse)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
