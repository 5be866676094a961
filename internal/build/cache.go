package build

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// CacheFileName is the name of the persisted build cache inside the export
// directory.
const CacheFileName = ".dlua_cache.json"

// FileCache is the cached state of one source file: its modification time
// in whole seconds and the files it requires.
type FileCache struct {
	MTime int64    `json:"mtime"`
	Deps  []string `json:"deps"`
}

// BuildCache is the full persisted cache, keyed by file path.
type BuildCache struct {
	Files map[string]FileCache `json:"files"`
}

// NewBuildCache returns an empty cache.
func NewBuildCache() *BuildCache {
	return &BuildCache{Files: make(map[string]FileCache)}
}

// LoadCache reads the cache at path. A missing or corrupt file yields an
// empty cache; this is never an error.
func LoadCache(path string) *BuildCache {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewBuildCache()
	}
	var c BuildCache
	if err := json.Unmarshal(data, &c); err != nil || c.Files == nil {
		return NewBuildCache()
	}
	return &c
}

// Save writes the cache to path atomically (temp file + rename).
func (c *BuildCache) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Get returns the entry for path.
func (c *BuildCache) Get(path string) (FileCache, bool) {
	fc, ok := c.Files[path]
	return fc, ok
}

// Update records the current mtime and deps of path.
func (c *BuildCache) Update(path string, mtime int64, deps []string) {
	if deps == nil {
		deps = []string{}
	}
	c.Files[path] = FileCache{MTime: mtime, Deps: deps}
}

// Forget drops the entry for path.
func (c *BuildCache) Forget(path string) { delete(c.Files, path) }
