// Package build implements the dependency and incremental-cache manager of
// dlua: it discovers the Lua sources of a project, diffs them against the
// persisted build cache, computes the affected set, tokenizes it in
// parallel and resolves static require calls into a dependency graph.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dlua-lang/dlua/internal/cli"
	"github.com/dlua-lang/dlua/internal/lexer"
)

// Options configures Load.
type Options struct {
	Root         string
	ExportDir    string
	RequirePaths []string
	Logger       *cli.Logger
	// Workers bounds tokenization concurrency (<=0 => NumCPU).
	Workers int
	// ReadOnly leaves the export directory untouched; a missing one reads
	// as an empty cache.
	ReadOnly bool
}

// Project is one run's view of a source tree: the tokens of every affected
// file, the require graph over all known files and the build cache.
type Project struct {
	Root      string
	ExportDir string

	files     map[string][]lexer.Token
	imports   map[string][]lexer.Token
	all       []string
	changed   []string
	affected  []string
	graph     *Graph
	cache     *BuildCache
	cachePath string
	resolver  *Resolver
	logger    *cli.Logger
}

// Load builds the project for one run. Only an inaccessible root or export
// directory is fatal; per-file problems are logged and tolerated.
func Load(ctx context.Context, opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = cli.Discard()
	}

	root := filepath.Clean(opts.Root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("load project: %s is not a directory", root)
	}

	exportDir := filepath.Clean(opts.ExportDir)
	if opts.ReadOnly {
		if info, err := os.Stat(exportDir); err == nil && !info.IsDir() {
			return nil, fmt.Errorf("load project: export directory: %s is not a directory", exportDir)
		} else if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load project: export directory: %w", err)
		}
	} else if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("load project: export directory: %w", err)
	}

	p := &Project{
		Root:      root,
		ExportDir: exportDir,
		files:     make(map[string][]lexer.Token),
		imports:   make(map[string][]lexer.Token),
		graph:     NewGraph(),
		cachePath: filepath.Join(exportDir, CacheFileName),
		logger:    logger,
	}
	p.cache = LoadCache(p.cachePath)

	t0 := time.Now()
	p.all, err = collectSources(root, exportDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	logger.Info("Collected %d Lua files in %s", len(p.all), time.Since(t0))

	t1 := time.Now()
	p.pruneCache()
	p.changed = ChangedFiles(p.all, p.cache)
	logger.Info("Found %d changed files", len(p.changed))

	// Seed the graph from the cache so the affected set can be computed
	// before anything is retokenized.
	for path, fc := range p.cache.Files {
		if !p.graph.Known(path) {
			p.graph.SetDeps(path, fc.Deps)
		}
	}

	p.affected = p.graph.Affected(p.changed)
	logger.Info("Total affected files (changed + transitive deps/owners): %d", len(p.affected))

	if p.files, err = p.tokenize(ctx, opts.Workers, p.affected); err != nil {
		return nil, err
	}
	logger.Info("Tokenized %d Lua files in %s", len(p.files), time.Since(t1))

	p.resolver = NewResolver(root, opts.RequirePaths, p.all, logger)
	for _, file := range p.Files() {
		var deps []string
		for _, mod := range RequiredModules(file, p.files[file], logger) {
			if dep, ok := p.resolver.Resolve(mod); ok {
				deps = append(deps, dep)
			}
		}
		p.graph.SetDeps(file, deps)
		p.cache.Update(file, ModTime(file), p.graph.Dependencies(file))
	}

	if err := p.loadImports(ctx, opts.Workers); err != nil {
		return nil, err
	}

	// Files that were not retokenized keep their cached edges.
	for _, path := range p.all {
		if p.graph.Known(path) {
			continue
		}
		if fc, ok := p.cache.Get(path); ok {
			p.graph.SetDeps(path, fc.Deps)
		}
	}

	logger.Debug("require graph:\n%s", p.graph)
	for _, cyc := range p.graph.Cycles() {
		logger.Debug("require cycle: %s", strings.Join(cyc, " -> "))
	}
	logger.Info("Resolved require relations in %s", time.Since(t1))

	return p, nil
}

// tokenize reads and lexes paths, one task per file. Unreadable files are
// logged and left out of the result.
func (p *Project) tokenize(ctx context.Context, workers int, paths []string) (map[string][]lexer.Token, error) {
	results := make([][]lexer.Token, len(paths))
	ok := make([]bool, len(paths))

	err := NewExecutor(workers).Run(ctx, len(paths), func(ctx context.Context, i int) error {
		path := paths[i]
		code, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				p.logger.Debug("skip vanished %s", path)
			} else {
				p.logger.Warn("skip %s: %v", path, err)
			}
			return nil
		}
		results[i] = lexer.Tokenize(string(code), path)
		ok[i] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string][]lexer.Token, len(paths))
	for i, path := range paths {
		if ok[i] {
			out[path] = results[i]
		}
	}
	return out, nil
}

// loadImports tokenizes the direct dependencies of the files being built
// that were not part of the affected set, so their exports can be merged.
// They are read for their macro tables only and are never written.
func (p *Project) loadImports(ctx context.Context, workers int) error {
	seen := make(map[string]bool)
	var missing []string
	for _, file := range p.Files() {
		for _, dep := range p.graph.Dependencies(file) {
			if _, ok := p.files[dep]; ok || seen[dep] {
				continue
			}
			seen[dep] = true
			missing = append(missing, dep)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	imports, err := p.tokenize(ctx, workers, missing)
	if err != nil {
		return err
	}
	p.imports = imports
	p.logger.Info("Tokenized %d unchanged dependencies for their exports", len(imports))
	return nil
}

// pruneCache drops entries for files that no longer exist.
func (p *Project) pruneCache() {
	present := make(map[string]bool, len(p.all))
	for _, f := range p.all {
		present[f] = true
	}
	for path := range p.cache.Files {
		if present[path] {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			p.cache.Forget(path)
		}
	}
}

// collectSources walks root for *.lua files, skipping the export directory
// when it lies inside root.
func collectSources(root, exportDir string, logger *cli.Logger) ([]string, error) {
	absExport, _ := filepath.Abs(exportDir)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skip %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != root {
				if abs, aerr := filepath.Abs(path); aerr == nil && abs == absExport {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if d.Type().IsRegular() && filepath.Ext(path) == SourceExt {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Close persists the full cache, best-effort. A write failure is ignored.
func (p *Project) Close() {
	if err := p.cache.Save(p.cachePath); err != nil {
		p.logger.Debug("cache not saved: %v", err)
	}
}

// Files returns the paths tokenized in this run, sorted.
func (p *Project) Files() []string {
	out := make([]string, 0, len(p.files))
	for f := range p.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Imports returns the unchanged dependencies tokenized only for their
// exports, sorted.
func (p *Project) Imports() []string {
	out := make([]string, 0, len(p.imports))
	for f := range p.imports {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// AllFiles returns every source file found under the root, sorted.
func (p *Project) AllFiles() []string { return append([]string(nil), p.all...) }

// Tokens returns the token sequence of a tokenized file or import.
func (p *Project) Tokens(path string) ([]lexer.Token, bool) {
	if toks, ok := p.files[path]; ok {
		return toks, true
	}
	toks, ok := p.imports[path]
	return toks, ok
}

// Changed returns the files whose mtime differs from the cache.
func (p *Project) Changed() []string { return append([]string(nil), p.changed...) }

// Affected returns the affected set computed for this run.
func (p *Project) Affected() []string { return append([]string(nil), p.affected...) }

// Dependencies returns the files required by path.
func (p *Project) Dependencies(path string) []string { return p.graph.Dependencies(path) }

// Dependents returns the files that require path.
func (p *Project) Dependents(path string) []string { return p.graph.Dependents(path) }

// Graph exposes the require graph.
func (p *Project) Graph() *Graph { return p.graph }

// Cache exposes the in-memory build cache.
func (p *Project) Cache() *BuildCache { return p.cache }

// CachePath is where Close writes the cache.
func (p *Project) CachePath() string { return p.cachePath }

// Unresolved returns the module paths that could not be resolved.
func (p *Project) Unresolved() []string { return p.resolver.Unresolved() }

// OutputPath maps a source file to its mirrored path under the export root.
func (p *Project) OutputPath(path string) (string, error) {
	rel, err := filepath.Rel(p.Root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside root %s", path, p.Root)
	}
	return withExt(filepath.Join(p.ExportDir, rel)), nil
}
