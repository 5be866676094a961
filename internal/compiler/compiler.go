// Package compiler drives a dlua run: it loads the project, builds the
// global macro table of every affected file, merges each file's imports and
// expands and writes the files, one parallel phase at a time.
package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/dlua-lang/dlua/internal/build"
	"github.com/dlua-lang/dlua/internal/cli"
	"github.com/dlua-lang/dlua/internal/lexer"
	"github.com/dlua-lang/dlua/internal/macro"
	"github.com/dlua-lang/dlua/internal/sugar"
)

// Options configures a Compiler.
type Options struct {
	Root         string
	ExportDir    string
	RequirePaths []string

	Level  int
	Levels map[string]int

	// Sugar enables the compound-assignment rewrite.
	Sugar bool

	Workers int
	Logger  *cli.Logger
}

// OptionsFromConfig derives compiler options from a loaded configuration.
func OptionsFromConfig(cfg *cli.Config, root, exportDir string, logger *cli.Logger) (Options, error) {
	level, err := cfg.LevelValue()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Root:         root,
		ExportDir:    exportDir,
		RequirePaths: cfg.RequirePaths,
		Level:        level,
		Levels:       cfg.Levels,
		Sugar:        cfg.CompoundAssign,
		Logger:       logger,
	}, nil
}

// Summary reports what a run did.
type Summary struct {
	Files    int // source files under the root
	Changed  int
	Affected int
	Written  int

	LoadTime   time.Duration
	TableTime  time.Duration
	ExpandTime time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("%d files, %d changed, %d affected, %d written (load %s, tables %s, expand %s)",
		s.Files, s.Changed, s.Affected, s.Written,
		s.LoadTime.Round(time.Millisecond), s.TableTime.Round(time.Millisecond), s.ExpandTime.Round(time.Millisecond))
}

// Compiler runs the pipeline for one source tree.
type Compiler struct {
	opts   Options
	logger *cli.Logger
	exec   *build.Executor
}

// New creates a compiler.
func New(opts Options) *Compiler {
	logger := opts.Logger
	if logger == nil {
		logger = cli.Discard()
	}
	return &Compiler{opts: opts, logger: logger, exec: build.NewExecutor(opts.Workers)}
}

// Run performs one incremental build. The cache is persisted only when
// every file expanded and was written; after a failure the failing files
// stay stale and are redone on the next run.
func (c *Compiler) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	t0 := time.Now()
	p, err := build.Load(ctx, c.loadOptions())
	if err != nil {
		return sum, err
	}
	sum.LoadTime = time.Since(t0)
	sum.Files = len(p.AllFiles())
	sum.Changed = len(p.Changed())
	sum.Affected = len(p.Affected())

	// Imports follow the files being written; they only contribute tables.
	files := p.Files()
	sources := append(append([]string(nil), files...), p.Imports()...)
	tokens := make([][]lexer.Token, len(sources))
	for i, f := range sources {
		toks, _ := p.Tokens(f)
		if c.opts.Sugar {
			toks = sugar.Rewrite(toks)
		}
		tokens[i] = toks
	}

	t1 := time.Now()
	tables, err := c.collectTables(ctx, tokens)
	if err != nil {
		return sum, err
	}
	sum.TableTime = time.Since(t1)
	c.logger.Info("Collected global macros of %d files in %s", len(sources), sum.TableTime)

	globals := mergeImports(p, sources, tables)

	t2 := time.Now()
	err = c.exec.Run(ctx, len(files), func(ctx context.Context, i int) error {
		text, err := macro.Expand(ctx, macro.Input{
			Tokens:  tokens[i],
			Globals: globals[i],
			Level:   c.opts.Level,
			Levels:  c.opts.Levels,
		})
		if err != nil {
			return err
		}
		out, err := p.OutputPath(files[i])
		if err != nil {
			return err
		}
		return writeOutput(out, text)
	})
	if err != nil {
		return sum, err
	}
	sum.ExpandTime = time.Since(t2)
	sum.Written = len(files)
	c.logger.Info("Expanded and wrote %d files in %s", len(files), sum.ExpandTime)

	p.Close()
	return sum, nil
}

func (c *Compiler) loadOptions() build.Options {
	return build.Options{
		Root:         c.opts.Root,
		ExportDir:    c.opts.ExportDir,
		RequirePaths: c.opts.RequirePaths,
		Logger:       c.logger,
		Workers:      c.opts.Workers,
	}
}

// collectTables builds the global macro table of every file in parallel.
func (c *Compiler) collectTables(ctx context.Context, tokens [][]lexer.Token) ([]macro.Table, error) {
	tables := make([]macro.Table, len(tokens))
	gate := macro.Gate{Levels: c.opts.Levels, Active: c.opts.Level}
	err := c.exec.Run(ctx, len(tokens), func(_ context.Context, i int) error {
		t, err := macro.CollectGlobals(tokens[i], gate)
		if err != nil {
			return err
		}
		tables[i] = t
		return nil
	})
	return tables, err
}

// mergeImports computes the global table each file sees: the exports of
// the files it requires directly, overridden by its own.
func mergeImports(p *build.Project, files []string, tables []macro.Table) []macro.Table {
	byPath := make(map[string]macro.Table, len(files))
	for i, f := range files {
		byPath[f] = tables[i]
	}

	merged := make([]macro.Table, len(files))
	for i, f := range files {
		var imports []macro.Table
		for _, dep := range p.Dependencies(f) {
			if t, ok := byPath[dep]; ok {
				imports = append(imports, t)
			}
		}
		merged[i] = macro.Merge(tables[i], imports...)
	}
	return merged
}
