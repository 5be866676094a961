// Package watch rebuilds a source tree whenever one of its Lua files
// changes.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/dlua-lang/dlua/internal/build"
	"github.com/dlua-lang/dlua/internal/cli"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before rebuilding.
const DefaultDebounce = 100 * time.Millisecond

// BuildFunc performs one build.
type BuildFunc func(ctx context.Context) error

// Watcher drives rebuilds from file system notifications.
type Watcher struct {
	w         *fsnotify.Watcher
	root      string
	exportDir string
	build     BuildFunc
	logger    *cli.Logger

	Debounce time.Duration

	sf     singleflight.Group
	gen    atomic.Uint64 // bumped on every relevant event
	builds atomic.Uint64
}

// New watches every directory under root except exportDir.
func New(root, exportDir string, fn BuildFunc, logger *cli.Logger) (*Watcher, error) {
	if logger == nil {
		logger = cli.Discard()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		w:         fw,
		root:      filepath.Clean(root),
		exportDir: filepath.Clean(exportDir),
		build:     fn,
		logger:    logger,
		Debounce:  DefaultDebounce,
	}
	if err := w.addTree(w.root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Builds returns the number of builds run so far.
func (w *Watcher) Builds() uint64 { return w.builds.Load() }

// Run builds once, then rebuilds after every settled burst of changes until
// ctx is done. Build failures are logged and watching continues. Run
// returns only after any running build has finished.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.w.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	w.rebuild(ctx)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("watch: %s %s", ev.Op, ev.Name)
			w.gen.Add(1)
			timer.Reset(w.Debounce)
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch: %v", err)
		case <-timer.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.rebuild(ctx)
			}()
		}
	}
}

// rebuild runs the build, coalescing concurrent triggers. Changes that
// arrive while a build is running cause one more build.
func (w *Watcher) rebuild(ctx context.Context) {
	_, err, _ := w.sf.Do("build", func() (interface{}, error) {
		for {
			g := w.gen.Load()
			w.builds.Add(1)
			if err := w.build(ctx); err != nil {
				return nil, err
			}
			if w.gen.Load() == g || ctx.Err() != nil {
				return nil, nil
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		w.logger.Error("%v", err)
	}
}

// relevant reports whether ev may change the build. New directories are
// added to the watch set.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if w.inExport(ev.Name) {
		return false
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watch: %v", err)
			}
			return true
		}
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return filepath.Ext(ev.Name) == build.SourceExt
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.inExport(path) {
			return filepath.SkipDir
		}
		return w.w.Add(path)
	})
}

func (w *Watcher) inExport(path string) bool {
	rel, err := filepath.Rel(w.exportDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
