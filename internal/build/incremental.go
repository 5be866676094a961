package build

import (
	"os"
	"sort"
)

// ModTime returns the modification time of path in whole seconds since the
// epoch, or 0 if it cannot be read.
func ModTime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}

// ChangedFiles returns the files that are missing from the cache or whose
// cached mtime differs from the current one. Equality of whole seconds is
// the only staleness test; contents are never hashed.
func ChangedFiles(files []string, cache *BuildCache) []string {
	changed := make([]string, 0)
	for _, f := range files {
		fc, ok := cache.Get(f)
		if !ok || fc.MTime != ModTime(f) {
			changed = append(changed, f)
		}
	}
	return changed
}

// AffectedSet returns the closure of changed over both edge directions:
// everything that requires a changed file (its macros may change what they
// see) and everything a changed file requires (its imports must be
// re-tabled). The walk uses an explicit stack and visited set so require
// cycles terminate. The result is sorted.
func AffectedSet(changed []string, forward, reverse map[string][]string) []string {
	visited := make(map[string]bool, len(changed))
	stack := append([]string(nil), changed...)

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[p] {
			continue
		}
		visited[p] = true

		for _, o := range reverse[p] {
			if !visited[o] {
				stack = append(stack, o)
			}
		}
		for _, d := range forward[p] {
			if !visited[d] {
				stack = append(stack, d)
			}
		}
	}

	out := make([]string, 0, len(visited))
	for p := range visited {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
