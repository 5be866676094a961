package build

import (
	"fmt"
	"sort"
)

// Graph is the require graph: forward edges from a file to the files it
// requires, and reverse edges from a file to its dependents.
type Graph struct {
	forward map[string][]string
	reverse map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{forward: make(map[string][]string), reverse: make(map[string][]string)}
}

// Known reports whether file has a forward entry (possibly empty).
func (g *Graph) Known(file string) bool {
	_, ok := g.forward[file]
	return ok
}

// SetDeps replaces the forward edges of file and keeps the reverse map in
// step. Duplicate deps are collapsed; order of first occurrence is kept.
func (g *Graph) SetDeps(file string, deps []string) {
	for _, old := range g.forward[file] {
		g.reverse[old] = remove(g.reverse[old], file)
		if len(g.reverse[old]) == 0 {
			delete(g.reverse, old)
		}
	}

	seen := make(map[string]bool, len(deps))
	uniq := make([]string, 0, len(deps))
	for _, d := range deps {
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	g.forward[file] = uniq
	for _, d := range uniq {
		g.reverse[d] = append(g.reverse[d], file)
	}
}

// Dependencies returns the files required by file.
func (g *Graph) Dependencies(file string) []string {
	return append([]string(nil), g.forward[file]...)
}

// Dependents returns the files that require file, sorted.
func (g *Graph) Dependents(file string) []string {
	out := append([]string(nil), g.reverse[file]...)
	sort.Strings(out)
	return out
}

// Affected computes the affected set of changed over this graph.
func (g *Graph) Affected(changed []string) []string {
	return AffectedSet(changed, g.forward, g.reverse)
}

// Cycles returns every require cycle reachable in the graph, each as the
// path that closes it. Lua aborts on cyclic requires at runtime, so these
// are worth reporting even though the build tolerates them.
func (g *Graph) Cycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.forward))
	stack := make([]string, 0, len(g.forward))
	var cycles [][]string

	var visit func(string)
	visit = func(id string) {
		switch color[id] {
		case gray:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == id {
					cyc := append([]string(nil), stack[i:]...)
					cycles = append(cycles, append(cyc, id))
					break
				}
			}
			return
		case black:
			return
		}
		color[id] = gray
		stack = append(stack, id)
		for _, d := range g.forward[id] {
			visit(d)
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	// deterministic iteration
	ids := make([]string, 0, len(g.forward))
	for id := range g.forward {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles
}

// String renders the forward edges, one file per line, for debugging.
func (g *Graph) String() string {
	ids := make([]string, 0, len(g.forward))
	for id := range g.forward {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s := ""
	for _, id := range ids {
		s += fmt.Sprintf("%s -> %v\n", id, g.forward[id])
	}
	return s
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
