package macro

// frame is one lexical block: the macros defined in it and the plain
// bindings that shadow macros from it.
type frame struct {
	macros map[string]Macro
	shadow map[string]bool
}

func newFrame() frame {
	return frame{macros: make(map[string]Macro), shadow: make(map[string]bool)}
}

// ScopeStack is the block structure of one file during expansion. Frame 0
// is the global scope and is never popped, so the macro and shadow stacks
// always have the same depth of at least one.
type ScopeStack struct {
	frames []frame
}

// NewScopeStack returns a stack whose global frame holds globals.
func NewScopeStack(globals Table) *ScopeStack {
	g := newFrame()
	for name, m := range globals {
		g.macros[name] = m
	}
	return &ScopeStack{frames: []frame{g}}
}

// Push enters a new block.
func (s *ScopeStack) Push() {
	s.frames = append(s.frames, newFrame())
}

// Pop leaves the current block. A stray closer at the global scope is
// ignored.
func (s *ScopeStack) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

func (s *ScopeStack) top() frame { return s.frames[len(s.frames)-1] }

// Define registers m in the current block. A later definition re-enables a
// name shadowed earlier in the same block.
func (s *ScopeStack) Define(name string, m Macro) {
	t := s.top()
	t.macros[name] = m
	delete(t.shadow, name)
}

// Shadow marks name as a plain binding in the current block.
func (s *ScopeStack) Shadow(name string) {
	s.top().shadow[name] = true
}

// ShadowGlobal marks name as a plain binding in the global scope.
func (s *ScopeStack) ShadowGlobal(name string) {
	s.frames[0].shadow[name] = true
}

// Resolve looks name up innermost to outermost. A macro found at depth d is
// hidden when any frame from d to the top shadows the name; shadowed then
// reports that case.
func (s *ScopeStack) Resolve(name string) (m Macro, found, shadowed bool) {
	for d := len(s.frames) - 1; d >= 0; d-- {
		if s.frames[d].shadow[name] {
			shadowed = true
		}
		if mm, ok := s.frames[d].macros[name]; ok {
			if shadowed {
				return Macro{}, false, true
			}
			return mm, true, false
		}
	}
	return Macro{}, false, false
}

// Lookup returns the visible macro bound to name.
func (s *ScopeStack) Lookup(name string) (Macro, bool) {
	m, ok, _ := s.Resolve(name)
	return m, ok
}

// Visible returns the names that currently resolve to a macro, sorted.
func (s *ScopeStack) Visible() []string {
	vis := make(Table)
	for d := len(s.frames) - 1; d >= 0; d-- {
		for name := range s.frames[d].macros {
			if _, seen := vis[name]; seen {
				continue
			}
			if m, ok := s.Lookup(name); ok {
				vis[name] = m
			}
		}
	}
	return vis.Names()
}
