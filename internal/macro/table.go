package macro

import (
	"github.com/dlua-lang/dlua/internal/lexer"
)

// CollectGlobals returns the global macros defined by a file: every macro
// directive without local, in order, later definitions overwriting earlier
// ones. Local directives and aliases are parsed so that grammar errors
// surface here, then discarded. Regions elided by gate define nothing.
func CollectGlobals(toks []lexer.Token, gate Gate) (Table, error) {
	table := make(Table)
	gs := newGateState(gate)

	for i := 0; i < len(toks); {
		tok := toks[i]
		if marker, err := gs.Step(tok); err != nil {
			return nil, err
		} else if marker {
			i++
			continue
		}
		if !tok.Is(lexer.TokenMacroComment, lexer.TokenAliasComment) {
			i++
			continue
		}

		d, next, err := ParseDirective(toks, i)
		if err != nil {
			return nil, err
		}
		i = next
		if gs.Elided() || d.Kind != lexer.TokenMacroComment || d.Local {
			continue
		}
		table[d.Name] = d.Macro
	}

	if err := gs.Finish(); err != nil {
		return nil, err
	}
	return table, nil
}
