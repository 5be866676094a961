package macro

import (
	"fmt"
	"strings"

	"github.com/dlua-lang/dlua/internal/errors"
	"github.com/dlua-lang/dlua/internal/lexer"
	"github.com/dlua-lang/dlua/internal/position"
)

// Gate selects the compile level. Regions between "-- @if <level>" and
// "-- @endif" whose level ranks below Active are elided.
type Gate struct {
	Levels map[string]int
	Active int
}

// gateState tracks the open @if regions of one file.
type gateState struct {
	Gate
	open   []position.Position
	elided int // number of open regions that are elided
}

func newGateState(g Gate) *gateState {
	return &gateState{Gate: g}
}

// Elided reports whether tokens at the current point are dropped.
func (g *gateState) Elided() bool { return g.elided > 0 }

// Step consumes tok if it is a level marker and reports whether it did.
func (g *gateState) Step(tok lexer.Token) (bool, error) {
	switch tok.Type {
	case lexer.TokenIfComment:
		name := levelName(tok.Literal)
		rank, ok := g.Levels[name]
		if !ok {
			return true, errors.UnknownLevel(tok.Pos, name)
		}
		g.open = append(g.open, tok.Pos)
		// an elided region elides everything it contains
		if g.elided > 0 || rank < g.Active {
			g.elided++
		}
		return true, nil
	case lexer.TokenEndIfComment:
		if len(g.open) == 0 {
			return true, errors.NewStandardError(errors.CategoryLevel, errors.CodeUnmatchedEndIf,
				"@endif without matching @if", tok.Pos, nil)
		}
		g.open = g.open[:len(g.open)-1]
		if g.elided > 0 {
			g.elided--
		}
		return true, nil
	}
	return false, nil
}

// Finish reports an @if left open at the end of the file.
func (g *gateState) Finish() error {
	if len(g.open) == 0 {
		return nil
	}
	pos := g.open[len(g.open)-1]
	return errors.NewStandardError(errors.CategoryLevel, errors.CodeMissingEndIf,
		fmt.Sprintf("@if at %s is never closed", pos), pos, nil)
}

// levelName extracts <level> from "-- @if <level> ...".
func levelName(comment string) string {
	s := strings.TrimSpace(strings.TrimPrefix(comment, "--"))
	s = strings.TrimPrefix(s, "@if")
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
