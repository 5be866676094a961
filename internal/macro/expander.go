package macro

import (
	"context"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dlua-lang/dlua/internal/errors"
	"github.com/dlua-lang/dlua/internal/lexer"
)

// Input is everything needed to expand one file.
type Input struct {
	Tokens  []lexer.Token
	Globals Table // merged imports and own global macros

	Level  int            // active compile level
	Levels map[string]int // level name -> rank
}

// Expand rewrites the macro use sites of a file and returns its text.
// Tokens that are neither directives nor macro uses are copied verbatim.
func Expand(ctx context.Context, in Input) (string, error) {
	ex := &expander{
		toks:   in.Tokens,
		scopes: NewScopeStack(in.Globals),
		gate:   newGateState(Gate{Levels: in.Levels, Active: in.Level}),
	}
	ex.out.Grow(len(in.Tokens) * 4)

	if err := ex.run(ctx); err != nil {
		return "", err
	}
	return ex.out.String(), nil
}

// expander is the per-file state of one expansion.
type expander struct {
	toks   []lexer.Token
	i      int
	out    strings.Builder
	scopes *ScopeStack
	gate   *gateState

	// loop variables of a for header, shadowed in the body pushed by do
	loopVars []string
}

func (ex *expander) run(ctx context.Context) error {
	for n := 0; ex.i < len(ex.toks); n++ {
		if n&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		tok := ex.toks[ex.i]
		if marker, err := ex.gate.Step(tok); err != nil {
			return err
		} else if marker {
			ex.i++
			continue
		}

		if tok.Is(lexer.TokenMacroComment, lexer.TokenAliasComment) {
			if err := ex.directive(); err != nil {
				return err
			}
			continue
		}
		if ex.gate.Elided() {
			ex.i++
			continue
		}

		var err error
		switch tok.Type {
		case lexer.TokenFunction:
			ex.function(false)
		case lexer.TokenLocal:
			ex.local()
		case lexer.TokenFor:
			ex.forHeader()
		case lexer.TokenDo, lexer.TokenThen, lexer.TokenRepeat:
			ex.emit()
			ex.push()
		case lexer.TokenEnd, lexer.TokenUntil:
			ex.emit()
			ex.scopes.Pop()
		case lexer.TokenElse:
			ex.emit()
			ex.scopes.Pop()
			ex.push()
		case lexer.TokenElseIf:
			// the then that follows opens the branch frame
			ex.emit()
			ex.scopes.Pop()
		case lexer.TokenIdentifier:
			err = ex.identifier()
		default:
			ex.emit()
		}
		if err != nil {
			return err
		}
	}
	return ex.gate.Finish()
}

// emit copies the current token and advances.
func (ex *expander) emit() {
	ex.out.WriteString(ex.toks[ex.i].Literal)
	ex.i++
}

// push opens a block, binding any pending loop variables in it.
func (ex *expander) push() {
	ex.scopes.Push()
	for _, v := range ex.loopVars {
		ex.scopes.Shadow(v)
	}
	ex.loopVars = nil
}

// skipTrivia returns the index of the first non-whitespace, non-comment
// token at or after j.
func (ex *expander) skipTrivia(j int) int {
	for j < len(ex.toks) && ex.toks[j].Is(lexer.TokenWhitespace, lexer.TokenComment) {
		j++
	}
	return j
}

// emitThrough copies tokens up to but excluding index j.
func (ex *expander) emitThrough(j int) {
	for ex.i < j {
		ex.emit()
	}
}

func (ex *expander) directive() error {
	d, next, err := ParseDirective(ex.toks, ex.i)
	if err != nil {
		return err
	}
	ex.i = next
	if ex.gate.Elided() || !d.Local {
		return nil
	}

	if d.Kind == lexer.TokenMacroComment {
		ex.scopes.Define(d.Name, d.Macro)
		return nil
	}

	m, found, shadowed := ex.scopes.Resolve(d.Dest)
	switch {
	case shadowed:
		return errors.ShadowedAliasTarget(d.Pos, d.Name, d.Dest)
	case !found:
		return errors.UndefinedAliasTarget(d.Pos, d.Name, d.Dest, suggest(d.Dest, ex.scopes.Visible()))
	}
	ex.scopes.Define(d.Name, m.Clone())
	return nil
}

// function handles a function declaration or expression at ex.i. The
// declared name is shadowed before the body frame is pushed; the formal
// parameters are shadowed inside it.
func (ex *expander) function(local bool) {
	j := ex.skipTrivia(ex.i + 1)
	name, method := "", false
	if j < len(ex.toks) && ex.toks[j].Type == lexer.TokenIdentifier {
		name = ex.toks[j].Literal
		j = ex.skipTrivia(j + 1)
		if j < len(ex.toks) && ex.toks[j].Literal == ":" {
			method = true
			j = ex.skipTrivia(j + 1)
			if j < len(ex.toks) && ex.toks[j].Type == lexer.TokenIdentifier {
				j = ex.skipTrivia(j + 1)
			}
		}
	}

	var params []string
	if j < len(ex.toks) && ex.toks[j].Type == lexer.TokenLParen {
		for j++; j < len(ex.toks) && ex.toks[j].Type != lexer.TokenRParen; j++ {
			if ex.toks[j].Type == lexer.TokenIdentifier {
				params = append(params, ex.toks[j].Literal)
			}
		}
		if j < len(ex.toks) {
			j++ // )
		}
	} else {
		// not a well-formed header: open the block and carry on
		j = ex.i + 1
		name, method, params = "", false, nil
	}

	switch {
	case name == "" || method:
	case local:
		ex.scopes.Shadow(name)
	default:
		ex.scopes.ShadowGlobal(name)
	}

	ex.emitThrough(j)
	ex.scopes.Push()
	for _, p := range params {
		ex.scopes.Shadow(p)
	}
	if method {
		ex.scopes.Shadow("self")
	}
}

// local handles "local function f" and "local a <const>, b".
func (ex *expander) local() {
	ex.emit()
	j := ex.skipTrivia(ex.i)
	if j < len(ex.toks) && ex.toks[j].Type == lexer.TokenFunction {
		ex.emitThrough(j)
		ex.function(true)
		return
	}

	expectName := true
	for ex.i < len(ex.toks) {
		tok := ex.toks[ex.i]
		switch {
		case tok.Is(lexer.TokenWhitespace, lexer.TokenComment):
		case tok.Type == lexer.TokenIdentifier && expectName:
			ex.scopes.Shadow(tok.Literal)
			expectName = false
		case tok.Type == lexer.TokenComma && !expectName:
			expectName = true
		case tok.Literal == "<" && !expectName:
			// attribute: <const> or <close>
			for ex.i < len(ex.toks) && ex.toks[ex.i].Literal != ">" {
				ex.emit()
			}
			if ex.i >= len(ex.toks) {
				return
			}
		default:
			return
		}
		ex.emit()
	}
}

// forHeader records the loop variables of a numeric or generic for. They
// are bound in the body frame opened by the next do.
func (ex *expander) forHeader() {
	ex.emit()
	ex.loopVars = ex.loopVars[:0]
	for ex.i < len(ex.toks) {
		tok := ex.toks[ex.i]
		switch {
		case tok.Is(lexer.TokenWhitespace, lexer.TokenComment, lexer.TokenComma):
		case tok.Type == lexer.TokenIdentifier && tok.Literal != "in":
			ex.loopVars = append(ex.loopVars, tok.Literal)
		default:
			return
		}
		ex.emit()
	}
}

// identifier resolves a name against the visible macros.
func (ex *expander) identifier() error {
	tok := ex.toks[ex.i]
	// method name in obj:name(...)
	if ex.i > 0 && ex.toks[ex.i-1].Literal == ":" {
		ex.emit()
		return nil
	}

	j := ex.i + 1
	for j < len(ex.toks) && ex.toks[j].Type == lexer.TokenWhitespace {
		j++
	}
	if j < len(ex.toks) && ex.toks[j].Type == lexer.TokenAssign {
		ex.scopes.ShadowGlobal(tok.Literal)
		ex.emit()
		return nil
	}

	m, ok := ex.scopes.Lookup(tok.Literal)
	if !ok {
		ex.emit()
		return nil
	}
	if m.IsValue() {
		ex.out.WriteString(m.Template)
		ex.i++
		return nil
	}

	if j >= len(ex.toks) {
		return errors.Syntax(tok.Pos, errors.CodeExpectedLParen,
			"expected '(' after macro %s, found end of file", tok.Literal)
	}
	if ex.toks[j].Type != lexer.TokenLParen {
		return errors.Syntax(ex.toks[j].Pos, errors.CodeExpectedLParen,
			"expected '(' after macro %s, found %q", tok.Literal, ex.toks[j].Literal)
	}

	args, next, err := ex.arguments(j + 1)
	if err != nil {
		return err
	}
	if len(args) != len(m.Params) {
		return errors.ArityMismatch(tok.Pos, tok.Literal, len(m.Params), len(args))
	}
	ex.out.WriteString(m.Expand(args))
	ex.i = next
	return nil
}

// arguments splits a call's argument list starting after its "(" into
// trimmed arguments. Commas inside nested parentheses do not split. It
// returns the index after the closing ")".
func (ex *expander) arguments(j int) ([]string, int, error) {
	open := ex.toks[j-1]
	var (
		args  []string
		cur   strings.Builder
		depth int
	)
	for ; j < len(ex.toks); j++ {
		tok := ex.toks[j]
		switch {
		case tok.Type == lexer.TokenRParen && depth == 0:
			if arg := strings.TrimSpace(cur.String()); arg != "" {
				args = append(args, arg)
			}
			return args, j + 1, nil
		case tok.Type == lexer.TokenComma && depth == 0:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		case tok.Type == lexer.TokenLParen:
			depth++
		case tok.Type == lexer.TokenRParen:
			depth--
		}
		cur.WriteString(tok.Literal)
	}
	return nil, j, errors.NewStandardError(errors.CategoryMacro, errors.CodeUnterminatedCall,
		"macro call is missing ')'", open.Pos, nil)
}

// suggest returns the closest visible macro name to name, or "".
func suggest(name string, candidates []string) string {
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return best.Target
}
