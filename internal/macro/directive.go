package macro

import (
	"strings"

	"github.com/dlua-lang/dlua/internal/errors"
	"github.com/dlua-lang/dlua/internal/lexer"
	"github.com/dlua-lang/dlua/internal/position"
)

// Directive is a parsed macro or alias directive.
type Directive struct {
	Kind  lexer.TokenType // TokenMacroComment or TokenAliasComment
	Local bool
	Name  string
	Macro Macro  // macro directives
	Dest  string // alias directives: the aliased macro
	Pos   position.Position
}

// directiveParser walks the tokens following a directive comment.
type directiveParser struct {
	toks []lexer.Token
	i    int
}

// ParseDirective parses the directive whose comment token is toks[start]
// and returns it with the index of the first token after it.
//
//	directive     := MACRO-COMMENT WS [ "local" WS ] body
//	value-body    := IDENT WS* "=" WS* <tokens-until-whitespace>
//	function-body := "function" WS IDENT WS* "(" params ")" template "end"
//	alias         := ALIAS-COMMENT WS "local" WS IDENT WS* "=" WS* IDENT
func ParseDirective(toks []lexer.Token, start int) (Directive, int, error) {
	p := &directiveParser{toks: toks, i: start}
	d := Directive{Kind: toks[start].Type, Pos: toks[start].Pos}
	p.i++

	if p.eof() {
		return d, p.i, errors.UnexpectedEOF(p.pos(), "directive comment")
	}
	if p.peek().Type != lexer.TokenWhitespace {
		return d, p.i, errors.Syntax(p.pos(), errors.CodeMissingWhitespace,
			"expected whitespace after directive comment, found %q", p.peek().Literal)
	}
	p.skipWS()

	if !p.eof() && p.peek().Type == lexer.TokenLocal {
		d.Local = true
		p.i++
		p.skipWS()
	}

	if d.Kind == lexer.TokenAliasComment {
		if !d.Local {
			return d, p.i, errors.GlobalAlias(d.Pos)
		}
		err := p.parseAlias(&d)
		return d, p.i, err
	}

	if p.eof() {
		return d, p.i, errors.UnexpectedEOF(p.pos(), "directive comment")
	}
	var err error
	switch p.peek().Type {
	case lexer.TokenIdentifier:
		err = p.parseValue(&d)
	case lexer.TokenFunction:
		err = p.parseFunction(&d)
	default:
		err = errors.Syntax(p.pos(), errors.CodeBadIntroducer,
			"expected macro name or 'function', found %q", p.peek().Literal)
	}
	return d, p.i, err
}

func (p *directiveParser) parseValue(d *Directive) error {
	d.Name = p.next().Literal
	if err := p.expect(lexer.TokenAssign, errors.CodeExpectedAssign, "'=' after macro name "+d.Name); err != nil {
		return err
	}
	p.skipWS()

	var b strings.Builder
	for !p.eof() && p.peek().Type != lexer.TokenWhitespace {
		b.WriteString(p.next().Literal)
	}
	if b.Len() == 0 {
		return errors.Syntax(p.pos(), errors.CodeEmptyValue, "macro %s has no value", d.Name)
	}
	d.Macro = Macro{Template: b.String()}
	return nil
}

func (p *directiveParser) parseFunction(d *Directive) error {
	p.i++ // function
	p.skipWS()
	if p.eof() {
		return errors.UnexpectedEOF(p.pos(), "'function'")
	}
	if p.peek().Type != lexer.TokenIdentifier {
		return errors.Syntax(p.pos(), errors.CodeExpectedName,
			"expected macro name after 'function', found %q", p.peek().Literal)
	}
	d.Name = p.next().Literal
	if err := p.expect(lexer.TokenLParen, errors.CodeExpectedLParen, "'(' after macro name "+d.Name); err != nil {
		return err
	}

	params := make([]string, 0, 4)
	needComma := false
	for {
		if p.eof() {
			return errors.UnexpectedEOF(p.pos(), "parameters of macro "+d.Name)
		}
		tok := p.next()
		switch {
		case tok.Type == lexer.TokenRParen:
			d.Macro.Params = params
			d.Macro.Func = true
			return p.parseTemplate(d)
		case tok.Type == lexer.TokenIdentifier && !strings.Contains(tok.Literal, ".") && !needComma:
			params = append(params, tok.Literal)
			needComma = true
		case tok.Type == lexer.TokenComma:
			needComma = false
		case tok.Type == lexer.TokenWhitespace:
		default:
			return errors.Syntax(tok.Pos, errors.CodeExpectedRParen,
				"expected ')' after parameters for macro %s, found %q", d.Name, tok.Literal)
		}
	}
}

// parseTemplate collects the body up to the end matching the definition.
// return keywords are dropped and the result is trimmed.
func (p *directiveParser) parseTemplate(d *Directive) error {
	var b strings.Builder
	depth := 0
	for !p.eof() {
		tok := p.next()
		switch tok.Type {
		case lexer.TokenFunction, lexer.TokenDo, lexer.TokenIf:
			depth++
		case lexer.TokenEnd:
			if depth == 0 {
				d.Macro.Template = strings.TrimSpace(b.String())
				return nil
			}
			depth--
		case lexer.TokenReturn:
			continue
		}
		b.WriteString(tok.Literal)
	}
	return errors.Syntax(d.Pos, errors.CodeUnterminatedTemplate,
		"macro %s: missing 'end' for function body", d.Name)
}

func (p *directiveParser) parseAlias(d *Directive) error {
	if p.eof() {
		return errors.UnexpectedEOF(p.pos(), "'local'")
	}
	if p.peek().Type != lexer.TokenIdentifier {
		return errors.Syntax(p.pos(), errors.CodeExpectedName,
			"expected alias name, found %q", p.peek().Literal)
	}
	d.Name = p.next().Literal
	if err := p.expect(lexer.TokenAssign, errors.CodeExpectedAssign, "'=' after alias name "+d.Name); err != nil {
		return err
	}
	p.skipWS()
	if p.eof() {
		return errors.UnexpectedEOF(p.pos(), "'='")
	}
	if p.peek().Type != lexer.TokenIdentifier {
		return errors.Syntax(p.pos(), errors.CodeExpectedName,
			"expected aliased macro name, found %q", p.peek().Literal)
	}
	d.Dest = p.next().Literal
	return nil
}

// expect skips whitespace and consumes a token of type tt.
func (p *directiveParser) expect(tt lexer.TokenType, code, what string) error {
	p.skipWS()
	if p.eof() {
		return errors.Syntax(p.pos(), errors.CodeUnexpectedEOF, "expected %s, found end of file", what)
	}
	if p.peek().Type != tt {
		return errors.Syntax(p.pos(), code, "expected %s, found %q", what, p.peek().Literal)
	}
	p.i++
	return nil
}

func (p *directiveParser) eof() bool { return p.i >= len(p.toks) }

func (p *directiveParser) peek() lexer.Token { return p.toks[p.i] }

func (p *directiveParser) next() lexer.Token {
	tok := p.toks[p.i]
	p.i++
	return tok
}

func (p *directiveParser) skipWS() {
	for !p.eof() && p.peek().Type == lexer.TokenWhitespace {
		p.i++
	}
}

// pos is the position of the current token, or of the end of the last one.
func (p *directiveParser) pos() position.Position {
	if !p.eof() {
		return p.peek().Pos
	}
	if len(p.toks) == 0 {
		return position.Position{}
	}
	last := p.toks[len(p.toks)-1]
	return last.Pos.Advance(last.Literal)
}
