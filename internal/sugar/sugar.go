// Package sugar rewrites compound assignments into plain Lua before macro
// expansion: "x += rhs" becomes "x = x + (rhs)".
package sugar

import (
	"strings"

	"github.com/dlua-lang/dlua/internal/lexer"
	"github.com/dlua-lang/dlua/internal/position"
)

// Rewrite returns toks with every compound assignment desugared. The right
// hand side runs to a semicolon, a comment or the end of the line; an
// operator followed directly by a line break is left alone. Tokens outside
// rewritten statements are returned unchanged.
func Rewrite(toks []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(toks))
	for i := 0; i < len(toks); {
		tok := toks[i]
		if tok.Type != lexer.TokenIdentifier {
			out = append(out, tok)
			i++
			continue
		}

		j := i + 1
		for j < len(toks) && toks[j].Type == lexer.TokenWhitespace {
			j++
		}
		if j >= len(toks) || toks[j].Type != lexer.TokenCompoundAssign {
			out = append(out, tok)
			i++
			continue
		}

		rhs, next, ok := rightHandSide(toks, j+1)
		if !ok {
			out = append(out, toks[i:j+1]...)
			i = j + 1
			continue
		}

		op := toks[j]
		out = append(out,
			tok,
			synth(lexer.TokenWhitespace, " ", op.Pos),
			synth(lexer.TokenAssign, "=", op.Pos),
			synth(lexer.TokenWhitespace, " ", op.Pos),
			synth(lexer.TokenIdentifier, tok.Literal, op.Pos),
			synth(lexer.TokenWhitespace, " ", op.Pos),
			synth(lexer.TokenOther, op.Literal[:1], op.Pos),
			synth(lexer.TokenWhitespace, " ", op.Pos),
			synth(lexer.TokenLParen, "(", op.Pos),
		)
		out = append(out, rhs...)
		out = append(out, synth(lexer.TokenRParen, ")", op.Pos))
		i = next
	}
	return out
}

// rightHandSide collects the trimmed operand starting at k. ok is false when
// the operand is missing or starts on the next line.
func rightHandSide(toks []lexer.Token, k int) (rhs []lexer.Token, next int, ok bool) {
	for k < len(toks) && toks[k].Type == lexer.TokenWhitespace {
		if hasNewline(toks[k].Literal) {
			return nil, k, false
		}
		k++
	}

	m := k
	for m < len(toks) {
		t := toks[m]
		if t.Type == lexer.TokenSemicolon || isComment(t) {
			break
		}
		if t.Type == lexer.TokenWhitespace && hasNewline(t.Literal) {
			break
		}
		m++
	}

	end := m
	for end > k && toks[end-1].Type == lexer.TokenWhitespace {
		end--
	}
	if end == k {
		return nil, k, false
	}
	// trailing blanks before a comment or semicolon are kept outside
	return toks[k:end], end, true
}

func isComment(t lexer.Token) bool {
	return t.Is(lexer.TokenComment, lexer.TokenMacroComment, lexer.TokenAliasComment,
		lexer.TokenIfComment, lexer.TokenEndIfComment)
}

func hasNewline(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

func synth(tt lexer.TokenType, lit string, pos position.Position) lexer.Token {
	return lexer.Token{Type: tt, Literal: lit, Pos: pos}
}
