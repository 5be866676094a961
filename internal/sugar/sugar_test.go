package sugar

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dlua-lang/dlua/internal/lexer"
)

func render(toks []lexer.Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Literal)
	}
	return b.String()
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"add", "x += 1\n", "x = x + (1)\n"},
		{"sub expression", "count -= a * b\n", "count = count - (a * b)\n"},
		{"mul", "n *= 2", "n = n * (2)"},
		{"div", "n /= 2", "n = n / (2)"},
		{"dotted target", "self.hp -= dmg\n", "self.hp = self.hp - (dmg)\n"},
		{"stops at semicolon", "x += 1; y = 2\n", "x = x + (1); y = 2\n"},
		{"stops at comment", "x += 1 -- bump\n", "x = x + (1) -- bump\n"},
		{"newline after operator", "x +=\n  1\n", "x +=\n  1\n"},
		{"missing operand", "x +=", "x +="},
		{"comparison untouched", "if x <= 1 then end", "if x <= 1 then end"},
		{"floor division untouched", "x = y // 2", "x = y // 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(Rewrite(lexer.Tokenize(tt.src, "test.lua")))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRewriteTokenTypes(t *testing.T) {
	toks := Rewrite(lexer.Tokenize("x += 1", "test.lua"))
	var types []lexer.TokenType
	for _, tok := range toks {
		if tok.Type != lexer.TokenWhitespace {
			types = append(types, tok.Type)
		}
	}
	want := []lexer.TokenType{
		lexer.TokenIdentifier, lexer.TokenAssign, lexer.TokenIdentifier,
		lexer.TokenOther, lexer.TokenLParen, lexer.TokenNumber, lexer.TokenRParen,
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
