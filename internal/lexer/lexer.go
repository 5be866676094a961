// Package lexer implements the dlua lexical analyzer.
//
// The lexer is byte-faithful: concatenating the Literal of every token it
// produces reproduces the input exactly, whitespace and comments included.
// The macro expander relies on that to echo everything it does not rewrite.
package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/dlua-lang/dlua/internal/position"
)

// TokenType represents the type of a token
type TokenType int

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

// Token types
const (
	// 特殊トークン
	TokenEOF TokenType = iota
	TokenError
	TokenWhitespace
	TokenComment

	// Directive comments
	TokenMacroComment // -- @macro
	TokenAliasComment // -- @alias
	TokenIfComment    // -- @if <level>   (whole line)
	TokenEndIfComment // -- @endif        (whole line)

	// Literals
	TokenIdentifier
	TokenNumber
	TokenString

	// Block structuring keywords
	TokenFunction
	TokenLocal
	TokenDo
	TokenEnd
	TokenIf
	TokenThen
	TokenElse
	TokenElseIf
	TokenFor
	TokenWhile
	TokenRepeat
	TokenUntil
	TokenReturn

	// Reserved call resolved at build time
	TokenRequire

	// Punctuation
	TokenLParen
	TokenRParen
	TokenComma
	TokenSemicolon
	TokenAssign
	TokenCompoundAssign // += -= *= /=

	// Anything else, echoed untouched
	TokenOther
)

// Token represents a lexical token. Literal is the exact source slice.
type Token struct {
	Type    TokenType
	Literal string
	Pos     position.Position
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %q, Pos: %s}", t.Type, t.Literal, t.Pos)
}

// Is reports whether the token has one of the given types.
func (t Token) Is(types ...TokenType) bool {
	for _, tt := range types {
		if t.Type == tt {
			return true
		}
	}
	return false
}

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenWhitespace: "WHITESPACE",
	TokenComment:    "COMMENT",

	TokenMacroComment: "MACRO_COMMENT",
	TokenAliasComment: "ALIAS_COMMENT",
	TokenIfComment:    "IF_COMMENT",
	TokenEndIfComment: "ENDIF_COMMENT",

	TokenIdentifier: "IDENTIFIER",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",

	TokenFunction: "FUNCTION",
	TokenLocal:    "LOCAL",
	TokenDo:       "DO",
	TokenEnd:      "END",
	TokenIf:       "IF",
	TokenThen:     "THEN",
	TokenElse:     "ELSE",
	TokenElseIf:   "ELSEIF",
	TokenFor:      "FOR",
	TokenWhile:    "WHILE",
	TokenRepeat:   "REPEAT",
	TokenUntil:    "UNTIL",
	TokenReturn:   "RETURN",

	TokenRequire: "REQUIRE",

	TokenLParen:         "LPAREN",
	TokenRParen:         "RPAREN",
	TokenComma:          "COMMA",
	TokenSemicolon:      "SEMICOLON",
	TokenAssign:         "ASSIGN",
	TokenCompoundAssign: "COMPOUND_ASSIGN",

	TokenOther: "OTHER",
}

// keywords maps the structuring keywords to their token types. Other Lua
// keywords (and, or, not, nil, ...) are plain identifiers to the expander.
var keywords = map[string]TokenType{
	"function": TokenFunction,
	"local":    TokenLocal,
	"do":       TokenDo,
	"end":      TokenEnd,
	"if":       TokenIf,
	"then":     TokenThen,
	"else":     TokenElse,
	"elseif":   TokenElseIf,
	"for":      TokenFor,
	"while":    TokenWhile,
	"repeat":   TokenRepeat,
	"until":    TokenUntil,
	"return":   TokenReturn,
	"require":  TokenRequire,
}

// directives maps the word after "-- @" to its comment token type.
var directives = map[string]TokenType{
	"macro": TokenMacroComment,
	"alias": TokenAliasComment,
	"if":    TokenIfComment,
	"endif": TokenEndIfComment,
}

// Lexer represents the lexical analyzer
type Lexer struct {
	input string
	pos   int               // offset of the next unread byte
	loc   position.Position // position of the next unread byte
}

// New creates a new lexer instance
func New(input string) *Lexer {
	return NewWithFilename(input, "")
}

// NewWithFilename creates a new lexer instance with filename for error reporting
func NewWithFilename(input, filename string) *Lexer {
	return &Lexer{input: input, loc: position.Start(filename)}
}

// Tokenize lexes the whole input. Error tokens (bytes that are not valid
// UTF-8) are dropped one at a time; lexing never fails.
func Tokenize(input, filename string) []Token {
	l := NewWithFilename(input, filename)
	tokens := make([]Token, 0, len(input)/3)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case TokenEOF:
			return tokens
		case TokenError:
			continue
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

// emit cuts the next n bytes into a token and advances past them.
func (l *Lexer) emit(tt TokenType, n int) Token {
	lit := l.input[l.pos : l.pos+n]
	tok := Token{Type: tt, Literal: lit, Pos: l.loc}
	l.pos += n
	l.loc = l.loc.Advance(lit)
	return tok
}

// NextToken scans the input and returns the next token
func (l *Lexer) NextToken() Token {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.loc}
	}

	ch := l.input[l.pos]
	switch {
	case isSpace(ch):
		n := 1
		for isSpace(l.peek(n)) {
			n++
		}
		return l.emit(TokenWhitespace, n)
	case ch == '-' && l.peek(1) == '-':
		return l.readComment()
	case isLetter(ch) || ch == '_':
		return l.readIdentifier()
	case isDigit(ch) || (ch == '.' && isDigit(l.peek(1))):
		return l.readNumber()
	case ch == '"' || ch == '\'':
		return l.readString(ch)
	case ch == '[':
		if n := l.longBracket(l.pos); n > 0 {
			return l.emit(TokenString, n)
		}
		return l.emit(TokenOther, 1)
	}

	switch ch {
	case '(':
		return l.emit(TokenLParen, 1)
	case ')':
		return l.emit(TokenRParen, 1)
	case ',':
		return l.emit(TokenComma, 1)
	case ';':
		return l.emit(TokenSemicolon, 1)
	case '=':
		if l.peek(1) == '=' {
			return l.emit(TokenOther, 2)
		}
		return l.emit(TokenAssign, 1)
	case '+', '-', '*':
		if l.peek(1) == '=' {
			return l.emit(TokenCompoundAssign, 2)
		}
		return l.emit(TokenOther, 1)
	case '/':
		if l.peek(1) == '=' {
			return l.emit(TokenCompoundAssign, 2)
		}
		if l.peek(1) == '/' {
			return l.emit(TokenOther, 2)
		}
		return l.emit(TokenOther, 1)
	case '~', '<', '>':
		if l.peek(1) == '=' || (ch != '~' && l.peek(1) == ch) {
			return l.emit(TokenOther, 2)
		}
		return l.emit(TokenOther, 1)
	case '.':
		if l.peek(1) == '.' {
			if l.peek(2) == '.' {
				return l.emit(TokenOther, 3)
			}
			return l.emit(TokenOther, 2)
		}
		return l.emit(TokenOther, 1)
	case ':':
		if l.peek(1) == ':' {
			return l.emit(TokenOther, 2)
		}
		return l.emit(TokenOther, 1)
	}

	if ch < utf8.RuneSelf {
		return l.emit(TokenOther, 1)
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	if r == utf8.RuneError && size == 1 {
		return l.emit(TokenError, 1)
	}
	return l.emit(TokenOther, size)
}

// readIdentifier reads a name. Dotted paths such as string.format form a
// single identifier; a dot joins only when a name character follows it, so
// the concatenation operator is never swallowed.
func (l *Lexer) readIdentifier() Token {
	n := 1
	for {
		c := l.peek(n)
		if isLetter(c) || isDigit(c) || c == '_' {
			n++
			continue
		}
		if c == '.' && (isLetter(l.peek(n+1)) || l.peek(n+1) == '_') {
			n++
			continue
		}
		break
	}
	if tt, ok := keywords[l.input[l.pos:l.pos+n]]; ok {
		return l.emit(tt, n)
	}
	return l.emit(TokenIdentifier, n)
}

func (l *Lexer) readNumber() Token {
	n := 0
	hex := l.peek(0) == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X')
	for {
		c := l.peek(n)
		if isLetter(c) || isDigit(c) || c == '_' || c == '.' {
			n++
			continue
		}
		if (c == '+' || c == '-') && n > 0 {
			prev := l.peek(n - 1)
			if (!hex && (prev == 'e' || prev == 'E')) || (hex && (prev == 'p' || prev == 'P')) {
				n++
				continue
			}
		}
		break
	}
	return l.emit(TokenNumber, n)
}

// readString reads a short string. An unterminated string leaves its quote
// as an OTHER token and lexing resumes after it.
func (l *Lexer) readString(quote byte) Token {
	for n := 1; l.pos+n < len(l.input); n++ {
		switch l.input[l.pos+n] {
		case '\\':
			n++
			if l.peek(n) == '\r' && l.peek(n+1) == '\n' {
				n++
			}
		case quote:
			return l.emit(TokenString, n+1)
		case '\n':
			return l.emit(TokenOther, 1)
		}
	}
	return l.emit(TokenOther, 1)
}

// readComment reads a short or long comment and classifies directives.
func (l *Lexer) readComment() Token {
	if l.peek(2) == '[' {
		if n := l.longBracket(l.pos + 2); n > 0 {
			return l.emit(TokenComment, n+2)
		}
	}

	lineEnd := 2
	for c := l.peek(lineEnd); c != '\n' && c != 0; c = l.peek(lineEnd) {
		lineEnd++
	}

	at := 2
	for l.peek(at) == ' ' || l.peek(at) == '\t' {
		at++
	}
	if l.peek(at) != '@' {
		return l.emit(TokenComment, lineEnd)
	}
	w := at + 1
	for isLetter(l.peek(w)) || isDigit(l.peek(w)) || l.peek(w) == '_' {
		w++
	}
	tt, ok := directives[l.input[l.pos+at+1:l.pos+w]]
	if !ok {
		return l.emit(TokenComment, lineEnd)
	}
	if tt == TokenMacroComment || tt == TokenAliasComment {
		// the definition that follows is lexed as ordinary tokens
		return l.emit(tt, w)
	}
	return l.emit(tt, lineEnd)
}

func (l *Lexer) longBracket(off int) int {
	return LongBracketLen(l.input[off:])
}

// LongBracketLen returns the length of a [[...]] / [==[...]==] block at the
// start of s, or 0 when s does not start with a complete long bracket.
func LongBracketLen(s string) int {
	if len(s) < 2 || s[0] != '[' {
		return 0
	}
	level := 1
	for level < len(s) && s[level] == '=' {
		level++
	}
	if level >= len(s) || s[level] != '[' {
		return 0
	}
	closing := "]" + s[1:level] + "]"
	for i := level + 1; i+len(closing) <= len(s); i++ {
		if s[i] == ']' && s[i:i+len(closing)] == closing {
			return i + len(closing)
		}
	}
	return 0
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == '\v'
}

// isLetter checks if character is ASCII letter
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

// isDigit checks if character is ASCII digit
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// IsDigit reports whether ch is an ASCII digit.
func IsDigit(ch byte) bool { return isDigit(ch) }

// IsIdentStart reports whether ch can start an identifier.
func IsIdentStart(ch byte) bool { return isLetter(ch) || ch == '_' }

// IsIdentPart reports whether ch can continue an identifier.
func IsIdentPart(ch byte) bool { return isLetter(ch) || isDigit(ch) || ch == '_' }
