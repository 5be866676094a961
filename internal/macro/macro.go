// Package macro implements the dlua macro system: the per-file table of
// global macros, the directive grammar shared by both passes, and the
// scope-aware expander that rewrites macro use sites.
package macro

import (
	"sort"
	"strings"

	"github.com/dlua-lang/dlua/internal/lexer"
)

// Macro is a named text-substitution rule. A value macro is emitted as is;
// a function macro is invoked with an argument list, possibly empty.
type Macro struct {
	Params   []string
	Template string
	Func     bool
}

// IsValue reports whether m is used without an argument list.
func (m Macro) IsValue() bool { return !m.Func && len(m.Params) == 0 }

// Clone returns a copy of m that shares no storage with it.
func (m Macro) Clone() Macro {
	c := m
	c.Params = append([]string(nil), m.Params...)
	return c
}

// Expand substitutes args for the parameters of m. The template is scanned
// once: every identifier-shaped run equal to a parameter name is replaced,
// so a parameter w never touches scroller_width. String literals inside the
// template are copied untouched. Missing arguments leave their parameter in
// place.
func (m Macro) Expand(args []string) string {
	if len(m.Params) == 0 {
		return m.Template
	}

	index := make(map[string]int, len(m.Params))
	for i, p := range m.Params {
		if _, dup := index[p]; !dup {
			index[p] = i
		}
	}

	t := m.Template
	var b strings.Builder
	b.Grow(len(t))
	for i := 0; i < len(t); {
		c := t[i]
		switch {
		case lexer.IsIdentStart(c):
			j := i + 1
			for j < len(t) && lexer.IsIdentPart(t[j]) {
				j++
			}
			word := t[i:j]
			if k, ok := index[word]; ok && k < len(args) {
				b.WriteString(args[k])
			} else {
				b.WriteString(word)
			}
			i = j
		case lexer.IsDigit(c):
			// 1e10, 0x1f: the tail of a number is never a parameter
			j := i + 1
			for j < len(t) && (lexer.IsIdentPart(t[j]) || t[j] == '.') {
				j++
			}
			b.WriteString(t[i:j])
			i = j
		case c == '"' || c == '\'':
			j := skipQuoted(t, i)
			b.WriteString(t[i:j])
			i = j
		case c == '[':
			j := i + lexer.LongBracketLen(t[i:])
			if j == i {
				j = i + 1
			}
			b.WriteString(t[i:j])
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// skipQuoted returns the offset just past the short string starting at i,
// or the end of s when the string is unterminated.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return len(s)
}

// Table maps macro names to definitions.
type Table map[string]Macro

// Names returns the macro names of t, sorted.
func (t Table) Names() []string {
	out := make([]string, 0, len(t))
	for n := range t {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Merge builds the table visible at the global scope of a file: the
// exports of every file it requires, in order, then its own definitions.
// Later entries win, so a file's own macro overrides an imported one.
func Merge(own Table, imports ...Table) Table {
	n := len(own)
	for _, t := range imports {
		n += len(t)
	}
	merged := make(Table, n)
	for _, t := range imports {
		for name, m := range t {
			merged[name] = m
		}
	}
	for name, m := range own {
		merged[name] = m
	}
	return merged
}
