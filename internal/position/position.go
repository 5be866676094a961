// Package position provides source position tracking for dlua. Tokens carry
// the position they start at so that macro errors can point at the exact
// directive or call site that failed.
package position

import (
	"fmt"
	"strings"
)

// Position represents a single point in source code
type Position struct {
	Filename string // Source file name
	Line     int    // 1-based line number
	Column   int    // 1-based column number (bytes)
	Offset   int    // 0-based byte offset in source
}

// Start returns the first position of the named file.
func Start(filename string) Position {
	return Position{Filename: filename, Line: 1, Column: 1}
}

// IsValid returns true if the position is valid
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0 && p.Offset >= 0
}

// String returns a string representation of the position
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Advance returns the position reached after consuming text from p.
func (p Position) Advance(text string) Position {
	p.Offset += len(text)
	if n := strings.Count(text, "\n"); n > 0 {
		p.Line += n
		p.Column = len(text) - strings.LastIndexByte(text, '\n')
		return p
	}
	p.Column += len(text)
	return p
}
