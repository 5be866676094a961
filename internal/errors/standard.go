// Package errors provides standardized error values for dlua.
//
// Every fatal grammar violation found while building macro tables or
// expanding a file is reported as a *StandardError carrying the category,
// a stable code and the source position of the offending token.
package errors

import (
	"errors"
	"fmt"

	"github.com/dlua-lang/dlua/internal/position"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategorySyntax ErrorCategory = "SYNTAX"
	CategoryMacro  ErrorCategory = "MACRO"
	CategoryAlias  ErrorCategory = "ALIAS"
	CategoryLevel  ErrorCategory = "LEVEL"
	CategoryConfig ErrorCategory = "CONFIG"
)

// Error codes.
const (
	CodeMissingWhitespace    = "MISSING_WHITESPACE"
	CodeUnexpectedEOF        = "UNEXPECTED_EOF"
	CodeExpectedAssign       = "EXPECTED_ASSIGN"
	CodeExpectedName         = "EXPECTED_NAME"
	CodeExpectedLParen       = "EXPECTED_LPAREN"
	CodeExpectedRParen       = "EXPECTED_RPAREN"
	CodeUnterminatedTemplate = "UNTERMINATED_TEMPLATE"
	CodeBadIntroducer        = "BAD_INTRODUCER"
	CodeEmptyValue           = "EMPTY_VALUE"
	CodeArityMismatch        = "ARITY_MISMATCH"
	CodeUnterminatedCall     = "UNTERMINATED_CALL"
	CodeUndefinedAlias       = "UNDEFINED_ALIAS_TARGET"
	CodeShadowedAlias        = "SHADOWED_ALIAS_TARGET"
	CodeGlobalAlias          = "GLOBAL_ALIAS"
	CodeUnknownLevel         = "UNKNOWN_LEVEL"
	CodeUnmatchedEndIf       = "UNMATCHED_ENDIF"
	CodeMissingEndIf         = "MISSING_ENDIF"
	CodeVersionConstraint    = "VERSION_CONSTRAINT"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Pos      position.Position
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: [%s:%s] %s", e.Pos, e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, pos position.Position, context map[string]interface{}) *StandardError {
	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Pos:      pos,
	}
}

// IsCode reports whether err wraps a *StandardError with the given code.
func IsCode(err error, code string) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// Syntax reports a malformed directive.
func Syntax(pos position.Position, code, format string, args ...interface{}) *StandardError {
	return NewStandardError(CategorySyntax, code, fmt.Sprintf(format, args...), pos, nil)
}

// UnexpectedEOF reports a directive or call cut off by the end of the file.
func UnexpectedEOF(pos position.Position, after string) *StandardError {
	return NewStandardError(CategorySyntax, CodeUnexpectedEOF,
		fmt.Sprintf("unexpected end of file after %s", after),
		pos, map[string]interface{}{"after": after})
}

// ArityMismatch reports a macro call with the wrong number of arguments.
func ArityMismatch(pos position.Position, name string, want, got int) *StandardError {
	return NewStandardError(CategoryMacro, CodeArityMismatch,
		fmt.Sprintf("macro %s expects %d argument(s), got %d", name, want, got),
		pos, map[string]interface{}{"macro": name, "want": want, "got": got})
}

// UndefinedAliasTarget reports an alias whose target is not a visible macro.
func UndefinedAliasTarget(pos position.Position, alias, target, suggestion string) *StandardError {
	msg := fmt.Sprintf("alias %s: target macro %s is not defined", alias, target)
	if suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %s?)", suggestion)
	}
	return NewStandardError(CategoryAlias, CodeUndefinedAlias, msg,
		pos, map[string]interface{}{"alias": alias, "target": target})
}

// ShadowedAliasTarget reports an alias whose target is hidden by a binding.
func ShadowedAliasTarget(pos position.Position, alias, target string) *StandardError {
	return NewStandardError(CategoryAlias, CodeShadowedAlias,
		fmt.Sprintf("alias %s: target macro %s is shadowed by a local binding", alias, target),
		pos, map[string]interface{}{"alias": alias, "target": target})
}

// GlobalAlias reports an alias directive without the local qualifier.
func GlobalAlias(pos position.Position) *StandardError {
	return NewStandardError(CategoryAlias, CodeGlobalAlias,
		"aliases must be declared local", pos, nil)
}

// UnknownLevel reports an @if directive naming a level that is not configured.
func UnknownLevel(pos position.Position, level string) *StandardError {
	return NewStandardError(CategoryLevel, CodeUnknownLevel,
		fmt.Sprintf("unknown compile level %q", level),
		pos, map[string]interface{}{"level": level})
}
