// Package diagnostics defines the compiler's error taxonomy. Every stage
// reports failures as *DiagnosticError; the code prefix decides the phase.
package diagnostics

import (
	"errors"
	"fmt"

	"github.com/funvibe/watc/internal/token"
)

type ErrorCode string

// Lexer errors
const (
	ErrL001 ErrorCode = "L001" // unexpected character
	ErrL002 ErrorCode = "L002" // unterminated block comment
	ErrL003 ErrorCode = "L003" // malformed number literal
)

// Parser errors
const (
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // expected token not found
	ErrP003 ErrorCode = "P003" // invalid assignment target
	ErrP004 ErrorCode = "P004" // declaration not allowed here
	ErrP005 ErrorCode = "P005" // expression nesting too deep
)

// Semantic errors
const (
	ErrA001 ErrorCode = "A001" // undefined variable
	ErrA002 ErrorCode = "A002" // undefined function
	ErrA003 ErrorCode = "A003" // const reassignment
	ErrA004 ErrorCode = "A004" // assignment kind mismatch
	ErrA005 ErrorCode = "A005" // argument count mismatch
	ErrA006 ErrorCode = "A006" // argument kind mismatch
	ErrA007 ErrorCode = "A007" // modulo on float
	ErrA008 ErrorCode = "A008" // inconsistent return kinds
	ErrA009 ErrorCode = "A009" // break outside loop
	ErrA010 ErrorCode = "A010" // continue outside loop
	ErrA011 ErrorCode = "A011" // function used as a value
	ErrA012 ErrorCode = "A012" // return outside function
	ErrA013 ErrorCode = "A013" // duplicate or reserved function name
	ErrA014 ErrorCode = "A014" // kinds did not stabilise
)

// Internal errors are invariant violations inside the compiler itself.
const (
	ErrI001 ErrorCode = "I001"
)

type Phase int

const (
	PhaseInternal Phase = iota
	PhaseLexer
	PhaseParser
	PhaseSemantic
)

func (p Phase) String() string {
	switch p {
	case PhaseLexer:
		return "Lexer"
	case PhaseParser:
		return "Parser"
	case PhaseSemantic:
		return "Semantic"
	}
	return "Internal"
}

// Phase derives the pipeline phase from the code prefix.
func (c ErrorCode) Phase() Phase {
	if c == "" {
		return PhaseInternal
	}
	switch c[0] {
	case 'L':
		return PhaseLexer
	case 'P':
		return PhaseParser
	case 'A':
		return PhaseSemantic
	}
	return PhaseInternal
}

type DiagnosticError struct {
	Code    ErrorCode
	Token   token.Token
	File    string
	Message string
}

func NewError(code ErrorCode, tok token.Token, format string, args ...any) *DiagnosticError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &DiagnosticError{Code: code, Token: tok, Message: msg}
}

// AtLine builds an error that has no better anchor than a line number.
func AtLine(code ErrorCode, line int, format string, args ...any) *DiagnosticError {
	return NewError(code, token.Token{Line: line}, format, args...)
}

func (e *DiagnosticError) Phase() Phase { return e.Code.Phase() }

func (e *DiagnosticError) Line() int { return e.Token.Line }

func (e *DiagnosticError) Error() string {
	loc := fmt.Sprintf("line %d", e.Token.Line)
	if e.File != "" {
		loc = fmt.Sprintf("%s:%d", e.File, e.Token.Line)
	}
	return fmt.Sprintf("%s Error at %s [%s]: %s", e.Phase(), loc, e.Code, e.Message)
}

func phaseOf(err error) (Phase, bool) {
	var de *DiagnosticError
	if errors.As(err, &de) {
		return de.Phase(), true
	}
	return PhaseInternal, false
}

func IsLexError(err error) bool {
	p, ok := phaseOf(err)
	return ok && p == PhaseLexer
}

func IsParseError(err error) bool {
	p, ok := phaseOf(err)
	return ok && p == PhaseParser
}

func IsSemanticError(err error) bool {
	p, ok := phaseOf(err)
	return ok && p == PhaseSemantic
}

// CodeOf returns the diagnostic code carried by err, or "".
func CodeOf(err error) ErrorCode {
	var de *DiagnosticError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
