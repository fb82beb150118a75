package diagnostics

import (
	"fmt"

	"github.com/solisoft/soli/internal/token"
)

type ErrorCode string

const (
	// Lexer
	ErrL001 ErrorCode = "L001" // illegal character
	ErrL002 ErrorCode = "L002" // unterminated string or comment

	// Parser
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // no prefix parse function
	ErrP003 ErrorCode = "P003" // invalid assignment target
	ErrP004 ErrorCode = "P004" // malformed declaration
	ErrP005 ErrorCode = "P005" // invalid literal
	ErrP006 ErrorCode = "P006" // construct not allowed here

	// Compiler and runtime, when surfaced through the pipeline
	ErrC001 ErrorCode = "C001"
	ErrR001 ErrorCode = "R001"
)

var descriptions = map[ErrorCode]string{
	ErrL001: "illegal character",
	ErrL002: "unterminated literal",
	ErrP001: "unexpected token",
	ErrP002: "unexpected expression start",
	ErrP003: "invalid assignment target",
	ErrP004: "malformed declaration",
	ErrP005: "invalid literal",
	ErrP006: "not allowed here",
	ErrC001: "compile error",
	ErrR001: "runtime error",
}

// DiagnosticError is a front-end error tied to a token position.
type DiagnosticError struct {
	Code    ErrorCode
	Token   token.Token
	Message string
	File    string
	// Cause is the compile or runtime error this diagnostic reports, if any.
	Cause error
}

func NewError(code ErrorCode, tok token.Token, format string, args ...interface{}) *DiagnosticError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &DiagnosticError{Code: code, Token: tok, Message: msg}
}

func (e *DiagnosticError) Error() string {
	loc := fmt.Sprintf("%d:%d", e.Token.Line, e.Token.Column)
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: error [%s]: %s", loc, e.Code, e.Message)
}

func (e *DiagnosticError) Unwrap() error { return e.Cause }

// Description returns the short description for a code.
func (c ErrorCode) Description() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return string(c)
}
