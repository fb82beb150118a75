package vm

import (
	"errors"
	"fmt"
	"strings"
)

// CompileErrorKind names a class of compile error.
type CompileErrorKind string

const (
	UnsupportedConstruct   CompileErrorKind = "UnsupportedConstruct"
	InvalidAssignment      CompileErrorKind = "InvalidAssignment"
	ConstReassignment      CompileErrorKind = "ConstReassignment"
	LoopControlOutsideLoop CompileErrorKind = "LoopControlOutsideLoop"
	ReturnOutsideFunction  CompileErrorKind = "ReturnOutsideFunction"
	ThisOutsideClass       CompileErrorKind = "ThisOutsideClass"
	SuperOutsideSubclass   CompileErrorKind = "SuperOutsideSubclass"
	DuplicateDeclaration   CompileErrorKind = "DuplicateDeclaration"
	TooManyLocals          CompileErrorKind = "TooManyLocals"
)

// CompileError is returned by Compile for malformed or unsupported trees.
type CompileError struct {
	Kind    CompileErrorKind
	Message string
	Line    int
	Column  int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: compile error [%s]: %s", e.Line, e.Column, e.Kind, e.Message)
}

// ErrorKind names a class of runtime error.
type ErrorKind string

const (
	TypeError         ErrorKind = "TypeError"
	UndefinedVariable ErrorKind = "UndefinedVariable"
	DivisionByZero    ErrorKind = "DivisionByZero"
	IndexOutOfBounds  ErrorKind = "IndexOutOfBounds"
	ArityMismatch     ErrorKind = "ArityMismatch"
	NotCallable       ErrorKind = "NotCallable"
	NotIndexable      ErrorKind = "NotIndexable"
	NotIterable       ErrorKind = "NotIterable"
	UndefinedProperty ErrorKind = "UndefinedProperty"
	InheritanceError  ErrorKind = "InheritanceError"
	StackOverflow     ErrorKind = "StackOverflow"
	ImportError       ErrorKind = "ImportError"
	MatchError        ErrorKind = "MatchError"
	ConstAssignment   ErrorKind = "ConstAssignment"
	Cancelled         ErrorKind = "Cancelled"
	// HostError is returned by Go functions bound into the VM.
	HostError         ErrorKind = "HostError"
	// UncaughtException wraps a thrown value nobody caught.
	UncaughtException ErrorKind = "UncaughtException"
)

var knownKinds = map[ErrorKind]bool{
	TypeError: true, UndefinedVariable: true, DivisionByZero: true,
	IndexOutOfBounds: true, ArityMismatch: true, NotCallable: true,
	NotIndexable: true, NotIterable: true, UndefinedProperty: true,
	InheritanceError: true, StackOverflow: true, ImportError: true,
	MatchError: true, ConstAssignment: true, Cancelled: true,
	HostError: true,
}

// RuntimeError ends a run. Column is always 0: chunks only keep lines.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	Line    int
	Column  int
	// Value is the thrown value for UncaughtException (and for runtime
	// errors that passed through a handler as an Error instance).
	Value Value
	Trace []string

	// thrown marks a user throw in flight; handlers receive Value as is
	thrown bool
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d: ", e.Line)
	}
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	return sb.String()
}

// Is matches another *RuntimeError by kind, so errors.Is(err,
// &RuntimeError{Kind: DivisionByZero}) works.
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	return ok && t.Kind == e.Kind && t.Message == ""
}

// StackTrace renders the trace one frame per line.
func (e *RuntimeError) StackTrace() string {
	return strings.Join(e.Trace, "\n")
}

// KindOf extracts the runtime kind of err, or "" if it is not a runtime error.
func KindOf(err error) ErrorKind {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// raise is a runtime error that has not been positioned yet. Natives return
// these; the dispatch loop fills in the line and routes them to handlers.
// NewRuntimeError builds an error natives can return. Scripts may catch
// it like any other runtime error.
func NewRuntimeError(kind ErrorKind, format string, args ...interface{}) *RuntimeError {
	return raise(kind, format, args...)
}

func raise(kind ErrorKind, format string, args ...interface{}) *RuntimeError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &RuntimeError{Kind: kind, Message: msg}
}

// throwValue is the error produced by a throw statement.
func throwValue(v Value) *RuntimeError {
	msg := v.String()
	if inst := v.AsInstance(); inst != nil {
		if m, ok := inst.Get("message"); ok {
			msg = m.String()
		}
	}
	return &RuntimeError{Kind: UncaughtException, Message: msg, Value: v, thrown: true}
}

// internal faults that indicate malformed bytecode rather than user errors
var (
	errStackUnderflow = errors.New("vm: stack underflow")
	errNoHandler      = errors.New("vm: end of finally with no pending completion")
)
