package svsim

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the category of a failure raised by the core, matching
// the tagged union in the failure-semantics table.
type Kind int

const (
	// KindSyntaxError: the lexer/parser encountered malformed input.
	KindSyntaxError Kind = iota + 1
	// KindUnsupportedConstruct: input is well-formed but outside the
	// supported subset.
	KindUnsupportedConstruct
	// KindModuleNotFound: the resolver could not locate a referenced
	// module's source file.
	KindModuleNotFound
	// KindRomDataMissing: a ROM primitive's data file could not be found.
	KindRomDataMissing
	// KindPortWidthMismatch: an input binding's width disagrees with the
	// declared port width.
	KindPortWidthMismatch
	// KindUndefinedIdentifier: an expression referenced an identifier not
	// present in the signal environment.
	KindUndefinedIdentifier
	// KindIndexOut: a bit-select or range-select index fell outside the
	// operand's width.
	KindIndexOut
	// KindWidthMismatch: a concatenation component's width could not be
	// determined.
	KindWidthMismatch
	// KindCombinationalCycle: the dataflow fixpoint did not converge.
	KindCombinationalCycle
)

func (k Kind) String() string {
	switch k {
	case KindSyntaxError:
		return "SyntaxError"
	case KindUnsupportedConstruct:
		return "UnsupportedConstruct"
	case KindModuleNotFound:
		return "ModuleNotFound"
	case KindRomDataMissing:
		return "RomDataMissing"
	case KindPortWidthMismatch:
		return "PortWidthMismatch"
	case KindUndefinedIdentifier:
		return "UndefinedIdentifier"
	case KindIndexOut:
		return "IndexOut"
	case KindWidthMismatch:
		return "WidthMismatch"
	case KindCombinationalCycle:
		return "CombinationalCycle"
	default:
		return "Unknown"
	}
}

// Location pins an Error to a place in source or in the module hierarchy.
// Line and Column are 1-based; zero means "not applicable".
type Location struct {
	File     string
	Module   string
	Line     int
	Column   int
}

func (l Location) String() string {
	if l.File == "" && l.Module == "" {
		return ""
	}
	s := l.File
	if l.Module != "" {
		if s != "" {
			s += ":"
		}
		s += l.Module
	}
	if l.Line > 0 {
		s += fmt.Sprintf(":%d", l.Line)
		if l.Column > 0 {
			s += fmt.Sprintf(":%d", l.Column)
		}
	}
	return s
}

// Error is the concrete tagged-union error type every fallible core
// operation returns (§7). Wrap an underlying error with wrapErr to keep
// the original cause in the chain for errors.Unwrap/errors.Cause.
type Error struct {
	Kind     Kind
	Loc      Location
	Message  string
	cause    error
}

func (e *Error) Error() string {
	loc := e.Loc.String()
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, loc, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// newErr builds a fresh *Error, using errors.Errorf so its cause carries
// a stack trace from the construction site the way every other pkg/errors
// call in this package does.
func newErr(kind Kind, loc Location, format string, args ...interface{}) *Error {
	err := errors.Errorf(format, args...)
	return &Error{Kind: kind, Loc: loc, Message: err.Error(), cause: err}
}

// wrapErr builds an *Error that wraps a lower-level cause (e.g. a file
// read failure surfacing out of the resolver). The pkg/errors.Wrapf result
// itself becomes the cause, not the original error, so Unwrap descends
// through the wrap site's stack trace and message before reaching the
// original cause, and errors.Cause/errors.Is still see the full chain.
func wrapErr(kind Kind, loc Location, cause error, format string, args ...interface{}) *Error {
	wrapped := errors.Wrapf(cause, format, args...)
	return &Error{Kind: kind, Loc: loc, Message: wrapped.Error(), cause: wrapped}
}
