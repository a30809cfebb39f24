// Package errs implements the error taxonomy and cause-chain propagation
// of spec §7. `again` and `end` are control-flow signals, not errors: they
// are represented as sentinel values (Again, End) that callers compare
// with errors.Is, and they never append a Cause.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed taxonomy of spec §7.
type Kind int

const (
	InvalidArgument Kind = iota
	MemoryError
	Unsupported
	DecodeError
	SchemaError
	TimeRegression
	IncomparableClocks
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case MemoryError:
		return "memory_error"
	case Unsupported:
		return "unsupported"
	case DecodeError:
		return "decode_error"
	case SchemaError:
		return "schema_error"
	case TimeRegression:
		return "time_regression"
	case IncomparableClocks:
		return "incomparable_clocks"
	default:
		return "unknown"
	}
}

// Again and End are control-flow sentinels, never wrapped with a Cause.
var (
	Again = errors.New("again")
	End   = errors.New("end")
)

// Cause is one entry of the error chain: component name, component-class
// name, source location, message.
type Cause struct {
	Component      string
	ComponentClass string
	File           string
	Line           int
	Kind           Kind
	Message        string
}

func (c Cause) String() string {
	return fmt.Sprintf("%s(%s) %s:%d [%s] %s", c.Component, c.ComponentClass, c.File, c.Line, c.Kind, c.Message)
}

// Error is a Kind-tagged error carrying a Cause chain. The chain is a
// LIFO: Chain[0] is the most recently appended (innermost) cause.
type Error struct {
	Kind  Kind
	Chain []Cause
	err   error // wrapped via github.com/pkg/errors for stack-aware formatting
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, err: errors.Errorf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return New(kind, format, args...)
	}
	return &Error{Kind: kind, err: errors.Wrapf(err, format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Append pushes a new Cause onto the front of the chain (LIFO) and
// returns the same error for chaining, mirroring §7's "append a
// structured error cause" propagation rule. Never call Append for
// Again/End -- they carry no cause.
func (e *Error) Append(component, componentClass, file string, line int, msg string) *Error {
	e.Chain = append([]Cause{{
		Component:      component,
		ComponentClass: componentClass,
		File:           file,
		Line:           line,
		Kind:           e.Kind,
		Message:        msg,
	}}, e.Chain...)
	return e
}

// Drain returns the accumulated chain and clears it, modeling the
// top-level caller draining the thread-local LIFO (§7). Callers own a
// *Chain (see chain.go) rather than a true thread-local -- see
// DESIGN.md for why that substitution is faithful under the §5
// single-threaded-cooperative scheduling contract.
func (e *Error) Drain() []Cause {
	c := e.Chain
	e.Chain = nil
	return c
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsAgain(err error) bool { return errors.Is(err, Again) }
func IsEnd(err error) bool   { return errors.Is(err, End) }
