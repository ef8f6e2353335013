// Package predicate implements the conditions that decide whether a DDL
// statement or an inline clause is emitted for a given backend.
package predicate

import (
	"errors"
	"fmt"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
)

// ErrConflict is matched by ConflictError
var ErrConflict = errors.New("execution condition already set")

// Kind is the type of condition a predicate carries
type Kind int

const (
	KindNone Kind = iota
	KindBackend
	KindCallable
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBackend:
		return "backend"
	case KindCallable:
		return "callable"
	default:
		return "unknown"
	}
}

// ConflictError is returned when a second condition is attached to
// something that already has one
type ConflictError struct {
	Existing  Kind
	Attempted Kind
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: cannot attach %s condition over existing %s condition",
		ErrConflict.Error(), e.Attempted, e.Existing)
}

// Is lets errors.Is match ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Named is the object a predicate is evaluated against
type Named interface {
	ObjectName() string
}

// Compiler is the statement compiler active when a clause is evaluated inline
type Compiler interface {
	Backend() dialect.Backend
}

// Mode tells a callable whether it runs for a standalone statement or for
// a clause embedded in a larger statement being compiled
type Mode interface {
	isMode()
}

// Standalone is the mode of a statement executed on its own connection
type Standalone struct {
	Conn hooks.Bind
}

// Inline is the mode of a clause rendered inside another statement
type Inline struct {
	Compiler Compiler
}

func (Standalone) isMode() {}
func (Inline) isMode()     {}

// Call is the per-evaluation context handed to a condition
type Call struct {
	// Construct is the statement or clause being gated
	Construct any
	Target    Named
	Backend   dialect.Backend
	Mode      Mode

	// State is the opaque value configured with the condition, nil if none
	State any
}

// Conn returns the connection for standalone evaluation, nil when inline
func (c Call) Conn() hooks.Bind {
	if s, ok := c.Mode.(Standalone); ok {
		return s.Conn
	}
	return nil
}

// Compiler returns the active compiler for inline evaluation, nil when standalone
func (c Call) Compiler() Compiler {
	if in, ok := c.Mode.(Inline); ok {
		return in.Compiler
	}
	return nil
}

// Func is a user-supplied condition
type Func func(call Call) (bool, error)

// Predicate is a single execution condition. The zero value has no
// condition and always allows execution.
type Predicate struct {
	kind  Kind
	names []string
	fn    Func
	state any
}

// OnBackend allows execution only when the backend name matches one of
// names exactly. With no names nothing matches.
func OnBackend(names ...string) Predicate {
	n := make([]string, len(names))
	copy(n, names)
	return Predicate{kind: KindBackend, names: n}
}

// When allows execution when fn returns true
func When(fn Func) Predicate {
	return Predicate{kind: KindCallable, fn: fn}
}

// WhenWithState is When with an opaque value passed through to fn as Call.State
func WhenWithState(fn Func, state any) Predicate {
	return Predicate{kind: KindCallable, fn: fn, state: state}
}

// Kind returns the kind of condition carried
func (p Predicate) Kind() Kind {
	return p.kind
}

// IsZero reports whether p carries no condition
func (p Predicate) IsZero() bool {
	return p.kind == KindNone
}

// Backends returns the backend names of a backend condition
func (p Predicate) Backends() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Attach returns p with next attached. Only one condition may be active,
// so attaching onto a non-empty predicate is a ConflictError.
func (p Predicate) Attach(next Predicate) (Predicate, error) {
	if next.IsZero() {
		return p, nil
	}
	if !p.IsZero() {
		return p, &ConflictError{Existing: p.kind, Attempted: next.kind}
	}
	if next.kind == KindCallable && next.fn == nil {
		return p, fmt.Errorf("callable condition has no function")
	}
	return next, nil
}

// ShouldExecute evaluates the condition. Errors from a callable are
// returned unchanged.
func (p Predicate) ShouldExecute(call Call) (bool, error) {
	switch p.kind {
	case KindNone:
		return true, nil
	case KindBackend:
		if call.Backend == nil {
			return false, nil
		}
		name := call.Backend.Name()
		for _, n := range p.names {
			if n == name {
				return true, nil
			}
		}
		return false, nil
	case KindCallable:
		call.State = p.state
		return p.fn(call)
	default:
		return false, fmt.Errorf("unknown condition kind %d", p.kind)
	}
}
