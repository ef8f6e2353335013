// Package hooks provides the DDL lifecycle events fired around create and
// drop operations, the per-object listener registries, and the dispatcher
// that invokes them.
package hooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
)

// ErrUnknownEvent is returned when registering for an event name that is not
// one of the four DDL lifecycle events
var ErrUnknownEvent = errors.New("unknown ddl event")

// EventName is the name of a DDL lifecycle event
type EventName string

const (
	BeforeCreate EventName = "before_create"
	AfterCreate  EventName = "after_create"
	BeforeDrop   EventName = "before_drop"
	AfterDrop    EventName = "after_drop"
)

// Valid reports whether e is one of the lifecycle events
func (e EventName) Valid() bool {
	switch e {
	case BeforeCreate, AfterCreate, BeforeDrop, AfterDrop:
		return true
	default:
		return false
	}
}

// IsBefore reports whether e fires before the statements it surrounds
func (e EventName) IsBefore() bool {
	return e == BeforeCreate || e == BeforeDrop
}

// String returns the event name
func (e EventName) String() string {
	return string(e)
}

// ParseEventName converts a string to an EventName
func ParseEventName(s string) (EventName, error) {
	e := EventName(s)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return e, nil
}

// Scope is the granularity an event fires at
type Scope int

const (
	// ScopeObject fires for a single table, index or named schema
	ScopeObject Scope = iota
	// ScopeCollection fires once for a whole collection of objects
	ScopeCollection
)

// String returns the string representation of the scope
func (s Scope) String() string {
	switch s {
	case ScopeObject:
		return "object"
	case ScopeCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Target is anything listeners can be registered on. Each target owns its
// registry; there is no global listener table.
type Target interface {
	ObjectName() string
	Listeners() *Registry
}

// Bind is the backend connection an operation executes on
type Bind interface {
	Backend() dialect.Backend
	Exec(ctx context.Context, text string) error
}

// Runner identifies the create or drop operation that fired an event
type Runner interface {
	RunID() string
	Operation() string
}

// Event is the frozen context passed to every listener. Members is only set
// at collection scope, FromCollection only at object scope.
type Event struct {
	Name       EventName
	Scope      Scope
	Target     Target
	Runner     Runner
	Bind       Bind
	CheckFirst bool

	// Members is the ordered list of objects the collection operation covers
	Members []Target

	// FromCollection is true when an object event fires as part of a
	// collection-level create or drop
	FromCollection bool
}

// Listener is invoked when the event it is registered for fires. The two
// implementations are ListenerFunc and the DDL statement type of package ddl.
type Listener interface {
	Invoke(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a plain function to Listener
type ListenerFunc func(ctx context.Context, ev Event) error

// Invoke calls f
func (f ListenerFunc) Invoke(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Registry holds the listeners registered on one target, in registration
// order per event. The zero value is ready to use.
type Registry struct {
	listeners map[EventName][]Listener
}

// Add registers a listener for an event
func (r *Registry) Add(name EventName, l Listener) error {
	if !name.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, string(name))
	}
	if l == nil {
		return fmt.Errorf("nil listener for %s", name)
	}
	if r.listeners == nil {
		r.listeners = make(map[EventName][]Listener)
	}
	r.listeners[name] = append(r.listeners[name], l)
	return nil
}

// For returns a copy of the listeners registered for an event
func (r *Registry) For(name EventName) []Listener {
	ls := r.listeners[name]
	if len(ls) == 0 {
		return nil
	}
	out := make([]Listener, len(ls))
	copy(out, ls)
	return out
}

// Has returns true if any listener is registered for the event
func (r *Registry) Has(name EventName) bool {
	return len(r.listeners[name]) > 0
}

// Count returns the total number of registered listeners
func (r *Registry) Count() int {
	n := 0
	for _, ls := range r.listeners {
		n += len(ls)
	}
	return n
}

// Listen registers a listener on target
func Listen(target Target, name EventName, l Listener) error {
	return target.Listeners().Add(name, l)
}

// ListenFunc registers a plain function on target
func ListenFunc(target Target, name EventName, fn func(ctx context.Context, ev Event) error) error {
	return Listen(target, name, ListenerFunc(fn))
}
