package ddl

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/codegen"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/predicate"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// ErrNoConnection is returned when a statement is invoked by an event that
// carries no connection
var ErrNoConnection = errors.New("ddl statement invoked without a connection")

type constraintOp int

const (
	opText constraintOp = iota
	opAddConstraint
	opDropConstraint
)

// Statement is an immutable DDL statement that can be registered as an
// event listener. Against and ExecuteIf return derived copies, so one
// statement can serve as a template for many targets.
type Statement struct {
	text       string
	overrides  map[string]string
	target     hooks.Target
	condition  predicate.Predicate
	op         constraintOp
	constraint schema.Constraint
}

// NewStatement creates a text statement. The template may use %(table)s,
// %(schema)s, %(fullname)s and any key of overrides.
func NewStatement(text string, overrides map[string]string) *Statement {
	return &Statement{text: text, overrides: copyOverrides(overrides)}
}

// AddConstraint creates a statement adding c to its table with ALTER TABLE
func AddConstraint(c schema.Constraint) *Statement {
	return &Statement{op: opAddConstraint, constraint: c}
}

// DropConstraint creates a statement dropping c from its table with ALTER TABLE
func DropConstraint(c schema.Constraint) *Statement {
	return &Statement{op: opDropConstraint, constraint: c}
}

// Text returns the template text; empty for constraint statements
func (s *Statement) Text() string { return s.text }

// Overrides returns a copy of the override map
func (s *Statement) Overrides() map[string]string { return copyOverrides(s.overrides) }

// Target returns the bound target, nil when the event target is used
func (s *Statement) Target() hooks.Target { return s.target }

// Condition returns the execution condition
func (s *Statement) Condition() predicate.Predicate { return s.condition }

// Against returns a copy bound to target. A bound statement renders
// against target regardless of the event it is invoked for.
func (s *Statement) Against(target hooks.Target) *Statement {
	c := s.clone()
	c.target = target
	return c
}

// ExecuteIf returns a copy gated by p. A statement carries at most one
// condition; attaching a second returns a *predicate.ConflictError.
func (s *Statement) ExecuteIf(p predicate.Predicate) (*Statement, error) {
	next, err := s.condition.Attach(p)
	if err != nil {
		return nil, fmt.Errorf("execute_if: %w", err)
	}
	c := s.clone()
	c.condition = next
	return c, nil
}

// MustExecuteIf is like ExecuteIf but panics on a conflicting condition
func (s *Statement) MustExecuteIf(p predicate.Predicate) *Statement {
	c, err := s.ExecuteIf(p)
	if err != nil {
		panic(err)
	}
	return c
}

// Invoke implements hooks.Listener. The condition is evaluated in
// standalone mode against the event's connection; when it passes, the
// statement is rendered for the target and executed.
func (s *Statement) Invoke(ctx context.Context, ev hooks.Event) error {
	if ev.Bind == nil {
		return ErrNoConnection
	}

	target := s.target
	if target == nil {
		target = ev.Target
	}

	ok, err := s.condition.ShouldExecute(predicate.Call{
		Construct: s,
		Target:    target,
		Backend:   ev.Bind.Backend(),
		Mode:      predicate.Standalone{Conn: ev.Bind},
	})
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	text, err := s.compile(ev, target)
	if err != nil {
		return err
	}
	return ev.Bind.Exec(ctx, text)
}

// Compile renders the statement for target using compiler's backend
func (s *Statement) Compile(compiler Compiler, target hooks.Target) (string, error) {
	switch s.op {
	case opAddConstraint:
		return compiler.AddConstraint(s.constraint)
	case opDropConstraint:
		return compiler.DropConstraint(s.constraint)
	default:
		if s.target != nil {
			target = s.target
		}
		return Render(s.text, target, s.overrides, compiler.Backend())
	}
}

func (s *Statement) compile(ev hooks.Event, target hooks.Target) (string, error) {
	if s.op == opText {
		return Render(s.text, target, s.overrides, ev.Bind.Backend())
	}

	var compiler Compiler
	if src, ok := ev.Runner.(compilerSource); ok {
		compiler = src.Compiler()
	} else {
		compiler = codegen.NewDDLGenerator(ev.Bind.Backend())
	}
	return s.Compile(compiler, target)
}

func (s *Statement) clone() *Statement {
	c := *s
	c.overrides = copyOverrides(s.overrides)
	return &c
}

func copyOverrides(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
