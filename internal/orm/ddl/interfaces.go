// Package ddl runs create and drop operations over schema objects: it fires
// the lifecycle events, evaluates execution conditions, renders statement
// templates and sends the surviving statements to an executor.
package ddl

import (
	"context"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// Compiler turns schema objects into backend-specific DDL text. Inline
// conditional clauses are evaluated while compiling CREATE TABLE.
type Compiler interface {
	Backend() dialect.Backend

	// CreateTable compiles CREATE TABLE. Foreign keys in deferred are left
	// out; they are added later with AddConstraint.
	CreateTable(t *schema.Table, deferred []*schema.ForeignKey) (string, error)
	DropTable(t *schema.Table) (string, error)
	CreateIndex(ix *schema.Index) (string, error)
	DropIndex(ix *schema.Index) (string, error)
	CreateNamespace(ns *schema.Namespace) (string, error)
	DropNamespace(ns *schema.Namespace) (string, error)
	AddConstraint(c schema.Constraint) (string, error)
	DropConstraint(c schema.Constraint) (string, error)
}

// CompilerFactory returns the compiler for a backend
type CompilerFactory func(backend dialect.Backend) (Compiler, error)

// Executor sends statements to a backend within the caller's transaction
// and answers existence queries for checkfirst
type Executor interface {
	hooks.Bind

	Exists(ctx context.Context, el schema.Element) (bool, error)
}

// compilerSource is implemented by the run passed to listeners as the
// event's Runner
type compilerSource interface {
	Compiler() Compiler
}
