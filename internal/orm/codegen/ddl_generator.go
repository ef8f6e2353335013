package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/predicate"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// ErrUnsupported is returned for DDL the backend cannot express
var ErrUnsupported = errors.New("not supported by backend")

// DDLGenerator compiles CREATE and DROP statements for one backend.
// Identifiers are quoted only when the backend says they need it.
type DDLGenerator struct {
	backend    dialect.Backend
	flavor     flavor
	typeMapper *TypeMapper
}

// NewDDLGenerator creates a new DDL generator for backend
func NewDDLGenerator(backend dialect.Backend) *DDLGenerator {
	return &DDLGenerator{
		backend:    backend,
		flavor:     flavorOf(backend),
		typeMapper: NewTypeMapper(backend),
	}
}

// Backend returns the backend statements are compiled for
func (g *DDLGenerator) Backend() dialect.Backend {
	return g.backend
}

// CreateTable generates a CREATE TABLE statement. Check and unique
// constraints whose condition fails for this backend are left out, as are
// the foreign keys in deferred.
func (g *DDLGenerator) CreateTable(t *schema.Table, deferred []*schema.ForeignKey) (string, error) {
	if t == nil {
		return "", fmt.Errorf("table cannot be nil")
	}

	var defs []string
	inlinePK := false
	for _, col := range t.Columns {
		def, err := g.columnDefinition(col)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		if col.Autoincrement && g.flavor == flavorSQLite {
			inlinePK = true
		}
		defs = append(defs, def)
	}

	if pk := t.PrimaryKey(); len(pk) > 0 && !inlinePK {
		names := make([]string, len(pk))
		for i, c := range pk {
			names[i] = c.Name
		}
		defs = append(defs, "PRIMARY KEY ("+g.columnList(names)+")")
	}

	skip := make(map[*schema.ForeignKey]bool, len(deferred))
	for _, fk := range deferred {
		skip[fk] = true
	}

	for _, c := range t.Constraints {
		if fk, ok := c.(*schema.ForeignKey); ok && skip[fk] {
			continue
		}
		include, err := g.inlineAllowed(c)
		if err != nil {
			return "", err
		}
		if !include {
			continue
		}
		clause, err := g.constraintClause(c)
		if err != nil {
			return "", err
		}
		defs = append(defs, clause)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", g.tableName(t)))
	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return b.String(), nil
}

// inlineAllowed evaluates a clause's condition with the generator as the
// active compiler. Errors from the condition are returned unchanged.
func (g *DDLGenerator) inlineAllowed(c schema.Constraint) (bool, error) {
	cond := c.Condition()
	if cond.IsZero() {
		return true, nil
	}
	return cond.ShouldExecute(predicate.Call{
		Construct: c,
		Target:    c,
		Backend:   g.backend,
		Mode:      predicate.Inline{Compiler: g},
	})
}

// columnDefinition generates a column definition
func (g *DDLGenerator) columnDefinition(col *schema.Column) (string, error) {
	columnType, err := g.typeMapper.MapType(col)
	if err != nil {
		return "", fmt.Errorf("mapping type: %w", err)
	}

	parts := []string{g.quote(col.Name), columnType}
	if n := g.typeMapper.MapNullability(col); n != "" {
		parts = append(parts, n)
	}
	if d := g.typeMapper.MapDefault(col); d != "" {
		parts = append(parts, d)
	}
	if a := g.typeMapper.inlineAutoincrement(col); a != "" {
		parts = append(parts, a)
	}
	return strings.Join(parts, " "), nil
}

// DropTable generates a DROP TABLE statement
func (g *DDLGenerator) DropTable(t *schema.Table) (string, error) {
	if t == nil {
		return "", fmt.Errorf("table cannot be nil")
	}
	return fmt.Sprintf("DROP TABLE %s;", g.tableName(t)), nil
}

// CreateNamespace generates a CREATE SCHEMA statement
func (g *DDLGenerator) CreateNamespace(ns *schema.Namespace) (string, error) {
	if g.flavor == flavorSQLite {
		return "", fmt.Errorf("create schema %s: %w", ns.Name, ErrUnsupported)
	}
	return fmt.Sprintf("CREATE SCHEMA %s;", g.quote(ns.Name)), nil
}

// DropNamespace generates a DROP SCHEMA statement
func (g *DDLGenerator) DropNamespace(ns *schema.Namespace) (string, error) {
	if g.flavor == flavorSQLite {
		return "", fmt.Errorf("drop schema %s: %w", ns.Name, ErrUnsupported)
	}
	return fmt.Sprintf("DROP SCHEMA %s;", g.quote(ns.Name)), nil
}

// quote quotes an identifier if the backend requires it
func (g *DDLGenerator) quote(name string) string {
	if g.backend.NeedsQuoting(name) {
		return g.backend.Quote(name)
	}
	return name
}

// tableName returns the schema-qualified, quoted table name
func (g *DDLGenerator) tableName(t *schema.Table) string {
	if t.Schema == "" {
		return g.quote(t.Name)
	}
	return g.quote(t.Schema) + "." + g.quote(t.Name)
}

func (g *DDLGenerator) columnList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = g.quote(n)
	}
	return strings.Join(quoted, ", ")
}
