package codegen

import (
	"fmt"
	"strings"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// constraintClause generates the clause used both inside CREATE TABLE and
// after ALTER TABLE ... ADD
func (g *DDLGenerator) constraintClause(c schema.Constraint) (string, error) {
	var body string
	switch c := c.(type) {
	case *schema.CheckConstraint:
		body = fmt.Sprintf("CHECK (%s)", c.Expr)
	case *schema.UniqueConstraint:
		body = fmt.Sprintf("UNIQUE (%s)", g.columnList(c.Columns))
	case *schema.ForeignKey:
		clause, err := g.foreignKeyClause(c)
		if err != nil {
			return "", err
		}
		body = clause
	default:
		return "", fmt.Errorf("unsupported constraint type %T", c)
	}

	if name := c.ObjectName(); name != "" {
		return fmt.Sprintf("CONSTRAINT %s %s", g.quote(name), body), nil
	}
	return body, nil
}

// foreignKeyClause generates FOREIGN KEY ... REFERENCES with its actions
func (g *DDLGenerator) foreignKeyClause(fk *schema.ForeignKey) (string, error) {
	if fk.RefTable == nil {
		return "", fmt.Errorf("foreign key %s has no referenced table", fk.Name)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		g.columnList(fk.Columns), g.tableName(fk.RefTable), g.columnList(fk.RefColumns)))

	if action := fk.OnDelete.SQL(); action != "" {
		b.WriteString(" ON DELETE ")
		b.WriteString(action)
	}
	if action := fk.OnUpdate.SQL(); action != "" {
		b.WriteString(" ON UPDATE ")
		b.WriteString(action)
	}
	return b.String(), nil
}

// AddConstraint generates ALTER TABLE ... ADD for a constraint
func (g *DDLGenerator) AddConstraint(c schema.Constraint) (string, error) {
	t, err := g.alterTarget(c)
	if err != nil {
		return "", err
	}
	clause, err := g.constraintClause(c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", g.tableName(t), clause), nil
}

// DropConstraint generates ALTER TABLE ... DROP for a named constraint.
// MySQL drops each constraint kind with its own keyword.
func (g *DDLGenerator) DropConstraint(c schema.Constraint) (string, error) {
	t, err := g.alterTarget(c)
	if err != nil {
		return "", err
	}
	if c.ObjectName() == "" {
		return "", fmt.Errorf("cannot drop unnamed constraint on %s", t.FullName())
	}

	keyword := "CONSTRAINT"
	if g.flavor == flavorMySQL {
		switch c.(type) {
		case *schema.ForeignKey:
			keyword = "FOREIGN KEY"
		case *schema.UniqueConstraint:
			keyword = "INDEX"
		case *schema.CheckConstraint:
			keyword = "CHECK"
		}
	}
	return fmt.Sprintf("ALTER TABLE %s DROP %s %s;", g.tableName(t), keyword, g.quote(c.ObjectName())), nil
}

func (g *DDLGenerator) alterTarget(c schema.Constraint) (*schema.Table, error) {
	if c == nil {
		return nil, fmt.Errorf("constraint cannot be nil")
	}
	if !g.backend.SupportsAlterConstraint() {
		return nil, fmt.Errorf("alter constraint %s: %w", c.ObjectName(), ErrUnsupported)
	}
	t := c.Table()
	if t == nil {
		return nil, fmt.Errorf("constraint %s is not attached to a table", c.ObjectName())
	}
	return t, nil
}
