package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a table validation error with context
type ValidationError struct {
	Table   string
	Element string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Table != "" {
		b.WriteString(e.Table)
		if e.Element != "" {
			b.WriteString(".")
			b.WriteString(e.Element)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// Validator validates table definitions
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTable validates a single table without cross-table checks.
// Foreign keys may reference tables that are added later.
func (v *Validator) ValidateTable(t *Table) error {
	if t.Name == "" {
		return &ValidationError{Message: "table name cannot be empty"}
	}
	if len(t.Columns) == 0 {
		return &ValidationError{
			Table:   t.Name,
			Message: "table has no columns",
		}
	}

	if err := v.validateColumns(t); err != nil {
		return err
	}
	if err := v.validatePrimaryKey(t); err != nil {
		return err
	}
	if err := v.validateIndexes(t); err != nil {
		return err
	}
	return v.validateConstraints(t)
}

// ValidateReferences checks that every foreign key targets columns that exist
func (v *Validator) ValidateReferences(t *Table) error {
	for _, fk := range t.ForeignKeys() {
		if fk.RefTable == nil {
			return &ValidationError{
				Table:   t.Name,
				Element: fk.Name,
				Message: "foreign key has no referenced table",
			}
		}
		if fk.RefTable != t && fk.RefTable.collection != t.collection {
			return &ValidationError{
				Table:   t.Name,
				Element: fk.Name,
				Message: fmt.Sprintf("referenced table %s is not part of the collection", fk.RefTable.FullName()),
				Hint:    "add the referenced table to the same collection",
			}
		}
		if len(fk.RefColumns) != len(fk.Columns) {
			return &ValidationError{
				Table:   t.Name,
				Element: fk.Name,
				Message: fmt.Sprintf("foreign key has %d columns but references %d", len(fk.Columns), len(fk.RefColumns)),
			}
		}
		for _, name := range fk.RefColumns {
			if _, ok := fk.RefTable.Column(name); !ok {
				return &ValidationError{
					Table:   t.Name,
					Element: fk.Name,
					Message: fmt.Sprintf("referenced column %s.%s does not exist", fk.RefTable.Name, name),
				}
			}
		}
	}
	return nil
}

func (v *Validator) validateColumns(t *Table) error {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return &ValidationError{Table: t.Name, Message: "column name cannot be empty"}
		}
		if seen[c.Name] {
			return &ValidationError{
				Table:   t.Name,
				Element: c.Name,
				Message: "duplicate column",
			}
		}
		seen[c.Name] = true

		if c.Autoincrement && c.Type.Base != TypeInteger && c.Type.Base != TypeBigInt {
			return &ValidationError{
				Table:   t.Name,
				Element: c.Name,
				Message: fmt.Sprintf("autoincrement requires an integer column, got %s", c.Type),
			}
		}
		if c.Autoincrement && !c.PrimaryKey {
			return &ValidationError{
				Table:   t.Name,
				Element: c.Name,
				Message: "autoincrement requires a primary key column",
			}
		}
	}
	return nil
}

func (v *Validator) validatePrimaryKey(t *Table) error {
	pk := t.PrimaryKey()
	for _, c := range pk {
		if c.Nullable {
			return &ValidationError{
				Table:   t.Name,
				Element: c.Name,
				Message: "primary key column cannot be nullable",
			}
		}
		if c.Autoincrement && len(pk) > 1 {
			return &ValidationError{
				Table:   t.Name,
				Element: c.Name,
				Message: "autoincrement is only supported on a single-column primary key",
			}
		}
	}
	return nil
}

func (v *Validator) validateIndexes(t *Table) error {
	names := make(map[string]bool, len(t.Indexes))
	for _, ix := range t.Indexes {
		if ix.Name == "" {
			return &ValidationError{Table: t.Name, Message: "index name cannot be empty"}
		}
		if names[ix.Name] {
			return &ValidationError{Table: t.Name, Element: ix.Name, Message: "duplicate index"}
		}
		names[ix.Name] = true

		if len(ix.Columns) == 0 {
			return &ValidationError{Table: t.Name, Element: ix.Name, Message: "index has no columns"}
		}
		if err := v.requireColumns(t, ix.Name, ix.Columns); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateConstraints(t *Table) error {
	for _, c := range t.Constraints {
		switch c := c.(type) {
		case *CheckConstraint:
			if strings.TrimSpace(c.Expr) == "" {
				return &ValidationError{Table: t.Name, Element: c.Name, Message: "check constraint has no expression"}
			}
		case *UniqueConstraint:
			if len(c.Columns) == 0 {
				return &ValidationError{Table: t.Name, Element: c.Name, Message: "unique constraint has no columns"}
			}
			if err := v.requireColumns(t, c.Name, c.Columns); err != nil {
				return err
			}
		case *ForeignKey:
			if len(c.Columns) == 0 {
				return &ValidationError{Table: t.Name, Element: c.Name, Message: "foreign key has no columns"}
			}
			if err := v.requireColumns(t, c.Name, c.Columns); err != nil {
				return err
			}
			if c.UseAlter && c.Name == "" {
				return &ValidationError{
					Table:   t.Name,
					Message: "foreign key added with ALTER must be named",
					Hint:    "ALTER TABLE ... DROP CONSTRAINT needs a name to drop it again",
				}
			}
		}
	}
	return nil
}

func (v *Validator) requireColumns(t *Table, element string, columns []string) error {
	for _, name := range columns {
		if _, ok := t.Column(name); !ok {
			return &ValidationError{
				Table:   t.Name,
				Element: element,
				Message: fmt.Sprintf("unknown column %s", name),
			}
		}
	}
	return nil
}
