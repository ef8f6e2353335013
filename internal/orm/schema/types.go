// Package schema defines the structural database objects that create and
// drop operations act on: tables with their columns, indexes and
// constraints, named schemas, and the collections that group them.
package schema

import (
	"fmt"
	"strings"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/predicate"
)

// PrimitiveType represents the portable column types
type PrimitiveType int

const (
	TypeInteger PrimitiveType = iota
	TypeBigInt
	TypeString
	TypeText
	TypeBool
	TypeFloat
	TypeDecimal
	TypeTimestamp
	TypeDate
	TypeTime
	TypeUUID
	TypeJSON
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeInteger:
		return "integer"
	case TypeBigInt:
		return "bigint"
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeUUID:
		return "uuid"
	case TypeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(s) {
	case "integer", "int":
		return TypeInteger, nil
	case "bigint":
		return TypeBigInt, nil
	case "string", "varchar":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "float", "double":
		return TypeFloat, nil
	case "decimal", "numeric":
		return TypeDecimal, nil
	case "timestamp":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "uuid":
		return TypeUUID, nil
	case "json":
		return TypeJSON, nil
	default:
		return 0, fmt.Errorf("unknown primitive type: %s", s)
	}
}

// TypeSpec is a column type with its optional parameters
type TypeSpec struct {
	Base      PrimitiveType
	Length    *int // For string(N)
	Precision *int // For decimal(P,S)
	Scale     *int // For decimal(P,S)
}

// String returns a string representation of the TypeSpec
func (t TypeSpec) String() string {
	s := t.Base.String()
	if t.Length != nil {
		s = fmt.Sprintf("%s(%d)", s, *t.Length)
	}
	if t.Precision != nil && t.Scale != nil {
		s = fmt.Sprintf("%s(%d,%d)", s, *t.Precision, *t.Scale)
	}
	return s
}

// String returns a string type of length n
func String(n int) TypeSpec {
	return TypeSpec{Base: TypeString, Length: &n}
}

// Decimal returns a decimal type with precision and scale
func Decimal(precision, scale int) TypeSpec {
	return TypeSpec{Base: TypeDecimal, Precision: &precision, Scale: &scale}
}

// Of returns a parameterless type
func Of(base PrimitiveType) TypeSpec {
	return TypeSpec{Base: base}
}

// Column is a table column
type Column struct {
	Name       string
	Type       TypeSpec
	Nullable   bool
	PrimaryKey bool
	// Autoincrement applies to single integer primary keys
	Autoincrement bool
	Default       string // raw SQL default expression
}

// NewColumn creates a nullable column
func NewColumn(name string, typ TypeSpec) *Column {
	return &Column{Name: name, Type: typ, Nullable: true}
}

// Primary marks the column as (part of) the primary key
func (c *Column) Primary() *Column {
	c.PrimaryKey = true
	c.Nullable = false
	return c
}

// NotNull marks the column NOT NULL
func (c *Column) NotNull() *Column {
	c.Nullable = false
	return c
}

// Element is a schema object that can be created or dropped on its own
type Element interface {
	hooks.Target

	// SchemaName is the enclosing schema, empty for the default one
	SchemaName() string

	// Dependencies are the elements that must exist before this one
	Dependencies() []Element
}

// Constraint is a table-level clause
type Constraint interface {
	ObjectName() string
	Table() *Table
	Condition() predicate.Predicate
}

// QualifiedName joins schema and name with a dot when schema is set
func QualifiedName(schemaName, name string) string {
	if schemaName == "" {
		return name
	}
	return schemaName + "." + name
}

// Table is a database table
type Table struct {
	Name        string
	Schema      string
	Columns     []*Column
	Constraints []Constraint
	Indexes     []*Index

	collection *Collection
	listeners  hooks.Registry
}

// NewTable creates a table with the given columns
func NewTable(name string, columns ...*Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// InSchema sets the enclosing schema and returns the table
func (t *Table) InSchema(name string) *Table {
	t.Schema = name
	return t
}

// ObjectName returns the table name
func (t *Table) ObjectName() string { return t.Name }

// SchemaName returns the enclosing schema name
func (t *Table) SchemaName() string { return t.Schema }

// FullName returns the schema-qualified table name
func (t *Table) FullName() string { return QualifiedName(t.Schema, t.Name) }

// Listeners returns the table's listener registry
func (t *Table) Listeners() *hooks.Registry { return &t.listeners }

// Collection returns the collection the table was added to, if any
func (t *Table) Collection() *Collection { return t.collection }

// Dependencies returns referenced tables (excluding self references and
// foreign keys added with ALTER) and the table's named schema if the
// collection declares it
func (t *Table) Dependencies() []Element {
	var deps []Element
	seen := make(map[Element]bool)
	add := func(el Element) {
		if el != nil && !seen[el] {
			seen[el] = true
			deps = append(deps, el)
		}
	}

	if t.collection != nil && t.Schema != "" {
		if ns, ok := t.collection.Namespace(t.Schema); ok {
			add(ns)
		}
	}
	for _, fk := range t.ForeignKeys() {
		if fk.UseAlter || fk.RefTable == nil || fk.RefTable == t {
			continue
		}
		add(fk.RefTable)
	}
	return deps
}

// Column returns a column by name
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// AddColumn appends a column
func (t *Table) AddColumn(c *Column) *Column {
	t.Columns = append(t.Columns, c)
	return c
}

// PrimaryKey returns the primary key columns in declaration order
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// AddIndex declares an index on the table
func (t *Table) AddIndex(name string, columns ...string) *Index {
	ix := &Index{Name: name, Columns: columns, table: t}
	t.Indexes = append(t.Indexes, ix)
	return ix
}

// AddCheck declares a CHECK constraint; name may be empty
func (t *Table) AddCheck(name, expr string) *CheckConstraint {
	c := &CheckConstraint{Name: name, Expr: expr, table: t}
	t.Constraints = append(t.Constraints, c)
	return c
}

// NewCheck creates a CHECK constraint owned by the table without declaring
// it inline. It is added and dropped with ALTER TABLE statements.
func (t *Table) NewCheck(name, expr string) *CheckConstraint {
	return &CheckConstraint{Name: name, Expr: expr, table: t}
}

// NewUnique is NewCheck for UNIQUE constraints
func (t *Table) NewUnique(name string, columns ...string) *UniqueConstraint {
	return &UniqueConstraint{Name: name, Columns: columns, table: t}
}

// AddUnique declares a UNIQUE constraint; name may be empty
func (t *Table) AddUnique(name string, columns ...string) *UniqueConstraint {
	c := &UniqueConstraint{Name: name, Columns: columns, table: t}
	t.Constraints = append(t.Constraints, c)
	return c
}

// AddForeignKey declares a foreign key from columns to refColumns of ref
func (t *Table) AddForeignKey(name string, columns []string, ref *Table, refColumns []string) *ForeignKey {
	fk := &ForeignKey{
		Name:       name,
		Columns:    columns,
		RefTable:   ref,
		RefColumns: refColumns,
		table:      t,
	}
	t.Constraints = append(t.Constraints, fk)
	return fk
}

// ForeignKeys returns the table's foreign keys
func (t *Table) ForeignKeys() []*ForeignKey {
	var fks []*ForeignKey
	for _, c := range t.Constraints {
		if fk, ok := c.(*ForeignKey); ok {
			fks = append(fks, fk)
		}
	}
	return fks
}

// Index is a table index. Its creation can be made conditional with DDLIf.
type Index struct {
	Name    string
	Columns []string
	Unique  bool

	table     *Table
	condition predicate.Predicate
	listeners hooks.Registry
}

// ObjectName returns the index name
func (ix *Index) ObjectName() string { return ix.Name }

// SchemaName returns the schema of the indexed table
func (ix *Index) SchemaName() string {
	if ix.table == nil {
		return ""
	}
	return ix.table.Schema
}

// Table returns the indexed table
func (ix *Index) Table() *Table { return ix.table }

// Listeners returns the index's listener registry
func (ix *Index) Listeners() *hooks.Registry { return &ix.listeners }

// Dependencies returns the indexed table
func (ix *Index) Dependencies() []Element {
	if ix.table == nil {
		return nil
	}
	return []Element{ix.table}
}

// Condition returns the condition gating CREATE INDEX
func (ix *Index) Condition() predicate.Predicate { return ix.condition }

// DDLIf makes the index's creation conditional
func (ix *Index) DDLIf(p predicate.Predicate) error {
	next, err := ix.condition.Attach(p)
	if err != nil {
		return fmt.Errorf("index %s: %w", ix.Name, err)
	}
	ix.condition = next
	return nil
}

// SetUnique marks the index unique and returns it
func (ix *Index) SetUnique() *Index {
	ix.Unique = true
	return ix
}

// CheckConstraint is a CHECK clause
type CheckConstraint struct {
	Name string
	Expr string

	table     *Table
	condition predicate.Predicate
}

// ObjectName returns the constraint name
func (c *CheckConstraint) ObjectName() string { return c.Name }

// Table returns the owning table
func (c *CheckConstraint) Table() *Table { return c.table }

// Condition returns the condition gating the inline clause
func (c *CheckConstraint) Condition() predicate.Predicate { return c.condition }

// DDLIf makes the clause conditional
func (c *CheckConstraint) DDLIf(p predicate.Predicate) error {
	next, err := c.condition.Attach(p)
	if err != nil {
		return fmt.Errorf("check constraint %s: %w", c.Name, err)
	}
	c.condition = next
	return nil
}

// UniqueConstraint is a UNIQUE clause
type UniqueConstraint struct {
	Name    string
	Columns []string

	table     *Table
	condition predicate.Predicate
}

// ObjectName returns the constraint name
func (c *UniqueConstraint) ObjectName() string { return c.Name }

// Table returns the owning table
func (c *UniqueConstraint) Table() *Table { return c.table }

// Condition returns the condition gating the inline clause
func (c *UniqueConstraint) Condition() predicate.Predicate { return c.condition }

// DDLIf makes the clause conditional
func (c *UniqueConstraint) DDLIf(p predicate.Predicate) error {
	next, err := c.condition.Attach(p)
	if err != nil {
		return fmt.Errorf("unique constraint %s: %w", c.Name, err)
	}
	c.condition = next
	return nil
}

// CascadeAction represents cascade actions for foreign keys
type CascadeAction int

const (
	CascadeNone CascadeAction = iota
	CascadeRestrict
	CascadeCascade
	CascadeSetNull
	CascadeNoAction
)

// SQL returns the referential action keyword, empty for CascadeNone
func (c CascadeAction) SQL() string {
	switch c {
	case CascadeRestrict:
		return "RESTRICT"
	case CascadeCascade:
		return "CASCADE"
	case CascadeSetNull:
		return "SET NULL"
	case CascadeNoAction:
		return "NO ACTION"
	default:
		return ""
	}
}

// ParseCascadeAction converts a string to a CascadeAction
func ParseCascadeAction(s string) (CascadeAction, error) {
	switch strings.ToLower(s) {
	case "":
		return CascadeNone, nil
	case "restrict":
		return CascadeRestrict, nil
	case "cascade":
		return CascadeCascade, nil
	case "set_null", "set null":
		return CascadeSetNull, nil
	case "no_action", "no action":
		return CascadeNoAction, nil
	default:
		return 0, fmt.Errorf("unknown cascade action: %s", s)
	}
}

// ForeignKey references another table. UseAlter foreign keys are created
// with ALTER TABLE after all tables exist and do not order creation.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   *Table
	RefColumns []string
	OnDelete   CascadeAction
	OnUpdate   CascadeAction
	UseAlter   bool

	table *Table
}

// ObjectName returns the constraint name
func (fk *ForeignKey) ObjectName() string { return fk.Name }

// Table returns the owning table
func (fk *ForeignKey) Table() *Table { return fk.table }

// Condition returns the empty predicate; foreign keys are never conditional
func (fk *ForeignKey) Condition() predicate.Predicate { return predicate.Predicate{} }

// Namespace is a named schema (CREATE SCHEMA)
type Namespace struct {
	Name string

	listeners hooks.Registry
}

// NewNamespace creates a named schema
func NewNamespace(name string) *Namespace {
	return &Namespace{Name: name}
}

// ObjectName returns the schema name
func (n *Namespace) ObjectName() string { return n.Name }

// SchemaName is empty; namespaces are not nested
func (n *Namespace) SchemaName() string { return "" }

// Listeners returns the namespace's listener registry
func (n *Namespace) Listeners() *hooks.Registry { return &n.listeners }

// Dependencies is always empty
func (n *Namespace) Dependencies() []Element { return nil }
