package schema

import (
	"errors"
	"fmt"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
)

// ErrDuplicate is returned when an element with the same qualified name is
// already part of a collection
var ErrDuplicate = errors.New("duplicate schema element")

// Collection is an insertion-ordered, deduplicated set of tables and named
// schemas that are created and dropped together. It has its own listener
// registry, independent of its members'.
type Collection struct {
	Name string

	elements   []Element
	tables     map[string]*Table
	namespaces map[string]*Namespace
	validator  *Validator
	listeners  hooks.Registry
}

// NewCollection creates an empty collection
func NewCollection(name string) *Collection {
	return &Collection{
		Name:       name,
		tables:     make(map[string]*Table),
		namespaces: make(map[string]*Namespace),
		validator:  NewValidator(),
	}
}

// ObjectName returns the collection name
func (c *Collection) ObjectName() string { return c.Name }

// Listeners returns the collection-scope listener registry
func (c *Collection) Listeners() *hooks.Registry { return &c.listeners }

// AddTable validates and adds a table
func (c *Collection) AddTable(t *Table) error {
	key := t.FullName()
	if _, exists := c.tables[key]; exists {
		return fmt.Errorf("%w: table %s", ErrDuplicate, key)
	}
	if t.collection != nil && t.collection != c {
		return fmt.Errorf("table %s already belongs to collection %s", key, t.collection.Name)
	}

	if err := c.validator.ValidateTable(t); err != nil {
		return fmt.Errorf("table %s: %w", key, err)
	}

	t.collection = c
	c.tables[key] = t
	c.elements = append(c.elements, t)
	return nil
}

// AddNamespace adds a named schema
func (c *Collection) AddNamespace(ns *Namespace) error {
	if ns.Name == "" {
		return fmt.Errorf("namespace name cannot be empty")
	}
	if _, exists := c.namespaces[ns.Name]; exists {
		return fmt.Errorf("%w: schema %s", ErrDuplicate, ns.Name)
	}
	c.namespaces[ns.Name] = ns
	c.elements = append(c.elements, ns)
	return nil
}

// Table returns a table by schema-qualified name
func (c *Collection) Table(fullName string) (*Table, bool) {
	t, ok := c.tables[fullName]
	return t, ok
}

// Namespace returns a named schema
func (c *Collection) Namespace(name string) (*Namespace, bool) {
	ns, ok := c.namespaces[name]
	return ns, ok
}

// Tables returns the tables in insertion order
func (c *Collection) Tables() []*Table {
	tables := make([]*Table, 0, len(c.tables))
	for _, el := range c.elements {
		if t, ok := el.(*Table); ok {
			tables = append(tables, t)
		}
	}
	return tables
}

// Elements returns all members in insertion order
func (c *Collection) Elements() []Element {
	out := make([]Element, len(c.elements))
	copy(out, c.elements)
	return out
}

// Count returns the number of members
func (c *Collection) Count() int {
	return len(c.elements)
}

// SortedElements returns the members in creation order: every element
// after the elements it depends on, ties broken by insertion order
func (c *Collection) SortedElements() ([]Element, error) {
	return NewDependencyGraph(c.elements).TopologicalSort()
}

// Validate performs the cross-table checks that cannot run when a table is
// added, such as foreign keys referencing tables outside the collection
func (c *Collection) Validate() error {
	for _, t := range c.Tables() {
		if err := c.validator.ValidateReferences(t); err != nil {
			return fmt.Errorf("table %s: %w", t.FullName(), err)
		}
	}
	graph := NewDependencyGraph(c.elements)
	if cycles := graph.DetectCycles(); len(cycles) > 0 {
		return &CycleError{Cycles: cycles}
	}
	return nil
}
