// Package manifest loads schema definitions from YAML. A manifest names the
// tables, indexes and constraints of one collection along with the custom
// DDL statements to run around their creation and removal.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/ddl"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/predicate"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// Manifest is the YAML document
type Manifest struct {
	Name       string      `yaml:"name"`
	Namespaces []string    `yaml:"namespaces"`
	Tables     []Table     `yaml:"tables"`
	DDL        []Statement `yaml:"ddl"`
}

// Table describes one table
type Table struct {
	Name        string       `yaml:"name"`
	Schema      string       `yaml:"schema"`
	Columns     []Column     `yaml:"columns"`
	Indexes     []Index      `yaml:"indexes"`
	Checks      []Check      `yaml:"checks"`
	Unique      []Unique     `yaml:"unique"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys"`
	DDL         []Statement  `yaml:"ddl"`
}

// Column describes one column
type Column struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Length        *int   `yaml:"length"`
	Precision     *int   `yaml:"precision"`
	Scale         *int   `yaml:"scale"`
	Nullable      *bool  `yaml:"nullable"`
	PrimaryKey    bool   `yaml:"primary_key"`
	Autoincrement bool   `yaml:"autoincrement"`
	Default       string `yaml:"default"`
}

// Condition restricts DDL to some backends. At most one field may be set.
type Condition struct {
	OnlyOn []string `yaml:"only_on"`
	SkipOn []string `yaml:"skip_on"`
}

// Index describes one index
type Index struct {
	Name      string   `yaml:"name"`
	Columns   []string `yaml:"columns"`
	Unique    bool     `yaml:"unique"`
	Condition `yaml:",inline"`
}

// Check describes a CHECK constraint
type Check struct {
	Name      string `yaml:"name"`
	Expr      string `yaml:"expr"`
	Condition `yaml:",inline"`
}

// Unique describes a UNIQUE constraint
type Unique struct {
	Name      string   `yaml:"name"`
	Columns   []string `yaml:"columns"`
	Condition `yaml:",inline"`
}

// ForeignKey describes a foreign key
type ForeignKey struct {
	Name       string   `yaml:"name"`
	Columns    []string `yaml:"columns"`
	References string   `yaml:"references"`
	RefColumns []string `yaml:"ref_columns"`
	OnDelete   string   `yaml:"on_delete"`
	OnUpdate   string   `yaml:"on_update"`
	UseAlter   bool     `yaml:"use_alter"`
}

// Statement is a custom DDL statement run as an event listener
type Statement struct {
	Event     string            `yaml:"event"`
	SQL       string            `yaml:"sql"`
	Params    map[string]string `yaml:"params"`
	Condition `yaml:",inline"`
}

// ErrEmpty is returned for a manifest without tables or namespaces
var ErrEmpty = errors.New("manifest defines no tables or namespaces")

// Load reads and builds the manifest at path
func Load(path string) (*schema.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m.Build()
}

// Parse decodes a manifest. Unknown fields are errors.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Build turns the manifest into a collection with its listeners attached
func (m *Manifest) Build() (*schema.Collection, error) {
	if len(m.Tables) == 0 && len(m.Namespaces) == 0 {
		return nil, ErrEmpty
	}
	name := m.Name
	if name == "" {
		name = "default"
	}
	c := schema.NewCollection(name)

	for _, ns := range m.Namespaces {
		if err := c.AddNamespace(schema.NewNamespace(ns)); err != nil {
			return nil, err
		}
	}

	// tables first so foreign keys can reference any of them
	tables := make([]*schema.Table, len(m.Tables))
	for i, td := range m.Tables {
		t, err := td.build()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", td.Name, err)
		}
		tables[i] = t
	}
	byName := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		byName[t.FullName()] = t
	}

	for i, td := range m.Tables {
		for _, fk := range td.ForeignKeys {
			if err := fk.attach(tables[i], byName); err != nil {
				return nil, fmt.Errorf("table %s: %w", td.Name, err)
			}
		}
		if err := c.AddTable(tables[i]); err != nil {
			return nil, err
		}
	}

	if err := listen(c, m.DDL); err != nil {
		return nil, fmt.Errorf("collection %s: %w", name, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (td Table) build() (*schema.Table, error) {
	t := schema.NewTable(td.Name).InSchema(td.Schema)
	for _, cd := range td.Columns {
		col, err := cd.build()
		if err != nil {
			return nil, err
		}
		t.AddColumn(col)
	}

	for _, ixd := range td.Indexes {
		ix := t.AddIndex(ixd.Name, ixd.Columns...)
		if ixd.Unique {
			ix.SetUnique()
		}
		if err := ixd.attach(ix.DDLIf); err != nil {
			return nil, fmt.Errorf("index %s: %w", ixd.Name, err)
		}
	}
	for _, ckd := range td.Checks {
		if err := ckd.attach(t.AddCheck(ckd.Name, ckd.Expr).DDLIf); err != nil {
			return nil, fmt.Errorf("check %s: %w", ckd.Name, err)
		}
	}
	for _, uqd := range td.Unique {
		if err := uqd.attach(t.AddUnique(uqd.Name, uqd.Columns...).DDLIf); err != nil {
			return nil, fmt.Errorf("unique %s: %w", uqd.Name, err)
		}
	}

	if err := listen(t, td.DDL); err != nil {
		return nil, err
	}
	return t, nil
}

func (cd Column) build() (*schema.Column, error) {
	base, err := schema.ParsePrimitiveType(cd.Type)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", cd.Name, err)
	}
	col := schema.NewColumn(cd.Name, schema.TypeSpec{
		Base:      base,
		Length:    cd.Length,
		Precision: cd.Precision,
		Scale:     cd.Scale,
	})
	if cd.PrimaryKey {
		col.Primary()
	}
	if cd.Nullable != nil {
		col.Nullable = *cd.Nullable
	}
	col.Autoincrement = cd.Autoincrement
	col.Default = cd.Default
	return col, nil
}

func (fd ForeignKey) attach(t *schema.Table, tables map[string]*schema.Table) error {
	ref, ok := tables[fd.References]
	if !ok {
		return fmt.Errorf("foreign key %s references unknown table %q", fd.Name, fd.References)
	}
	onDelete, err := schema.ParseCascadeAction(fd.OnDelete)
	if err != nil {
		return err
	}
	onUpdate, err := schema.ParseCascadeAction(fd.OnUpdate)
	if err != nil {
		return err
	}

	refColumns := fd.RefColumns
	if len(refColumns) == 0 {
		for _, pk := range ref.PrimaryKey() {
			refColumns = append(refColumns, pk.Name)
		}
	}
	fk := t.AddForeignKey(fd.Name, fd.Columns, ref, refColumns)
	fk.OnDelete, fk.OnUpdate, fk.UseAlter = onDelete, onUpdate, fd.UseAlter
	return nil
}

// predicate converts the condition; the zero Predicate means unconditional
func (c Condition) predicate() (predicate.Predicate, error) {
	switch {
	case len(c.OnlyOn) > 0 && len(c.SkipOn) > 0:
		return predicate.Predicate{}, errors.New("only_on and skip_on are mutually exclusive")
	case len(c.OnlyOn) > 0:
		return predicate.OnBackend(c.OnlyOn...), nil
	case len(c.SkipOn) > 0:
		return predicate.WhenWithState(skipOn, c.SkipOn), nil
	}
	return predicate.Predicate{}, nil
}

// skipOn is true unless the backend is one of the names in the call state
func skipOn(call predicate.Call) (bool, error) {
	names, _ := call.State.([]string)
	return !slices.Contains(names, call.Backend.Name()), nil
}

func (c Condition) attach(ddlIf func(predicate.Predicate) error) error {
	p, err := c.predicate()
	if err != nil || p.IsZero() {
		return err
	}
	return ddlIf(p)
}

func listen(target hooks.Target, stmts []Statement) error {
	for _, sd := range stmts {
		event, err := hooks.ParseEventName(sd.Event)
		if err != nil {
			return err
		}
		if sd.SQL == "" {
			return fmt.Errorf("%s statement has no sql", event)
		}

		s := ddl.NewStatement(sd.SQL, sd.Params)
		p, err := sd.predicate()
		if err != nil {
			return err
		}
		if !p.IsZero() {
			if s, err = s.ExecuteIf(p); err != nil {
				return err
			}
		}
		if err := hooks.Listen(target, event, s); err != nil {
			return err
		}
	}
	return nil
}
