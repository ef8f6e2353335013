// Package dialect describes target database backends: the name a backend is
// identified by and the rules it uses to quote identifiers.
package dialect

import (
	"fmt"
	"sort"
	"strings"
)

// Quoter decides whether an identifier needs quoting and quotes it
type Quoter interface {
	NeedsQuoting(name string) bool
	Quote(name string) string
}

// Backend is the identity of a target database system
type Backend interface {
	Quoter

	// Name identifies the backend, e.g. "postgresql"
	Name() string

	// SupportsAlterConstraint reports whether constraints can be added to
	// or dropped from an existing table with ALTER TABLE
	SupportsAlterConstraint() bool
}

// Dialect is the built-in Backend implementation
type Dialect struct {
	name            string
	openQuote       string
	closeQuote      string
	reserved        map[string]struct{}
	alterConstraint bool
}

// Option configures a Dialect
type Option func(*Dialect)

// WithQuoteChars sets the opening and closing identifier quote characters
func WithQuoteChars(open, close string) Option {
	return func(d *Dialect) {
		d.openQuote = open
		d.closeQuote = close
	}
}

// WithReservedWords adds words that must always be quoted
func WithReservedWords(words ...string) Option {
	return func(d *Dialect) {
		for _, w := range words {
			d.reserved[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithoutAlterConstraint marks the backend as unable to ALTER constraints
func WithoutAlterConstraint() Option {
	return func(d *Dialect) {
		d.alterConstraint = false
	}
}

// New creates a dialect with ANSI double-quote quoting and the common
// reserved word list
func New(name string, opts ...Option) *Dialect {
	d := &Dialect{
		name:            name,
		openQuote:       `"`,
		closeQuote:      `"`,
		reserved:        make(map[string]struct{}, len(reservedWords)),
		alterConstraint: true,
	}
	for _, w := range reservedWords {
		d.reserved[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the backend name
func (d *Dialect) Name() string {
	return d.name
}

// SupportsAlterConstraint reports whether ALTER TABLE ADD/DROP CONSTRAINT is available
func (d *Dialect) SupportsAlterConstraint() bool {
	return d.alterConstraint
}

// NeedsQuoting reports whether name is anything other than a plain
// lowercase identifier: lowercase letters, digits, underscore and dollar,
// not starting with a digit or dollar, and not a reserved word.
func (d *Dialect) NeedsQuoting(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := d.reserved[name]; ok {
		return true
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case (r >= '0' && r <= '9') || r == '$':
			if i == 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// Quote wraps name in the dialect's quote characters, doubling any
// embedded closing quote
func (d *Dialect) Quote(name string) string {
	escaped := strings.ReplaceAll(name, d.closeQuote, d.closeQuote+d.closeQuote)
	return d.openQuote + escaped + d.closeQuote
}

// String implements fmt.Stringer
func (d *Dialect) String() string {
	return d.name
}

// Built-in dialects
var (
	PostgreSQL = New("postgresql", WithReservedWords("analyse", "analyze", "limit", "offset", "returning"))
	SQLite     = New("sqlite", WithoutAlterConstraint(), WithReservedWords("autoincrement", "limit", "offset"))
	MySQL      = New("mysql", WithQuoteChars("`", "`"), WithReservedWords("limit", "key", "keys", "database", "schema"))
	Default    = New("default")
)

var builtins = map[string]*Dialect{
	"postgresql": PostgreSQL,
	"postgres":   PostgreSQL,
	"pgx":        PostgreSQL,
	"pgx-native": PostgreSQL,
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"mysql":      MySQL,
	"default":    Default,
}

// Lookup returns the built-in dialect registered under name or one of its aliases
func Lookup(name string) (*Dialect, bool) {
	d, ok := builtins[strings.ToLower(name)]
	return d, ok
}

// Names returns every built-in dialect name and alias, sorted
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForDriver returns the dialect for a database/sql driver name
func ForDriver(driver string) (*Dialect, error) {
	d, ok := Lookup(driver)
	if !ok {
		return nil, fmt.Errorf("no dialect known for driver %q", driver)
	}
	return d, nil
}

// reservedWords is the subset of SQL-92 keywords that collide with common
// table and column names
var reservedWords = []string{
	"all", "alter", "and", "any", "as", "asc", "between", "by", "case",
	"check", "column", "constraint", "create", "cross", "current_date",
	"current_time", "current_timestamp", "current_user", "default", "delete",
	"desc", "distinct", "drop", "else", "end", "except", "exists", "false",
	"fetch", "for", "foreign", "from", "full", "grant", "group", "having",
	"in", "index", "inner", "insert", "intersect", "into", "is", "join",
	"left", "like", "not", "null", "on", "or", "order", "outer", "primary",
	"references", "right", "select", "session_user", "set", "some", "table",
	"then", "to", "true", "union", "unique", "update", "user", "using",
	"values", "when", "where", "with",
}
