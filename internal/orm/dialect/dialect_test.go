package dialect

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsQuoting(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", false},
		{"t", false},
		{"users", false},
		{"user_accounts", false},
		{"t2", false},
		{"a$b", false},
		{"t t", true},
		{"Users", true},
		{"2fast", true},
		{"$x", true},
		{"with-dash", true},
		{"select", true},
		{"user", true},
		{"ünicode", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PostgreSQL.NeedsQuoting(tt.name))
		})
	}
}

func TestDialectSpecificReservedWords(t *testing.T) {
	assert.True(t, PostgreSQL.NeedsQuoting("returning"))
	assert.False(t, SQLite.NeedsQuoting("returning"))
	assert.True(t, SQLite.NeedsQuoting("autoincrement"))
	assert.True(t, MySQL.NeedsQuoting("key"))
	assert.False(t, Default.NeedsQuoting("key"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"t t"`, PostgreSQL.Quote("t t"))
	assert.Equal(t, `"say ""hi"""`, PostgreSQL.Quote(`say "hi"`))
	assert.Equal(t, "`t t`", MySQL.Quote("t t"))
	assert.Equal(t, "`a``b`", MySQL.Quote("a`b"))
}

func TestQuote_MatchesPostgresDriver(t *testing.T) {
	for _, name := range []string{"t t", "Users", `we"ird`, "select", "s s"} {
		assert.Equal(t, pq.QuoteIdentifier(name), PostgreSQL.Quote(name), name)
	}
}

func TestSupportsAlterConstraint(t *testing.T) {
	assert.True(t, PostgreSQL.SupportsAlterConstraint())
	assert.True(t, MySQL.SupportsAlterConstraint())
	assert.False(t, SQLite.SupportsAlterConstraint())
}

func TestLookup(t *testing.T) {
	for alias, want := range map[string]*Dialect{
		"postgresql": PostgreSQL,
		"postgres":   PostgreSQL,
		"pgx":        PostgreSQL,
		"pgx-native": PostgreSQL,
		"PostgreSQL": PostgreSQL,
		"sqlite3":    SQLite,
		"mysql":      MySQL,
	} {
		d, ok := Lookup(alias)
		require.True(t, ok, alias)
		assert.Same(t, want, d, alias)
	}

	_, ok := Lookup("oracle")
	assert.False(t, ok)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "postgresql")
	assert.Contains(t, names, "sqlite3")
	assert.IsIncreasing(t, names)
}

func TestForDriver(t *testing.T) {
	d, err := ForDriver("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = ForDriver("mssql")
	assert.Error(t, err)
}

func TestNew_Options(t *testing.T) {
	d := New("custom", WithQuoteChars("[", "]"), WithReservedWords("Thing"), WithoutAlterConstraint())

	assert.Equal(t, "custom", d.Name())
	assert.Equal(t, "custom", d.String())
	assert.Equal(t, "[a]]b]", d.Quote("a]b"))
	assert.True(t, d.NeedsQuoting("thing"))
	assert.False(t, d.SupportsAlterConstraint())
}
