package ddl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

func TestRender_Defaults(t *testing.T) {
	const tmpl = "%(schema)s-%(table)s-%(fullname)s"

	tests := []struct {
		name   string
		table  string
		schema string
		want   string
	}{
		{"plain", "t", "", "-t-t"},
		{"schema", "t", "s", "s-t-s.t"},
		{"quoted table", "t t", "", `-"t t"-"t t"`},
		{"quoted both", "t t", "s s", `"s s"-"t t"-"s s"."t t"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := schema.NewTable(tt.table).InSchema(tt.schema)
			got, err := Render(tmpl, tbl, nil, dialect.PostgreSQL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_OverridesAreVerbatim(t *testing.T) {
	tbl := schema.NewTable("t t").InSchema("s s")

	got, err := Render("%(schema)s-%(table)s-%(fullname)s-%(bonus)s", tbl,
		map[string]string{"schema": "S S", "table": "T T", "bonus": "b"}, dialect.PostgreSQL)
	require.NoError(t, err)
	// fullname is still computed from the quoted defaults
	assert.Equal(t, `S S-T T-"s s"."t t"-b`, got)

	got, err = Render("%(schema)s|%(table)s|%(fullname)s", tbl,
		map[string]string{"schema": "S S"}, dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, `S S|"t t"|"s s"."t t"`, got)
}

func TestRender_Escapes(t *testing.T) {
	tbl := schema.NewTable("t")

	got, err := Render("SELECT 100%% FROM %(table)s WHERE x LIKE 'a%%'", tbl, nil, dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 100% FROM t WHERE x LIKE 'a%'", got)

	got, err = Render("no placeholders", tbl, nil, dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders", got)
}

func TestRender_UnknownKey(t *testing.T) {
	_, err := Render("%(table)s %(bonus)s", schema.NewTable("t"), nil, dialect.PostgreSQL)

	var keyErr *TemplateKeyError
	require.True(t, errors.As(err, &keyErr), "got %v", err)
	assert.Equal(t, "bonus", keyErr.Key)
}

func TestRender_CollectionHasNoDefaults(t *testing.T) {
	c := schema.NewCollection("app")

	_, err := Render("%(table)s", c, nil, dialect.PostgreSQL)
	var keyErr *TemplateKeyError
	assert.True(t, errors.As(err, &keyErr))

	got, err := Render("%(who)s", c, map[string]string{"who": "me"}, dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, "me", got)
}

func TestRender_SyntaxErrors(t *testing.T) {
	tbl := schema.NewTable("t")
	for _, tmpl := range []string{
		"trailing %",
		"%(table",
		"%(table)d",
		"%(table)",
		"100%s",
	} {
		_, err := Render(tmpl, tbl, nil, dialect.PostgreSQL)
		assert.ErrorIs(t, err, ErrTemplateSyntax, tmpl)
	}
}

func TestRender_NilQuoterNeverQuotes(t *testing.T) {
	got, err := Render("%(fullname)s", schema.NewTable("t t").InSchema("s"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "s.t t", got)
}
