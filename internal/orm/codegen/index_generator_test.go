package codegen

import (
	"testing"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

func TestDDLGenerator_Indexes(t *testing.T) {
	plain := schema.NewTable("users",
		schema.NewColumn("id", schema.Of(schema.TypeInteger)).Primary(),
		schema.NewColumn("email", schema.Of(schema.TypeString)),
		schema.NewColumn("name", schema.Of(schema.TypeString)),
	)
	ix := plain.AddIndex("ix_users_email", "email")
	uq := plain.AddIndex("ux_users_name", "email", "name").SetUnique()

	qualified := schema.NewTable("log", schema.NewColumn("at", schema.Of(schema.TypeTimestamp))).InSchema("audit")
	qix := qualified.AddIndex("ix_log_at", "at")

	tests := []struct {
		name    string
		backend dialect.Backend
		create  bool
		index   *schema.Index
		want    string
	}{
		{"pg create", dialect.PostgreSQL, true, ix, "CREATE INDEX ix_users_email ON users (email);"},
		{"pg create unique", dialect.PostgreSQL, true, uq, "CREATE UNIQUE INDEX ux_users_name ON users (email, name);"},
		{"pg create qualified", dialect.PostgreSQL, true, qix, "CREATE INDEX ix_log_at ON audit.log (at);"},
		{"pg drop qualified", dialect.PostgreSQL, false, qix, "DROP INDEX audit.ix_log_at;"},
		{"sqlite create qualified", dialect.SQLite, true, qix, "CREATE INDEX audit.ix_log_at ON log (at);"},
		{"sqlite drop", dialect.SQLite, false, ix, "DROP INDEX ix_users_email;"},
		{"mysql drop", dialect.MySQL, false, ix, "DROP INDEX ix_users_email ON users;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewDDLGenerator(tt.backend)

			var got string
			var err error
			if tt.create {
				got, err = gen.CreateIndex(tt.index)
			} else {
				got, err = gen.DropIndex(tt.index)
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDDLGenerator_IndexWithoutTable(t *testing.T) {
	gen := NewDDLGenerator(dialect.PostgreSQL)
	if _, err := gen.CreateIndex(&schema.Index{Name: "orphan"}); err == nil {
		t.Error("expected error for an index without a table")
	}
}
