package codegen

import (
	"errors"
	"testing"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

func constraintFixtures() (*schema.CheckConstraint, *schema.UniqueConstraint, *schema.ForeignKey) {
	users := schema.NewTable("users", schema.NewColumn("id", schema.Of(schema.TypeInteger)).Primary())
	posts := schema.NewTable("posts",
		schema.NewColumn("id", schema.Of(schema.TypeInteger)).Primary(),
		schema.NewColumn("user_id", schema.Of(schema.TypeInteger)),
		schema.NewColumn("slug", schema.Of(schema.TypeString)),
	)
	ck := posts.AddCheck("ck_user", "user_id > 0")
	uq := posts.AddUnique("uq_slug", "slug")
	fk := posts.AddForeignKey("fk_user", []string{"user_id"}, users, []string{"id"})
	fk.OnDelete = schema.CascadeSetNull
	return ck, uq, fk
}

func TestDDLGenerator_AddConstraint(t *testing.T) {
	ck, uq, fk := constraintFixtures()
	gen := NewDDLGenerator(dialect.PostgreSQL)

	tests := []struct {
		constraint schema.Constraint
		want       string
	}{
		{ck, "ALTER TABLE posts ADD CONSTRAINT ck_user CHECK (user_id > 0);"},
		{uq, "ALTER TABLE posts ADD CONSTRAINT uq_slug UNIQUE (slug);"},
		{fk, "ALTER TABLE posts ADD CONSTRAINT fk_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE SET NULL;"},
	}
	for _, tt := range tests {
		got, err := gen.AddConstraint(tt.constraint)
		if err != nil {
			t.Fatalf("AddConstraint(%s) error = %v", tt.constraint.ObjectName(), err)
		}
		if got != tt.want {
			t.Errorf("AddConstraint() = %q, want %q", got, tt.want)
		}
	}
}

func TestDDLGenerator_DropConstraint(t *testing.T) {
	ck, uq, fk := constraintFixtures()

	pg := NewDDLGenerator(dialect.PostgreSQL)
	got, err := pg.DropConstraint(fk)
	if err != nil || got != "ALTER TABLE posts DROP CONSTRAINT fk_user;" {
		t.Errorf("DropConstraint() = %q, %v", got, err)
	}

	my := NewDDLGenerator(dialect.MySQL)
	for c, want := range map[schema.Constraint]string{
		ck: "ALTER TABLE posts DROP CHECK ck_user;",
		uq: "ALTER TABLE posts DROP INDEX uq_slug;",
		fk: "ALTER TABLE posts DROP FOREIGN KEY fk_user;",
	} {
		got, err := my.DropConstraint(c)
		if err != nil || got != want {
			t.Errorf("mysql DropConstraint(%s) = %q, %v; want %q", c.ObjectName(), got, err, want)
		}
	}

	unnamed := ck.Table().AddCheck("", "slug <> ''")
	if _, err := pg.DropConstraint(unnamed); err == nil {
		t.Error("dropping an unnamed constraint should fail")
	}
}

func TestDDLGenerator_AlterUnsupported(t *testing.T) {
	ck, _, _ := constraintFixtures()
	gen := NewDDLGenerator(dialect.SQLite)

	if _, err := gen.AddConstraint(ck); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := gen.DropConstraint(ck); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestTypeMapper_MapType(t *testing.T) {
	tests := []struct {
		backend dialect.Backend
		typ     schema.TypeSpec
		want    string
	}{
		{dialect.PostgreSQL, schema.Of(schema.TypeFloat), "DOUBLE PRECISION"},
		{dialect.SQLite, schema.Of(schema.TypeFloat), "REAL"},
		{dialect.MySQL, schema.Of(schema.TypeFloat), "DOUBLE"},
		{dialect.PostgreSQL, schema.Of(schema.TypeString), "VARCHAR(255)"},
		{dialect.PostgreSQL, schema.Of(schema.TypeDecimal), "NUMERIC"},
		{dialect.SQLite, schema.Of(schema.TypeUUID), "CHAR(36)"},
		{dialect.SQLite, schema.Of(schema.TypeJSON), "TEXT"},
		{dialect.Default, schema.Of(schema.TypeTimestamp), "TIMESTAMP"},
		{dialect.PostgreSQL, schema.Of(schema.TypeBool), "BOOLEAN"},
	}
	for _, tt := range tests {
		got, err := NewTypeMapper(tt.backend).MapType(schema.NewColumn("c", tt.typ))
		if err != nil {
			t.Fatalf("MapType(%s) error = %v", tt.typ, err)
		}
		if got != tt.want {
			t.Errorf("%s MapType(%s) = %s, want %s", tt.backend.Name(), tt.typ, got, tt.want)
		}
	}

	big := schema.NewColumn("id", schema.Of(schema.TypeBigInt)).Primary()
	big.Autoincrement = true
	if got, _ := NewTypeMapper(dialect.PostgreSQL).MapType(big); got != "BIGSERIAL" {
		t.Errorf("MapType(bigint autoincrement) = %s, want BIGSERIAL", got)
	}
	if got, _ := NewTypeMapper(dialect.SQLite).MapType(big); got != "INTEGER" {
		t.Errorf("sqlite MapType(bigint autoincrement) = %s, want INTEGER", got)
	}

	if _, err := NewTypeMapper(dialect.PostgreSQL).MapType(schema.NewColumn("c", schema.TypeSpec{Base: schema.PrimitiveType(99)})); err == nil {
		t.Error("expected error for unknown type")
	}
}
