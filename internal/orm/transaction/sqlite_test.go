package transaction

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/ddl"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/predicate"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// setupTestDB opens an in-memory database pinned to one connection so
// every transaction sees the same database
func setupTestDB(t *testing.T) *Conn {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return New(db, dialect.SQLite)
}

func blogCollection(t *testing.T) *schema.Collection {
	t.Helper()

	users := schema.NewTable("users",
		schema.NewColumn("id", schema.Of(schema.TypeInteger)).Primary(),
		schema.NewColumn("email", schema.String(120)).NotNull(),
	)
	users.AddIndex("ix_users_email", "email").SetUnique()

	posts := schema.NewTable("posts",
		schema.NewColumn("id", schema.Of(schema.TypeInteger)).Primary(),
		schema.NewColumn("user_id", schema.Of(schema.TypeInteger)).NotNull(),
		schema.NewColumn("title", schema.Of(schema.TypeText)),
	)
	posts.AddForeignKey("fk_posts_user", []string{"user_id"}, users, []string{"id"}).OnDelete = schema.CascadeCascade

	c := schema.NewCollection("blog")
	require.NoError(t, c.AddTable(posts))
	require.NoError(t, c.AddTable(users))
	return c
}

func TestSQLite_ExecAndExists(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	tbl := schema.NewTable("t", schema.NewColumn("id", schema.Of(schema.TypeInteger)))

	ok, err := conn.Exists(ctx, tbl)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, conn.Exec(ctx, "CREATE TABLE t (id INTEGER)"))
	// visible inside the transaction before commit
	ok, err = conn.Exists(ctx, tbl)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, conn.Rollback())
	ok, err = conn.Exists(ctx, tbl)
	require.NoError(t, err)
	assert.False(t, ok, "rollback discards the table")
	require.NoError(t, conn.Rollback())

	ok, err = conn.Exists(ctx, schema.NewNamespace("main"))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, conn.Commit())
}

func TestSQLite_CreateDropCollection(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	blog := blogCollection(t)
	users, _ := blog.Table("users")
	posts, _ := blog.Table("posts")

	report, err := ddl.Create(ctx, blog, conn)
	require.NoError(t, err)
	require.NoError(t, conn.Commit())
	require.Len(t, report.Executed, 3)
	assert.Contains(t, report.Executed[0], "CREATE TABLE users")
	assert.Equal(t, "CREATE UNIQUE INDEX ix_users_email ON users (email);", report.Executed[1])
	assert.Contains(t, report.Executed[2], "CREATE TABLE posts")
	// sqlite cannot ALTER constraints, so the foreign key stays inline
	assert.Contains(t, report.Executed[2], "FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE")

	for _, el := range []schema.Element{users, posts, users.Indexes[0]} {
		ok, err := conn.Exists(ctx, el)
		require.NoError(t, err)
		assert.True(t, ok, el.ObjectName())
	}
	require.NoError(t, conn.Commit())

	// checkfirst makes a second create a no-op
	report, err = ddl.Create(ctx, blog, conn, ddl.WithCheckFirst(true))
	require.NoError(t, err)
	require.NoError(t, conn.Commit())
	assert.Empty(t, report.Executed)
	assert.Equal(t, []string{"users", "posts"}, report.Skipped)

	report, err = ddl.Drop(ctx, blog, conn, ddl.WithCheckFirst(true))
	require.NoError(t, err)
	require.NoError(t, conn.Commit())
	assert.Equal(t, []string{"DROP TABLE posts;", "DROP TABLE users;"}, report.Executed)

	report, err = ddl.Drop(ctx, blog, conn, ddl.WithCheckFirst(true))
	require.NoError(t, err)
	require.NoError(t, conn.Commit())
	assert.Empty(t, report.Executed)
	assert.Equal(t, []string{"posts", "users"}, report.Skipped)
}

func TestSQLite_FailedRunRollsBack(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	blog := blogCollection(t)
	posts, _ := blog.Table("posts")

	// the statement after posts is invalid; users was already created in
	// the same transaction
	require.NoError(t, hooks.Listen(posts, hooks.AfterCreate, ddl.NewStatement("CREATE TABLEX nope", nil)))

	err := conn.Run(ctx, func(ctx context.Context) error {
		report, err := ddl.Create(ctx, blog, conn)
		if err != nil {
			assert.Equal(t, ddl.StateAborted, report.State)
		}
		return err
	})
	require.Error(t, err)

	users, _ := blog.Table("users")
	ok, err := conn.Exists(ctx, users)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, conn.Rollback())
}

func TestSQLite_ConditionalDDL(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	tbl := schema.NewTable("events",
		schema.NewColumn("id", schema.Of(schema.TypeInteger)).Primary(),
		schema.NewColumn("kind", schema.String(20)),
	)
	require.NoError(t, tbl.AddIndex("ix_events_kind", "kind").DDLIf(predicate.OnBackend("postgresql")))
	require.NoError(t, hooks.Listen(tbl, hooks.AfterCreate,
		ddl.NewStatement("CREATE VIEW recent_%(table)s AS SELECT * FROM %(table)s", nil).
			MustExecuteIf(predicate.OnBackend("sqlite"))))

	report, err := ddl.Create(ctx, tbl, conn)
	require.NoError(t, err)
	require.NoError(t, conn.Commit())
	require.Len(t, report.Executed, 2)
	assert.Equal(t, "CREATE VIEW recent_events AS SELECT * FROM events", report.Executed[1])

	var views int
	require.NoError(t, conn.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'view' AND name = 'recent_events'").Scan(&views))
	assert.Equal(t, 1, views)

	ok, err := conn.Exists(ctx, tbl.Indexes[0])
	require.NoError(t, err)
	assert.False(t, ok, "index is postgresql only")
	require.NoError(t, conn.Commit())
}
