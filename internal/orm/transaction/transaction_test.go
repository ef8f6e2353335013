package transaction

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

func newMockConn(t *testing.T, backend dialect.Backend, opts ...Option) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, backend, opts...), mock
}

func TestConn_AutoBegin(t *testing.T) {
	conn, mock := newMockConn(t, dialect.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	assert.False(t, conn.InTransaction())
	require.NoError(t, conn.Exec(ctx, "CREATE TABLE a"))
	assert.True(t, conn.InTransaction())
	require.NoError(t, conn.Exec(ctx, "CREATE TABLE b"))
	require.NoError(t, conn.Commit())
	assert.False(t, conn.InTransaction())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExplicitBegin(t *testing.T) {
	conn, mock := newMockConn(t, dialect.PostgreSQL)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	require.NoError(t, conn.Begin(ctx))
	assert.ErrorIs(t, conn.Begin(ctx), ErrTransactionActive)
	require.NoError(t, conn.Rollback())

	assert.ErrorIs(t, conn.Commit(), ErrNoTransaction)
	assert.ErrorIs(t, conn.Rollback(), ErrNoTransaction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExecError(t *testing.T) {
	conn, mock := newMockConn(t, dialect.PostgreSQL)
	boom := errors.New("relation already exists")

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(boom)

	err := conn.Exec(context.Background(), "CREATE TABLE a")
	assert.ErrorIs(t, err, boom)
	// the failed statement leaves the transaction for the caller to end
	assert.True(t, conn.InTransaction())
}

func TestConn_BeginError(t *testing.T) {
	conn, mock := newMockConn(t, dialect.PostgreSQL)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := conn.Exec(context.Background(), "CREATE TABLE a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
	assert.False(t, conn.InTransaction())
}

func TestConn_BeginTimeout(t *testing.T) {
	conn, mock := newMockConn(t, dialect.PostgreSQL, WithTimeout(10*time.Millisecond))
	mock.ExpectBegin().WillDelayFor(time.Second)

	err := conn.Exec(context.Background(), "CREATE TABLE a")
	assert.ErrorIs(t, err, ErrTransactionTimeout)
}

func TestConn_CommitError(t *testing.T) {
	conn, mock := newMockConn(t, dialect.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	require.NoError(t, conn.Exec(context.Background(), "CREATE TABLE a"))
	err := conn.Commit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.False(t, conn.InTransaction())
}

func TestConn_ExistsPostgres(t *testing.T) {
	conn, mock := newMockConn(t, dialect.PostgreSQL)
	users := schema.NewTable("users").InSchema("app")
	ix := users.AddIndex("ix_users_email", "email")
	ns := schema.NewNamespace("app")

	mock.ExpectBegin()
	mock.ExpectQuery(`pg_catalog\.pg_class`).WithArgs("users", "app").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`relkind IN \('i'\)`).WithArgs("ix_users_email", "app").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`pg_catalog\.pg_namespace WHERE nspname`).WithArgs("app").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ctx := context.Background()
	ok, err := conn.Exists(ctx, users)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = conn.Exists(ctx, ix)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = conn.Exists(ctx, ns)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExistsMySQL(t *testing.T) {
	conn, mock := newMockConn(t, dialect.MySQL)
	users := schema.NewTable("users")
	ix := users.AddIndex("ix_users_email", "email")

	mock.ExpectBegin()
	mock.ExpectQuery(`information_schema\.tables`).WithArgs("", "users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`information_schema\.statistics`).WithArgs("", "users", "ix_users_email").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	ctx := context.Background()
	ok, err := conn.Exists(ctx, users)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = conn.Exists(ctx, ix)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExistsUnsupported(t *testing.T) {
	conn, _ := newMockConn(t, dialect.Default)

	_, err := conn.Exists(context.Background(), schema.NewTable("users"))
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
	assert.False(t, conn.InTransaction())
}

func TestConn_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		conn, mock := newMockConn(t, dialect.PostgreSQL)
		mock.ExpectBegin()
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := conn.Run(ctx, func(ctx context.Context) error {
			return conn.Exec(ctx, "CREATE TABLE a")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		conn, mock := newMockConn(t, dialect.PostgreSQL)
		mock.ExpectBegin()
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		boom := errors.New("listener failed")
		err := conn.Run(ctx, func(ctx context.Context) error {
			require.NoError(t, conn.Exec(ctx, "CREATE TABLE a"))
			return boom
		})
		assert.Same(t, boom, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		conn, mock := newMockConn(t, dialect.PostgreSQL)
		mock.ExpectBegin()
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = conn.Run(ctx, func(ctx context.Context) error {
				require.NoError(t, conn.Exec(ctx, "CREATE TABLE a"))
				panic("boom")
			})
		})
		assert.False(t, conn.InTransaction())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing executed", func(t *testing.T) {
		conn, mock := newMockConn(t, dialect.PostgreSQL)
		require.NoError(t, conn.Run(ctx, func(context.Context) error { return nil }))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsolationLevel(t *testing.T) {
	tests := []struct {
		level IsolationLevel
		name  string
	}{
		{ReadCommitted, "READ COMMITTED"},
		{RepeatableRead, "REPEATABLE READ"},
		{Serializable, "SERIALIZABLE"},
		{IsolationLevel(42), "READ COMMITTED"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.level.String())
	}
	assert.Equal(t, "Serializable", Serializable.ToSQLOptions().Isolation.String())
}

// txOptionsConn records the options each BeginTx receives
type txOptionsConn struct {
	driver.Conn
	got *driver.TxOptions
}

func (c *txOptionsConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	*c.got = opts
	return c.Conn.(driver.ConnBeginTx).BeginTx(ctx, opts)
}

type txOptionsConnector struct {
	drv driver.Driver
	dsn string
	got *driver.TxOptions
}

func (c txOptionsConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &txOptionsConn{Conn: conn, got: c.got}, nil
}

func (c txOptionsConnector) Driver() driver.Driver { return c.drv }

func TestConn_WithIsolation(t *testing.T) {
	mockDB, mock, err := sqlmock.NewWithDSN("with_isolation")
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	var got driver.TxOptions
	db := sql.OpenDB(txOptionsConnector{drv: mockDB.Driver(), dsn: "with_isolation", got: &got})
	t.Cleanup(func() { db.Close() })

	conn := New(db, dialect.PostgreSQL, WithIsolation(Serializable))
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, conn.Commit())

	assert.Equal(t, driver.IsolationLevel(sql.LevelSerializable), got.Isolation)
	assert.False(t, got.ReadOnly)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	assert.Error(t, err)
}
