package commands

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DanielHall977/sqlalchemy-1/internal/cli/config"
	"github.com/DanielHall977/sqlalchemy-1/internal/cli/ui"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/ddl"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/history"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/transaction"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver "pgx"
	_ "github.com/lib/pq"              // PostgreSQL driver "postgres"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver "sqlite3"
)

// nativeDriver selects transaction.PgxConn instead of database/sql
const nativeDriver = "pgx-native"

// session is a connection a whole run executes in, committed once at the end
type session interface {
	ddl.Executor
	Run(ctx context.Context, fn func(ctx context.Context) error) error
	Close() error
}

// pgxSession owns the native connection behind a PgxConn
type pgxSession struct {
	*transaction.PgxConn
	conn *pgx.Conn
}

func (s pgxSession) Close() error {
	return s.conn.Close(context.Background())
}

// openSession connects to the configured database
func openSession(ctx context.Context, cfg *config.Config) (session, error) {
	driver, dsn, err := cfg.Database.Connection()
	if err != nil {
		return nil, err
	}

	if driver == nativeDriver {
		pc, conn, err := transaction.ConnectPgx(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pgxSession{PgxConn: pc, conn: conn}, nil
	}

	var opts []transaction.Option
	if cfg.Database.StatementTimeout > 0 {
		opts = append(opts, transaction.WithTimeout(cfg.Database.StatementTimeout))
	}
	conn, err := transaction.Open(driver, dsn, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Backend != "" {
		backend, ok := dialect.Lookup(cfg.Database.Backend)
		if !ok {
			conn.Close()
			return nil, fmt.Errorf("unknown backend %q%s", cfg.Database.Backend, ui.DidYouMean(cfg.Database.Backend, dialect.Names()))
		}
		conn = transaction.New(conn.DB(), backend, opts...)
	}
	if driver == "sqlite3" {
		// one connection, so every statement sees the same database
		conn.DB().SetMaxOpenConns(1)
	}
	if err := conn.DB().PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// historyQuerier returns the handle history entries are read with
func historyQuerier(s session) (history.Querier, error) {
	conn, ok := s.(*transaction.Conn)
	if !ok {
		return nil, fmt.Errorf("history listing needs a database/sql driver, not %s", nativeDriver)
	}
	return conn.DB(), nil
}
