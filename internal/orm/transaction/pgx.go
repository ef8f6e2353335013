package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// Beginner starts native pgx transactions. *pgx.Conn and *pgxpool.Pool
// both satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgxConn executes DDL on a native pgx connection. Statements are always
// compiled for PostgreSQL.
type PgxConn struct {
	conn Beginner

	mu sync.Mutex
	tx pgx.Tx
}

// NewPgx wraps a pgx connection or pool
func NewPgx(conn Beginner) *PgxConn {
	return &PgxConn{conn: conn}
}

// ConnectPgx opens a single pgx connection
func ConnectPgx(ctx context.Context, url string) (*PgxConn, *pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewPgx(conn), conn, nil
}

// Backend returns the PostgreSQL dialect
func (c *PgxConn) Backend() dialect.Backend {
	return dialect.PostgreSQL
}

// InTransaction reports whether a transaction is open
func (c *PgxConn) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil
}

func (c *PgxConn) active(ctx context.Context) (pgx.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return c.tx, nil
	}
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx
	return tx, nil
}

// Exec runs one statement inside the open transaction, beginning one if needed
func (c *PgxConn) Exec(ctx context.Context, text string) error {
	tx, err := c.active(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, text)
	return err
}

// Exists reports whether el is present in the PostgreSQL catalog
func (c *PgxConn) Exists(ctx context.Context, el schema.Element) (bool, error) {
	query, args, err := postgresExists(el)
	if err != nil {
		return false, err
	}
	tx, err := c.active(ctx)
	if err != nil {
		return false, err
	}

	var n int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check existence of %s: %w", el.ObjectName(), err)
	}
	return n > 0, nil
}

func (c *PgxConn) take() (pgx.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return nil, ErrNoTransaction
	}
	tx := c.tx
	c.tx = nil
	return tx, nil
}

// Commit commits the open transaction
func (c *PgxConn) Commit(ctx context.Context) error {
	tx, err := c.take()
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the open transaction
func (c *PgxConn) Rollback(ctx context.Context) error {
	tx, err := c.take()
	if err != nil {
		return err
	}
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Run executes fn and commits what it executed on c, or rolls back if fn fails
func (c *PgxConn) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		if c.InTransaction() {
			if rbErr := c.Rollback(ctx); rbErr != nil {
				return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
		return err
	}
	if !c.InTransaction() {
		return nil
	}
	return c.Commit(ctx)
}
