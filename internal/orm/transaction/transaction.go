// Package transaction provides the connections DDL runs execute on. A Conn
// begins a transaction on the first statement and keeps every statement of a
// run inside it until the caller commits or rolls back.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

var (
	// ErrNoTransaction is returned by Commit and Rollback when nothing was begun
	ErrNoTransaction = errors.New("no transaction in progress")
	// ErrTransactionActive is returned by Begin when a transaction is already open
	ErrTransactionActive = errors.New("transaction already in progress")
	// ErrTransactionTimeout is returned when a transaction outlives its timeout
	ErrTransactionTimeout = errors.New("transaction timeout")
)

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// ReadCommitted prevents dirty reads (PostgreSQL default)
	ReadCommitted IsolationLevel = iota
	// RepeatableRead prevents non-repeatable reads
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "READ COMMITTED"
	}
}

// ToSQLOptions converts IsolationLevel to sql.TxOptions
func (l IsolationLevel) ToSQLOptions() *sql.TxOptions {
	level := sql.LevelReadCommitted
	switch l {
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	}
	return &sql.TxOptions{Isolation: level}
}

// Conn executes DDL on a database/sql handle. It is safe for use by one run
// at a time; the mutex only guards the transaction bookkeeping.
type Conn struct {
	db      *sql.DB
	backend dialect.Backend
	options *sql.TxOptions
	timeout time.Duration

	mu     sync.Mutex
	tx     *sql.Tx
	txCtx  context.Context
	cancel context.CancelFunc
}

// Option configures a Conn
type Option func(*Conn)

// WithIsolation sets the isolation level transactions begin with. Without
// it the driver default is used.
func WithIsolation(level IsolationLevel) Option {
	return func(c *Conn) {
		c.options = level.ToSQLOptions()
	}
}

// WithTimeout bounds how long a transaction may stay open. Once it passes
// the driver rolls the transaction back.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.timeout = d
	}
}

// New wraps an open database handle
func New(db *sql.DB, backend dialect.Backend, opts ...Option) *Conn {
	c := &Conn{db: db, backend: backend}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens a database/sql handle and picks the dialect from the driver name
func Open(driver, dsn string, opts ...Option) (*Conn, error) {
	backend, err := dialect.ForDriver(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, backend, opts...), nil
}

// DB returns the underlying database handle
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Backend returns the dialect statements are compiled for
func (c *Conn) Backend() dialect.Backend {
	return c.backend
}

// InTransaction reports whether a transaction is open
func (c *Conn) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil
}

// Begin opens a transaction explicitly
func (c *Conn) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return ErrTransactionActive
	}
	_, err := c.beginLocked(ctx)
	return err
}

func (c *Conn) beginLocked(ctx context.Context) (*sql.Tx, error) {
	txCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.timeout > 0 {
		txCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	tx, err := c.db.BeginTx(txCtx, c.options)
	if err != nil {
		cancel()
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: begin exceeded %v", ErrTransactionTimeout, c.timeout)
		}
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	c.tx, c.txCtx, c.cancel = tx, txCtx, cancel
	return tx, nil
}

// active returns the open transaction, beginning one if needed
func (c *Conn) active(ctx context.Context) (*sql.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return c.tx, nil
	}
	return c.beginLocked(ctx)
}

// Exec runs one statement inside the open transaction
func (c *Conn) Exec(ctx context.Context, text string) error {
	tx, err := c.active(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, text); err != nil {
		return c.timedOut(err)
	}
	return nil
}

// Exists reports whether el is present in the database catalog. The
// query runs inside the open transaction so it sees uncommitted DDL.
func (c *Conn) Exists(ctx context.Context, el schema.Element) (bool, error) {
	query, args, err := existsQuery(c.backend, el)
	if err != nil {
		return false, err
	}
	tx, err := c.active(ctx)
	if err != nil {
		return false, err
	}

	var n int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check existence of %s: %w", el.ObjectName(), c.timedOut(err))
	}
	return n > 0, nil
}

// Commit commits the open transaction
func (c *Conn) Commit() error {
	tx, txCtx, cancel, err := c.take()
	if err != nil {
		return err
	}
	defer cancel()

	if err := tx.Commit(); err != nil {
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: transaction exceeded %v", ErrTransactionTimeout, c.timeout)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the open transaction
func (c *Conn) Rollback() error {
	tx, _, cancel, err := c.take()
	if err != nil {
		return err
	}
	defer cancel()

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// take detaches the open transaction from the connection
func (c *Conn) take() (*sql.Tx, context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return nil, nil, nil, ErrNoTransaction
	}
	tx, txCtx, cancel := c.tx, c.txCtx, c.cancel
	c.tx, c.txCtx, c.cancel = nil, nil, nil
	return tx, txCtx, cancel, nil
}

func (c *Conn) timedOut(err error) error {
	c.mu.Lock()
	txCtx := c.txCtx
	c.mu.Unlock()
	if txCtx != nil && errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransactionTimeout, err)
	}
	return err
}

// Close rolls back any open transaction and closes the database handle
func (c *Conn) Close() error {
	if c.InTransaction() {
		_ = c.Rollback()
	}
	return c.db.Close()
}

// Run executes fn and commits what it executed on c, or rolls back if fn
// fails or panics. fn's error is wrapped only when the rollback fails too.
func (c *Conn) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	defer func() {
		if p := recover(); p != nil {
			if c.InTransaction() {
				_ = c.Rollback()
			}
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if c.InTransaction() {
			if rbErr := c.Rollback(); rbErr != nil {
				return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
		return err
	}
	if !c.InTransaction() {
		return nil
	}
	return c.Commit()
}
