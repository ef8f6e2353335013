// Package history records completed DDL operations in a ddl_history table.
// Rows are inserted by a listener on the after events, inside the same
// transaction as the DDL they describe.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/ddl"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// DefaultTable is the name of the history table
const DefaultTable = "ddl_history"

// timestampLayout is accepted by PostgreSQL, MySQL and the sqlite3 driver
const timestampLayout = "2006-01-02 15:04:05.999999-07:00"

// Entry is one recorded event
type Entry struct {
	ID         uuid.UUID
	RunID      string
	Operation  string
	Event      string
	Object     string
	RecordedAt time.Time
}

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Tracker manages the history table and the listener writing to it
type Tracker struct {
	table  *schema.Table
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithTableName overrides DefaultTable
func WithTableName(name string) Option {
	return func(t *Tracker) {
		t.table.Name = name
	}
}

// WithClock sets the time source for recorded_at
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a tracker for the history table
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		table: schema.NewTable(DefaultTable,
			schema.NewColumn("id", schema.Of(schema.TypeUUID)).Primary(),
			schema.NewColumn("run_id", schema.Of(schema.TypeUUID)).NotNull(),
			schema.NewColumn("operation", schema.String(16)).NotNull(),
			schema.NewColumn("event", schema.String(32)).NotNull(),
			schema.NewColumn("object", schema.String(255)).NotNull(),
			schema.NewColumn("recorded_at", schema.Of(schema.TypeTimestamp)).NotNull(),
		),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.table.AddIndex("ix_"+t.table.Name+"_run_id", "run_id")
	return t
}

// Table returns the history table definition
func (t *Tracker) Table() *schema.Table {
	return t.table
}

// Initialize creates the history table unless it exists
func (t *Tracker) Initialize(ctx context.Context, exec ddl.Executor) error {
	if _, err := ddl.Create(ctx, t.table, exec, ddl.WithCheckFirst(true)); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", t.table.Name, err)
	}
	return nil
}

// Attach registers the recording listener on target's after events
func (t *Tracker) Attach(target hooks.Target) error {
	for _, name := range []hooks.EventName{hooks.AfterCreate, hooks.AfterDrop} {
		if err := hooks.Listen(target, name, hooks.ListenerFunc(t.record)); err != nil {
			return err
		}
	}
	return nil
}

// AttachCollection attaches to c and to every object it holds
func (t *Tracker) AttachCollection(c *schema.Collection) error {
	if err := t.Attach(c); err != nil {
		return err
	}
	for _, el := range c.Elements() {
		if err := t.Attach(el); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) record(ctx context.Context, ev hooks.Event) error {
	if ev.Bind == nil {
		return ddl.ErrNoConnection
	}
	var runID, operation string
	if ev.Runner != nil {
		runID, operation = ev.Runner.RunID(), ev.Runner.Operation()
	}

	object := ev.Target.ObjectName()
	if s, ok := ev.Target.(interface{ SchemaName() string }); ok {
		object = schema.QualifiedName(s.SchemaName(), object)
	}

	literal := standardLiteral
	if ev.Bind.Backend().Name() == "postgresql" {
		literal = pq.QuoteLiteral
	}
	values := []string{
		literal(uuid.NewString()),
		literal(runID),
		literal(operation),
		literal(string(ev.Name)),
		literal(object),
		literal(t.now().UTC().Format(timestampLayout)),
	}

	stmt := fmt.Sprintf("INSERT INTO %s (id, run_id, operation, event, object, recorded_at) VALUES (%s)",
		t.tableName(ev.Bind.Backend()), strings.Join(values, ", "))
	if err := ev.Bind.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to record %s %s: %w", ev.Name, object, err)
	}
	t.logger.Debug("recorded ddl history",
		zap.String("run_id", runID),
		zap.String("event", string(ev.Name)),
		zap.String("object", object))
	return nil
}

func (t *Tracker) tableName(q dialect.Quoter) string {
	if q.NeedsQuoting(t.table.Name) {
		return q.Quote(t.table.Name)
	}
	return t.table.Name
}

// Entries returns every recorded entry, oldest first. The table name is
// quoted for quoter the same way record quoted it.
func (t *Tracker) Entries(ctx context.Context, q Querier, quoter dialect.Quoter) ([]*Entry, error) {
	query := fmt.Sprintf(`
SELECT id, run_id, operation, event, object, recorded_at
FROM %s
ORDER BY recorded_at ASC
`, t.tableName(quoter))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var id string
		if err := rows.Scan(&id, &e.RunID, &e.Operation, &e.Event, &e.Object, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid history id %q: %w", id, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// standardLiteral quotes s as an SQL string literal by doubling single quotes
func standardLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
