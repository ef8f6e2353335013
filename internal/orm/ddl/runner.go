package ddl

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/codegen"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/predicate"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// ErrUnsupportedTarget is returned for a target that is neither a schema
// element nor a collection
var ErrUnsupportedTarget = errors.New("unsupported ddl target")

// Operation is the kind of run
type Operation string

const (
	OpCreate Operation = "create"
	OpDrop   Operation = "drop"
)

func (op Operation) before() hooks.EventName {
	if op == OpDrop {
		return hooks.BeforeDrop
	}
	return hooks.BeforeCreate
}

func (op Operation) after() hooks.EventName {
	if op == OpDrop {
		return hooks.AfterDrop
	}
	return hooks.AfterCreate
}

// Report describes a finished run
type Report struct {
	RunID     string
	Operation Operation
	State     State

	// Executed lists every statement sent to the executor, in order,
	// including those issued by listeners
	Executed []string

	// Skipped lists the objects checkfirst left out of execution
	Skipped []string
}

// Runner orchestrates create and drop operations. A Runner holds no
// per-run state and may be shared.
type Runner struct {
	logger      *zap.Logger
	dispatcher  *hooks.Dispatcher
	newCompiler CompilerFactory
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger used for run state transitions and events
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCompilerFactory replaces the built-in dialect compiler
func WithCompilerFactory(f CompilerFactory) Option {
	return func(r *Runner) {
		if f != nil {
			r.newCompiler = f
		}
	}
}

// NewRunner creates a new runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: zap.NewNop(),
		newCompiler: func(b dialect.Backend) (Compiler, error) {
			return codegen.NewDDLGenerator(b), nil
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dispatcher = hooks.NewDispatcher(r.logger)
	return r
}

type runConfig struct {
	checkFirst bool
}

// RunOption configures a single create or drop call
type RunOption func(*runConfig)

// WithCheckFirst skips executing statements for objects that already exist
// (create) or do not exist (drop). Events still fire for every object.
func WithCheckFirst(checkFirst bool) RunOption {
	return func(c *runConfig) {
		c.checkFirst = checkFirst
	}
}

var defaultRunner = NewRunner()

// Create creates target with the default runner
func Create(ctx context.Context, target hooks.Target, exec Executor, opts ...RunOption) (*Report, error) {
	return defaultRunner.Create(ctx, target, exec, opts...)
}

// Drop drops target with the default runner
func Drop(ctx context.Context, target hooks.Target, exec Executor, opts ...RunOption) (*Report, error) {
	return defaultRunner.Drop(ctx, target, exec, opts...)
}

// Create creates a table, index, named schema or collection. Errors from
// listeners, conditions and the executor are returned unchanged; the report
// is returned with them and ends in StateAborted.
func (r *Runner) Create(ctx context.Context, target hooks.Target, exec Executor, opts ...RunOption) (*Report, error) {
	return r.run(ctx, OpCreate, target, exec, opts)
}

// Drop drops a table, index, named schema or collection. Collections are
// dropped in reverse dependency order.
func (r *Runner) Drop(ctx context.Context, target hooks.Target, exec Executor, opts ...RunOption) (*Report, error) {
	return r.run(ctx, OpDrop, target, exec, opts)
}

func (r *Runner) run(ctx context.Context, op Operation, target hooks.Target, exec Executor, opts []RunOption) (*Report, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if exec == nil {
		return nil, fmt.Errorf("%s: executor is required", op)
	}
	if target == nil {
		return nil, fmt.Errorf("%s: %w: nil", op, ErrUnsupportedTarget)
	}
	backend := exec.Backend()
	if backend == nil {
		return nil, fmt.Errorf("%s: executor has no backend", op)
	}
	compiler, err := r.newCompiler(backend)
	if err != nil {
		return nil, fmt.Errorf("%s: compiler for %s: %w", op, backend.Name(), err)
	}

	id := uuid.NewString()
	rn := &run{
		id:         id,
		op:         op,
		exec:       exec,
		compiler:   compiler,
		dispatcher: r.dispatcher,
		checkFirst: cfg.checkFirst,
		logger: r.logger.With(
			zap.String("run_id", id),
			zap.String("operation", string(op)),
			zap.String("target", target.ObjectName()),
		),
		report: &Report{RunID: id, Operation: op, State: StatePlanning},
	}
	rn.bind = &runBind{exec: exec, run: rn}

	rn.logger.Debug("ddl run started", zap.Bool("checkfirst", cfg.checkFirst))

	if err := rn.execute(ctx, target); err != nil {
		rn.abort(err)
		return rn.report, err
	}
	if err := rn.transition(StateDone); err != nil {
		rn.abort(err)
		return rn.report, err
	}
	rn.logger.Debug("ddl run finished", zap.Int("statements", len(rn.report.Executed)))
	return rn.report, nil
}

// run is the state of one Create or Drop call. It is passed to listeners
// as the event's Runner.
type run struct {
	id         string
	op         Operation
	exec       Executor
	bind       *runBind
	compiler   Compiler
	dispatcher *hooks.Dispatcher
	checkFirst bool
	logger     *zap.Logger
	report     *Report
}

// RunID returns the unique id of the run
func (rn *run) RunID() string { return rn.id }

// Operation returns "create" or "drop"
func (rn *run) Operation() string { return string(rn.op) }

// Compiler returns the compiler for the run's backend
func (rn *run) Compiler() Compiler { return rn.compiler }

func (rn *run) transition(to State) error {
	from := rn.report.State
	if !canTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	if from != to {
		rn.logger.Debug("ddl run state", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	rn.report.State = to
	return nil
}

func (rn *run) abort(err error) {
	if !rn.report.State.Terminal() {
		rn.logger.Debug("ddl run aborted", zap.Stringer("state", rn.report.State), zap.Error(err))
		rn.report.State = StateAborted
	}
}

func (rn *run) execute(ctx context.Context, target hooks.Target) error {
	switch t := target.(type) {
	case *schema.Collection:
		return rn.runCollection(ctx, t)
	case schema.Element:
		return rn.runSingle(ctx, t)
	default:
		return fmt.Errorf("%s: %w: %T", rn.op, ErrUnsupportedTarget, target)
	}
}

func (rn *run) runSingle(ctx context.Context, el schema.Element) error {
	skip, err := rn.satisfied(ctx, el)
	if err != nil {
		return err
	}
	return rn.processObject(ctx, el, skip, false)
}

func (rn *run) runCollection(ctx context.Context, c *schema.Collection) error {
	sorted, err := c.SortedElements()
	if err != nil {
		return fmt.Errorf("%s %s: %w", rn.op, c.Name, err)
	}
	if rn.op == OpDrop {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}

	skip := make(map[schema.Element]bool, len(sorted))
	for _, el := range sorted {
		ok, err := rn.satisfied(ctx, el)
		if err != nil {
			return err
		}
		skip[el] = ok
	}

	var deferred []*schema.ForeignKey
	if rn.compiler.Backend().SupportsAlterConstraint() {
		for _, t := range c.Tables() {
			for _, fk := range t.ForeignKeys() {
				if fk.UseAlter && !skip[t] {
					deferred = append(deferred, fk)
				}
			}
		}
	}

	members := make([]hooks.Target, len(sorted))
	for i, el := range sorted {
		members[i] = el
	}

	if err := rn.transition(StateBeforeEvents); err != nil {
		return err
	}
	if err := rn.fire(ctx, rn.op.before(), hooks.ScopeCollection, c, members, false); err != nil {
		return err
	}

	if rn.op == OpDrop && len(deferred) > 0 {
		if err := rn.transition(StateExecuting); err != nil {
			return err
		}
		for _, fk := range deferred {
			if err := rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.DropConstraint(fk) }); err != nil {
				return err
			}
		}
	}

	for _, el := range sorted {
		if t, ok := el.(*schema.Table); ok && rn.op == OpCreate {
			if err := rn.processTable(ctx, t, skip[el], true, tableDeferred(t, deferred)); err != nil {
				return err
			}
			continue
		}
		if err := rn.processObject(ctx, el, skip[el], true); err != nil {
			return err
		}
	}

	if rn.op == OpCreate && len(deferred) > 0 {
		if err := rn.transition(StateExecuting); err != nil {
			return err
		}
		for _, fk := range deferred {
			if err := rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.AddConstraint(fk) }); err != nil {
				return err
			}
		}
	}

	if err := rn.transition(StateAfterEvents); err != nil {
		return err
	}
	return rn.fire(ctx, rn.op.after(), hooks.ScopeCollection, c, members, false)
}

// processObject runs before events, statements and after events for one
// object. Statements are skipped when checkfirst found the object satisfied.
func (rn *run) processObject(ctx context.Context, el schema.Element, skip, fromCollection bool) error {
	if t, ok := el.(*schema.Table); ok && rn.op == OpCreate {
		return rn.processTable(ctx, t, skip, fromCollection, nil)
	}
	return rn.around(ctx, el, fromCollection, func() error {
		if skip {
			rn.markSkipped(el)
			return nil
		}
		return rn.executeElement(ctx, el)
	})
}

// processTable creates a table followed by its indexes; index events fire
// nested inside the table's events.
func (rn *run) processTable(ctx context.Context, t *schema.Table, skip, fromCollection bool, deferred []*schema.ForeignKey) error {
	return rn.around(ctx, t, fromCollection, func() error {
		if skip {
			rn.markSkipped(t)
		} else if err := rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.CreateTable(t, deferred) }); err != nil {
			return err
		}
		for _, ix := range t.Indexes {
			err := rn.fireAround(ctx, ix, fromCollection, func() error {
				// indexes of an existing table are taken as existing
				if skip {
					return nil
				}
				return rn.executeIndex(ctx, ix)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// around fires before events, runs body in StateExecuting, then fires
// after events
func (rn *run) around(ctx context.Context, el schema.Element, fromCollection bool, body func() error) error {
	if err := rn.transition(StateBeforeEvents); err != nil {
		return err
	}
	if err := rn.fire(ctx, rn.op.before(), hooks.ScopeObject, el, nil, fromCollection); err != nil {
		return err
	}
	if err := rn.transition(StateExecuting); err != nil {
		return err
	}
	if err := body(); err != nil {
		return err
	}
	if err := rn.transition(StateAfterEvents); err != nil {
		return err
	}
	return rn.fire(ctx, rn.op.after(), hooks.ScopeObject, el, nil, fromCollection)
}

// fireAround fires object events around body without leaving StateExecuting
func (rn *run) fireAround(ctx context.Context, el schema.Element, fromCollection bool, body func() error) error {
	if err := rn.fire(ctx, rn.op.before(), hooks.ScopeObject, el, nil, fromCollection); err != nil {
		return err
	}
	if err := body(); err != nil {
		return err
	}
	return rn.fire(ctx, rn.op.after(), hooks.ScopeObject, el, nil, fromCollection)
}

func (rn *run) fire(ctx context.Context, name hooks.EventName, scope hooks.Scope, target hooks.Target, members []hooks.Target, fromCollection bool) error {
	return rn.dispatcher.Fire(ctx, hooks.Event{
		Name:           name,
		Scope:          scope,
		Target:         target,
		Runner:         rn,
		Bind:           rn.bind,
		CheckFirst:     rn.checkFirst,
		Members:        members,
		FromCollection: fromCollection,
	})
}

func (rn *run) executeElement(ctx context.Context, el schema.Element) error {
	switch el := el.(type) {
	case *schema.Table:
		if rn.op == OpCreate {
			return rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.CreateTable(el, nil) })
		}
		return rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.DropTable(el) })
	case *schema.Index:
		return rn.executeIndex(ctx, el)
	case *schema.Namespace:
		if rn.op == OpCreate {
			return rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.CreateNamespace(el) })
		}
		return rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.DropNamespace(el) })
	default:
		return fmt.Errorf("%s: %w: %T", rn.op, ErrUnsupportedTarget, el)
	}
}

// executeIndex evaluates the index's own condition in standalone mode
// before compiling CREATE or DROP INDEX
func (rn *run) executeIndex(ctx context.Context, ix *schema.Index) error {
	ok, err := ix.Condition().ShouldExecute(predicate.Call{
		Construct: ix,
		Target:    ix,
		Backend:   rn.bind.Backend(),
		Mode:      predicate.Standalone{Conn: rn.bind},
	})
	if err != nil {
		return err
	}
	if !ok {
		rn.logger.Debug("index condition not met", zap.String("index", ix.Name))
		return nil
	}
	if rn.op == OpCreate {
		return rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.CreateIndex(ix) })
	}
	return rn.compileAndExec(ctx, func() (string, error) { return rn.compiler.DropIndex(ix) })
}

func (rn *run) compileAndExec(ctx context.Context, compile func() (string, error)) error {
	text, err := compile()
	if err != nil {
		return err
	}
	return rn.bind.Exec(ctx, text)
}

// satisfied reports whether checkfirst lets the object's statements be
// skipped: it already exists for create, or is already gone for drop
func (rn *run) satisfied(ctx context.Context, el schema.Element) (bool, error) {
	if !rn.checkFirst {
		return false, nil
	}
	exists, err := rn.exec.Exists(ctx, el)
	if err != nil {
		return false, err
	}
	if rn.op == OpCreate {
		return exists, nil
	}
	return !exists, nil
}

func (rn *run) markSkipped(el schema.Element) {
	name := schema.QualifiedName(el.SchemaName(), el.ObjectName())
	rn.logger.Debug("checkfirst skipped object", zap.String("object", name))
	rn.report.Skipped = append(rn.report.Skipped, name)
}

func tableDeferred(t *schema.Table, deferred []*schema.ForeignKey) []*schema.ForeignKey {
	var out []*schema.ForeignKey
	for _, fk := range deferred {
		if fk.Table() == t {
			out = append(out, fk)
		}
	}
	return out
}

// runBind is the connection handed to listeners. It records every
// statement that reaches the executor.
type runBind struct {
	exec Executor
	run  *run
}

// Backend returns the executor's backend
func (b *runBind) Backend() dialect.Backend { return b.exec.Backend() }

// Exec executes text and records it in the run report on success
func (b *runBind) Exec(ctx context.Context, text string) error {
	b.run.logger.Debug("executing ddl", zap.String("sql", text))
	if err := b.exec.Exec(ctx, text); err != nil {
		return err
	}
	b.run.report.Executed = append(b.run.report.Executed, text)
	return nil
}

// Exists delegates to the executor
func (b *runBind) Exists(ctx context.Context, el schema.Element) (bool, error) {
	return b.exec.Exists(ctx, el)
}
