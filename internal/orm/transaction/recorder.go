package transaction

import (
	"context"
	"strings"
	"sync"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// Recorder is an executor that collects statements instead of running
// them. It backs dry runs and tests.
type Recorder struct {
	backend dialect.Backend

	mu         sync.Mutex
	statements []string
	existing   map[string]bool
}

// NewRecorder creates a recorder compiling for backend
func NewRecorder(backend dialect.Backend) *Recorder {
	return &Recorder{backend: backend, existing: make(map[string]bool)}
}

// Backend returns the dialect statements are compiled for
func (r *Recorder) Backend() dialect.Backend {
	return r.backend
}

// Exec records text
func (r *Recorder) Exec(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, text)
	return nil
}

// MarkExisting makes Exists report the named objects as present. Names are
// schema qualified where the object has a schema.
func (r *Recorder) MarkExisting(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.existing[n] = true
	}
}

// Exists reports whether el was marked existing
func (r *Recorder) Exists(ctx context.Context, el schema.Element) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existing[schema.QualifiedName(el.SchemaName(), el.ObjectName())], nil
}

// Statements returns the recorded statements in execution order
func (r *Recorder) Statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.statements))
	copy(out, r.statements)
	return out
}

// Script joins the recorded statements into one SQL script
func (r *Recorder) Script() string {
	stmts := r.Statements()
	if len(stmts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s)
		if !strings.HasSuffix(s, ";") {
			b.WriteString(";")
		}
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Reset discards the recorded statements
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = nil
}
