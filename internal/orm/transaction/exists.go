package transaction

import (
	"errors"
	"fmt"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// ErrUnsupportedBackend is returned when no catalog query is known for a backend
var ErrUnsupportedBackend = errors.New("existence checks are not supported for this backend")

const (
	pgRelationCount = `SELECT COUNT(*) FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relname = $1 AND n.nspname = COALESCE(NULLIF($2, ''), current_schema())
AND c.relkind IN (%s)`
	pgNamespaceCount = `SELECT COUNT(*) FROM pg_catalog.pg_namespace WHERE nspname = $1`

	sqliteMasterCount    = `SELECT COUNT(*) FROM %ssqlite_master WHERE type = ? AND name = ?`
	sqliteNamespaceCount = `SELECT COUNT(*) FROM pragma_database_list WHERE name = ?`

	mysqlTableCount = `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?`
	mysqlIndexCount = `SELECT COUNT(*) FROM information_schema.statistics
WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ? AND index_name = ?`
	mysqlNamespaceCount = `SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`
)

// existsQuery returns the catalog query counting objects that match el.
// A positive count means el exists.
func existsQuery(backend dialect.Backend, el schema.Element) (string, []any, error) {
	switch backend.Name() {
	case "postgresql":
		return postgresExists(el)
	case "sqlite":
		return sqliteExists(backend, el)
	case "mysql":
		return mysqlExists(el)
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend.Name())
}

func postgresExists(el schema.Element) (string, []any, error) {
	switch el := el.(type) {
	case *schema.Table:
		return fmt.Sprintf(pgRelationCount, "'r', 'p', 'v', 'm', 'f'"), []any{el.Name, el.Schema}, nil
	case *schema.Index:
		return fmt.Sprintf(pgRelationCount, "'i'"), []any{el.Name, el.SchemaName()}, nil
	case *schema.Namespace:
		return pgNamespaceCount, []any{el.Name}, nil
	}
	return "", nil, unsupportedElement(el)
}

func sqliteExists(q dialect.Quoter, el schema.Element) (string, []any, error) {
	prefix := ""
	if s := el.SchemaName(); s != "" {
		prefix = q.Quote(s) + "."
	}
	switch el := el.(type) {
	case *schema.Table:
		return fmt.Sprintf(sqliteMasterCount, prefix), []any{"table", el.Name}, nil
	case *schema.Index:
		return fmt.Sprintf(sqliteMasterCount, prefix), []any{"index", el.Name}, nil
	case *schema.Namespace:
		return sqliteNamespaceCount, []any{el.Name}, nil
	}
	return "", nil, unsupportedElement(el)
}

func mysqlExists(el schema.Element) (string, []any, error) {
	switch el := el.(type) {
	case *schema.Table:
		return mysqlTableCount, []any{el.Schema, el.Name}, nil
	case *schema.Index:
		if el.Table() == nil {
			return "", nil, fmt.Errorf("index %s is not attached to a table", el.Name)
		}
		return mysqlIndexCount, []any{el.SchemaName(), el.Table().Name, el.Name}, nil
	case *schema.Namespace:
		return mysqlNamespaceCount, []any{el.Name}, nil
	}
	return "", nil, unsupportedElement(el)
}

func unsupportedElement(el schema.Element) error {
	return fmt.Errorf("cannot check existence of %T %s", el, el.ObjectName())
}
