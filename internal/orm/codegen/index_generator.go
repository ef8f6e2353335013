package codegen

import (
	"fmt"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// CreateIndex generates a CREATE INDEX statement. The index's own condition
// is evaluated by the caller before compiling.
func (g *DDLGenerator) CreateIndex(ix *schema.Index) (string, error) {
	t, err := indexTable(ix)
	if err != nil {
		return "", err
	}

	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}

	// SQLite qualifies the index name instead of the table
	if g.flavor == flavorSQLite {
		return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
			unique, g.indexName(ix), g.quote(t.Name), g.columnList(ix.Columns)), nil
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		unique, g.quote(ix.Name), g.tableName(t), g.columnList(ix.Columns)), nil
}

// DropIndex generates a DROP INDEX statement
func (g *DDLGenerator) DropIndex(ix *schema.Index) (string, error) {
	t, err := indexTable(ix)
	if err != nil {
		return "", err
	}
	if g.flavor == flavorMySQL {
		return fmt.Sprintf("DROP INDEX %s ON %s;", g.quote(ix.Name), g.tableName(t)), nil
	}
	return fmt.Sprintf("DROP INDEX %s;", g.indexName(ix)), nil
}

// indexName returns the index name qualified with its table's schema
func (g *DDLGenerator) indexName(ix *schema.Index) string {
	if s := ix.SchemaName(); s != "" {
		return g.quote(s) + "." + g.quote(ix.Name)
	}
	return g.quote(ix.Name)
}

func indexTable(ix *schema.Index) (*schema.Table, error) {
	if ix == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if ix.Table() == nil {
		return nil, fmt.Errorf("index %s is not attached to a table", ix.Name)
	}
	return ix.Table(), nil
}
