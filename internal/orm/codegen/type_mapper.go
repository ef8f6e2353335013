// Package codegen compiles schema objects into DDL text for a target backend.
package codegen

import (
	"fmt"
	"strings"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// flavor selects backend-specific type names and syntax
type flavor int

const (
	flavorGeneric flavor = iota
	flavorPostgres
	flavorSQLite
	flavorMySQL
)

func flavorOf(backend dialect.Backend) flavor {
	switch backend.Name() {
	case "postgresql":
		return flavorPostgres
	case "sqlite":
		return flavorSQLite
	case "mysql":
		return flavorMySQL
	default:
		return flavorGeneric
	}
}

// TypeMapper maps portable column types to backend column types
type TypeMapper struct {
	flavor flavor
}

// NewTypeMapper creates a new TypeMapper for backend
func NewTypeMapper(backend dialect.Backend) *TypeMapper {
	return &TypeMapper{flavor: flavorOf(backend)}
}

// MapType converts a column's type to a backend column type. Autoincrement
// primary keys map to SERIAL types on PostgreSQL.
func (tm *TypeMapper) MapType(col *schema.Column) (string, error) {
	if col == nil {
		return "", fmt.Errorf("column cannot be nil")
	}
	if col.Autoincrement && tm.flavor == flavorPostgres {
		switch col.Type.Base {
		case schema.TypeInteger:
			return "SERIAL", nil
		case schema.TypeBigInt:
			return "BIGSERIAL", nil
		}
	}
	if col.Autoincrement && tm.flavor == flavorSQLite {
		// AUTOINCREMENT requires the INTEGER rowid alias
		return "INTEGER", nil
	}
	return tm.mapPrimitiveType(col.Type)
}

// mapPrimitiveType maps a primitive type to the backend
func (tm *TypeMapper) mapPrimitiveType(typeSpec schema.TypeSpec) (string, error) {
	switch typeSpec.Base {
	case schema.TypeString:
		if typeSpec.Length != nil {
			return fmt.Sprintf("VARCHAR(%d)", *typeSpec.Length), nil
		}
		return "VARCHAR(255)", nil // Default length

	case schema.TypeText:
		return "TEXT", nil

	case schema.TypeInteger:
		return "INTEGER", nil

	case schema.TypeBigInt:
		return "BIGINT", nil

	case schema.TypeFloat:
		switch tm.flavor {
		case flavorSQLite:
			return "REAL", nil
		case flavorMySQL:
			return "DOUBLE", nil
		default:
			return "DOUBLE PRECISION", nil
		}

	case schema.TypeDecimal:
		if typeSpec.Precision != nil && typeSpec.Scale != nil {
			return fmt.Sprintf("NUMERIC(%d,%d)", *typeSpec.Precision, *typeSpec.Scale), nil
		}
		return "NUMERIC", nil

	case schema.TypeBool:
		return "BOOLEAN", nil

	case schema.TypeTimestamp:
		switch tm.flavor {
		case flavorPostgres:
			return "TIMESTAMP WITH TIME ZONE", nil
		case flavorMySQL:
			return "DATETIME", nil
		default:
			return "TIMESTAMP", nil
		}

	case schema.TypeDate:
		return "DATE", nil

	case schema.TypeTime:
		return "TIME", nil

	case schema.TypeUUID:
		if tm.flavor == flavorPostgres {
			return "UUID", nil
		}
		// stored as the 36-character text form
		return "CHAR(36)", nil

	case schema.TypeJSON:
		switch tm.flavor {
		case flavorPostgres:
			return "JSONB", nil
		case flavorSQLite:
			return "TEXT", nil
		default:
			return "JSON", nil
		}

	default:
		return "", fmt.Errorf("unsupported type: %s", typeSpec.Base)
	}
}

// MapNullability returns NOT NULL for required columns and nothing otherwise
func (tm *TypeMapper) MapNullability(col *schema.Column) string {
	if col.Nullable {
		return ""
	}
	return "NOT NULL"
}

// MapDefault returns the DEFAULT clause for a column, empty if none
func (tm *TypeMapper) MapDefault(col *schema.Column) string {
	if strings.TrimSpace(col.Default) == "" {
		return ""
	}
	return "DEFAULT " + col.Default
}

// inlineAutoincrement reports whether the column carries its own
// autoincrement keyword instead of a SERIAL type
func (tm *TypeMapper) inlineAutoincrement(col *schema.Column) string {
	if !col.Autoincrement {
		return ""
	}
	switch tm.flavor {
	case flavorSQLite:
		return "PRIMARY KEY AUTOINCREMENT"
	case flavorMySQL:
		return "AUTO_INCREMENT"
	default:
		return ""
	}
}
