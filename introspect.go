package main

import (
	"context"
	"fmt"
	"strconv"
)

// SchemaIntrospector reads the live schema. Implementations are
// side-effect free; the migrator only calls them while planning.
type SchemaIntrospector interface {
	// ListTables returns base table names in a stable order.
	ListTables(ctx context.Context) ([]string, error)

	// Columns returns a table's columns in ordinal order.
	Columns(ctx context.Context, table string) ([]ColumnSpec, error)

	// PrimaryKey returns the table's primary key, or nil if it has none.
	// Sequence is not filled in; see SequenceName.
	PrimaryKey(ctx context.Context, table string) (*PrimaryKeySpec, error)

	// ForeignKeys returns the foreign keys declared on table.
	ForeignKeys(ctx context.Context, table string) ([]ForeignKeySpec, error)

	// Indexes returns the table's non-primary indexes.
	Indexes(ctx context.Context, table string) ([]IndexSpec, error)

	// SequenceName returns the sequence backing column, or "" when the
	// engine keeps auto-increment state on the column itself.
	SequenceName(ctx context.Context, table, column string) (string, error)
}

// newIntrospector returns the introspector matching the dialect's engine.
func newIntrospector(dbType string, exec SQLExecutor, schema string) (SchemaIntrospector, error) {
	switch dbType {
	case "postgres":
		if schema == "" {
			schema = "public"
		}
		return &postgresIntrospector{exec: exec, schema: schema}, nil
	case "mysql":
		return &mysqlIntrospector{exec: exec}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q (must be postgres or mysql)", dbType)
	}
}

// lookupColumn finds name among cols.
func lookupColumn(cols []ColumnSpec, table, name string) (ColumnSpec, error) {
	for _, c := range cols {
		if c.Name == name {
			return c, nil
		}
	}
	return ColumnSpec{}, &LookupError{Table: table, Column: name}
}

// --- Row value helpers shared by the catalog readers ---

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func boolValue(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		n, err := int64Value(v)
		return err == nil && n != 0
	}
}

// int64Value converts an integer identifier as returned by either driver.
func int64Value(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		if x > 1<<63-1 {
			return 0, fmt.Errorf("identifier %d overflows int64", x)
		}
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported identifier type %T", v)
	}
}
