package main

// ColumnSpec is a single column as reported by schema introspection.
type ColumnSpec struct {
	Name       string
	Nullable   bool
	DataType   string // e.g. "int4", "uuid", "int", "char"
	ColumnType string // full type e.g. "integer", "char(36)", "int unsigned"
}

// PrimaryKeySpec describes a table's primary key. Name is empty on engines
// that do not name primary keys (MySQL).
type PrimaryKeySpec struct {
	Name     string
	Columns  []string // ordered as declared
	Sequence string   // backing sequence of the identifier column, if any
}

// Contains reports whether col is one of the key columns.
func (pk *PrimaryKeySpec) Contains(col string) bool {
	if pk == nil {
		return false
	}
	for _, c := range pk.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// ForeignKeySpec is a foreign key as declared on its owning table.
type ForeignKeySpec struct {
	Name         string
	Columns      []string
	RefTable     string
	RefColumns   []string
	DeleteAction string // CASCADE, SET NULL, ... ; empty or NO ACTION means none
	UpdateAction string
}

// IndexSpec is a secondary (non-primary) index.
type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKeyConstraint is one foreign key pointing at the migrated table,
// together with everything needed to drop and recreate it.
type ForeignKeyConstraint struct {
	Table        string // owning table
	Column       string // referencing column
	TempColumn   string // <column>_to_uuid
	Nullable     bool
	Name         string
	DeleteAction string
	UpdateAction string
	IndexName    string // supporting index created on restore

	// PrimaryKey is the owning table's primary key (nil when it has none).
	// InPrimaryKey is set when Column is part of it, which forces the key
	// to be dropped and recreated around the column swap.
	PrimaryKey   *PrimaryKeySpec
	InPrimaryKey bool
}

// MigrationPlan is built once from introspection and never re-derived while
// the schema is being changed.
type MigrationPlan struct {
	Table      string
	IDColumn   string
	UUIDColumn string

	// PrimaryKey is the target table's original key; nil when it had none.
	PrimaryKey  *PrimaryKeySpec
	ForeignKeys []ForeignKeyConstraint
	Warnings    []string
}

// RestoredPrimaryKey returns the key to create over the UUID identifier.
// A table without a primary key gets one over the identifier column, since
// the restored foreign keys need a key to reference.
func (p MigrationPlan) RestoredPrimaryKey() PrimaryKeySpec {
	if p.PrimaryKey != nil {
		return PrimaryKeySpec{Name: p.PrimaryKey.Name, Columns: p.PrimaryKey.Columns}
	}
	return PrimaryKeySpec{Columns: []string{p.IDColumn}}
}
