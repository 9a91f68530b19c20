package main

import (
	"fmt"
	"strings"
)

// Dialect abstracts the DDL capabilities of a database engine so the
// migrator can issue the same phases against PostgreSQL and MySQL.
// Statement builders return SQL only; nothing here touches a connection.
type Dialect interface {
	// Name returns a human-readable name ("PostgreSQL", "MySQL").
	Name() string

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// Table returns the table reference used in statements.
	Table(name string) string

	// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// IsUUIDColumn reports whether col already stores UUIDs.
	IsUUIDColumn(col ColumnSpec) bool

	// IsIntegerColumn reports whether col holds integer identifiers.
	IsIntegerColumn(col ColumnSpec) bool

	// AddUUIDColumn adds a nullable UUID column. first asks for it to be
	// placed before existing columns where the engine supports that.
	AddUUIDColumn(table, column string, first bool) []string

	// RenameUUIDColumn renames a temporary UUID column, re-applying NOT NULL
	// when nullable is false.
	RenameUUIDColumn(table, from, to string, nullable bool) []string

	// DropPrimaryKey drops a table's primary key.
	DropPrimaryKey(table string, pk PrimaryKeySpec) string

	// AddPrimaryKey creates a primary key.
	AddPrimaryKey(table string, pk PrimaryKeySpec) string

	DropForeignKey(table, name string) string
	DropColumn(table, column string) string

	// DropIdentifier removes the original primary key, the integer identifier
	// column and its backing sequence. pk is nil when the table had no key.
	DropIdentifier(table string, pk *PrimaryKeySpec, idColumn string) []string

	// AddForeignKey recreates fk against refTable(refColumn).
	AddForeignKey(fk ForeignKeyConstraint, refTable, refColumn string) string

	CreateIndex(name, table, column string) string

	// IsAlreadyDropped reports whether err means the object to drop is gone.
	IsAlreadyDropped(err error) bool

	// IsAlreadyExists reports whether err means the object to create exists.
	IsAlreadyExists(err error) bool
}

// DialectOptions carries engine-independent DDL switches.
type DialectOptions struct {
	// Schema is the PostgreSQL schema holding the migrated tables.
	Schema string
	// DoctrineComments tags UUID columns with Doctrine type comments.
	DoctrineComments bool
}

// newDialect returns a Dialect implementation for the given database type.
func newDialect(dbType string, opts DialectOptions) (Dialect, error) {
	switch dbType {
	case "postgres":
		schema := opts.Schema
		if schema == "" {
			schema = "public"
		}
		return &postgresDialect{schema: schema, doctrineComments: opts.DoctrineComments}, nil
	case "mysql":
		return &mysqlDialect{doctrineComments: opts.DoctrineComments}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q (must be postgres or mysql)", dbType)
	}
}

// referentialActions renders ON DELETE / ON UPDATE clauses. NO ACTION is the
// engine default and is left out.
func referentialActions(fk ForeignKeyConstraint) string {
	var b strings.Builder
	if a := normalizeAction(fk.DeleteAction); a != "" {
		b.WriteString(" ON DELETE " + a)
	}
	if a := normalizeAction(fk.UpdateAction); a != "" {
		b.WriteString(" ON UPDATE " + a)
	}
	return b.String()
}

func normalizeAction(action string) string {
	a := strings.ToUpper(strings.TrimSpace(action))
	if a == "NO ACTION" {
		return ""
	}
	return a
}
