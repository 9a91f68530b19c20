package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUndefinedObject      = "42704"
	pgInvalidTableDef      = "42P16" // multiple primary keys for table are not allowed
	pgDuplicateTable       = "42P07" // relation (e.g. the key's index) already exists
	pgDoctrineUUIDTypeNote = "(DC2Type:uuid)"
)

type postgresDialect struct {
	schema           string
	doctrineComments bool
}

func (d *postgresDialect) Name() string { return "PostgreSQL" }

func (d *postgresDialect) QuoteIdent(name string) string { return pgIdent(name) }

func (d *postgresDialect) Table(name string) string {
	return pgIdent(d.schema) + "." + pgIdent(name)
}

func (d *postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d *postgresDialect) IsUUIDColumn(col ColumnSpec) bool {
	return strings.EqualFold(col.DataType, "uuid")
}

func (d *postgresDialect) IsIntegerColumn(col ColumnSpec) bool {
	switch strings.ToLower(col.DataType) {
	case "int2", "int4", "int8":
		return true
	}
	switch strings.ToLower(strings.TrimSpace(col.ColumnType)) {
	case "smallint", "integer", "bigint":
		return true
	}
	return false
}

func (d *postgresDialect) AddUUIDColumn(table, column string, _ bool) []string {
	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ADD %s UUID DEFAULT NULL", d.Table(table), pgIdent(column)),
	}
	if d.doctrineComments {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS '%s'",
			d.Table(table), pgIdent(column), pgDoctrineUUIDTypeNote))
	}
	return stmts
}

func (d *postgresDialect) RenameUUIDColumn(table, from, to string, nullable bool) []string {
	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", d.Table(table), pgIdent(from), pgIdent(to)),
	}
	if !nullable {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", d.Table(table), pgIdent(to)))
	}
	return stmts
}

func (d *postgresDialect) DropPrimaryKey(table string, pk PrimaryKeySpec) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Table(table), pgIdent(pk.Name))
}

func (d *postgresDialect) AddPrimaryKey(table string, pk PrimaryKeySpec) string {
	cols := quotedColumnList(pgIdent, pk.Columns)
	if pk.Name == "" {
		return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", d.Table(table), cols)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", d.Table(table), pgIdent(pk.Name), cols)
}

func (d *postgresDialect) DropForeignKey(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Table(table), pgIdent(name))
}

func (d *postgresDialect) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Table(table), pgIdent(column))
}

func (d *postgresDialect) DropIdentifier(table string, pk *PrimaryKeySpec, idColumn string) []string {
	var stmts []string
	if pk != nil && pk.Name != "" {
		stmts = append(stmts, d.DropPrimaryKey(table, *pk))
	}
	stmts = append(stmts, d.DropColumn(table, idColumn))
	if pk != nil && pk.Sequence != "" {
		// pg_get_serial_sequence already returns a quoted, qualified name.
		stmts = append(stmts, "DROP SEQUENCE IF EXISTS "+pk.Sequence)
	}
	return stmts
}

func (d *postgresDialect) AddForeignKey(fk ForeignKeyConstraint, refTable, refColumn string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)%s",
		d.Table(fk.Table), pgIdent(fk.Name), pgIdent(fk.Column),
		d.Table(refTable), pgIdent(refColumn), referentialActions(fk))
}

func (d *postgresDialect) CreateIndex(name, table, column string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", pgIdent(name), d.Table(table), pgIdent(column))
}

func (d *postgresDialect) IsAlreadyDropped(err error) bool {
	return pgErrorCode(err) == pgUndefinedObject
}

func (d *postgresDialect) IsAlreadyExists(err error) bool {
	switch pgErrorCode(err) {
	case pgInvalidTableDef, pgDuplicateTable:
		return true
	}
	return false
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
