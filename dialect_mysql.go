package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlErrCantDropFieldOrKey = 1091
	mysqlErrMultiplePriKey     = 1068
	mysqlErrDupKeyName         = 1061
	mysqlUUIDColumnType        = "CHAR(36)"
	mysqlDoctrineGUIDComment   = "(DC2Type:guid)"
)

type mysqlDialect struct {
	doctrineComments bool
}

func (d *mysqlDialect) Name() string { return "MySQL" }

func (d *mysqlDialect) QuoteIdent(name string) string { return mysqlIdent(name) }

func (d *mysqlDialect) Table(name string) string { return mysqlIdent(name) }

func (d *mysqlDialect) Placeholder(int) string { return "?" }

func (d *mysqlDialect) IsUUIDColumn(col ColumnSpec) bool {
	switch strings.ToLower(strings.TrimSpace(col.ColumnType)) {
	case "char(36)", "binary(16)":
		return true
	}
	return false
}

// IsIntegerColumn accepts every MySQL integer type, signed or not, with or
// without a display width.
func (d *mysqlDialect) IsIntegerColumn(col ColumnSpec) bool {
	full := strings.ToLower(strings.TrimSpace(col.ColumnType))
	if i := strings.IndexAny(full, "( "); i >= 0 {
		full = full[:i]
	}
	for _, t := range []string{strings.ToLower(strings.TrimSpace(col.DataType)), full} {
		switch t {
		case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
			return true
		}
	}
	return false
}

// uuidType renders the column type with the optional Doctrine comment.
func (d *mysqlDialect) uuidType(notNull bool) string {
	t := mysqlUUIDColumnType
	if notNull {
		t += " NOT NULL"
	} else {
		t += " DEFAULT NULL"
	}
	if d.doctrineComments {
		t += fmt.Sprintf(" COMMENT '%s'", mysqlDoctrineGUIDComment)
	}
	return t
}

func (d *mysqlDialect) AddUUIDColumn(table, column string, first bool) []string {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD %s %s", mysqlIdent(table), mysqlIdent(column), d.uuidType(false))
	if first {
		stmt += " FIRST"
	}
	return []string{stmt}
}

func (d *mysqlDialect) RenameUUIDColumn(table, from, to string, nullable bool) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s CHANGE %s %s %s",
		mysqlIdent(table), mysqlIdent(from), mysqlIdent(to), d.uuidType(!nullable))}
}

func (d *mysqlDialect) DropPrimaryKey(table string, _ PrimaryKeySpec) string {
	return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", mysqlIdent(table))
}

func (d *mysqlDialect) AddPrimaryKey(table string, pk PrimaryKeySpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", mysqlIdent(table), quotedColumnList(mysqlIdent, pk.Columns))
}

func (d *mysqlDialect) DropForeignKey(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", mysqlIdent(table), mysqlIdent(name))
}

func (d *mysqlDialect) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", mysqlIdent(table), mysqlIdent(column))
}

// DropIdentifier drops key and column in one statement: an AUTO_INCREMENT
// column must stay keyed, so the key cannot go first on its own.
func (d *mysqlDialect) DropIdentifier(table string, pk *PrimaryKeySpec, idColumn string) []string {
	if pk == nil {
		return []string{d.DropColumn(table, idColumn)}
	}
	return []string{fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY, DROP COLUMN %s", mysqlIdent(table), mysqlIdent(idColumn))}
}

func (d *mysqlDialect) AddForeignKey(fk ForeignKeyConstraint, refTable, refColumn string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)%s",
		mysqlIdent(fk.Table), mysqlIdent(fk.Name), mysqlIdent(fk.Column),
		mysqlIdent(refTable), mysqlIdent(refColumn), referentialActions(fk))
}

func (d *mysqlDialect) CreateIndex(name, table, column string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", mysqlIdent(name), mysqlIdent(table), mysqlIdent(column))
}

func (d *mysqlDialect) IsAlreadyDropped(err error) bool {
	return mysqlErrorNumber(err) == mysqlErrCantDropFieldOrKey
}

func (d *mysqlDialect) IsAlreadyExists(err error) bool {
	switch mysqlErrorNumber(err) {
	case mysqlErrMultiplePriKey, mysqlErrDupKeyName:
		return true
	}
	return false
}

func mysqlErrorNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}
