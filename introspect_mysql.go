package main

import (
	"context"
	"strings"
)

// mysqlIntrospector reads INFORMATION_SCHEMA for the connection's current
// database.
type mysqlIntrospector struct {
	exec SQLExecutor
}

func (m *mysqlIntrospector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := m.exec.Query(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, stringValue(r[0]))
	}
	return tables, nil
}

func (m *mysqlIntrospector) Columns(ctx context.Context, table string) ([]ColumnSpec, error) {
	rows, err := m.exec.Query(ctx,
		`SELECT COLUMN_NAME, IS_NULLABLE, DATA_TYPE, COLUMN_TYPE
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`,
		table,
	)
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnSpec, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, ColumnSpec{
			Name:       stringValue(r[0]),
			Nullable:   stringValue(r[1]) == "YES",
			DataType:   strings.ToLower(stringValue(r[2])),
			ColumnType: strings.ToLower(stringValue(r[3])),
		})
	}
	return cols, nil
}

// PrimaryKey leaves Name empty: MySQL primary keys are always "PRIMARY" and
// cannot be addressed by name in DDL.
func (m *mysqlIntrospector) PrimaryKey(ctx context.Context, table string) (*PrimaryKeySpec, error) {
	rows, err := m.exec.Query(ctx,
		`SELECT COLUMN_NAME
		 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		 ORDER BY ORDINAL_POSITION`,
		table,
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	pk := &PrimaryKeySpec{}
	for _, r := range rows {
		pk.Columns = append(pk.Columns, stringValue(r[0]))
	}
	return pk, nil
}

func (m *mysqlIntrospector) ForeignKeys(ctx context.Context, table string) ([]ForeignKeySpec, error) {
	rows, err := m.exec.Query(ctx,
		`SELECT kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME,
		        kcu.REFERENCED_TABLE_NAME, kcu.REFERENCED_COLUMN_NAME,
		        rc.UPDATE_RULE, rc.DELETE_RULE
		 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		 JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		   ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
		   AND kcu.TABLE_SCHEMA = rc.CONSTRAINT_SCHEMA
		   AND kcu.TABLE_NAME = rc.TABLE_NAME
		 WHERE kcu.TABLE_SCHEMA = DATABASE() AND kcu.TABLE_NAME = ?
		   AND kcu.REFERENCED_TABLE_SCHEMA = DATABASE()
		   AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		 ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`,
		table,
	)
	if err != nil {
		return nil, err
	}

	var fks []ForeignKeySpec
	index := make(map[string]int)
	for _, r := range rows {
		name := stringValue(r[0])
		i, ok := index[name]
		if !ok {
			fks = append(fks, ForeignKeySpec{
				Name:         name,
				RefTable:     stringValue(r[2]),
				UpdateAction: stringValue(r[4]),
				DeleteAction: stringValue(r[5]),
			})
			i = len(fks) - 1
			index[name] = i
		}
		fks[i].Columns = append(fks[i].Columns, stringValue(r[1]))
		fks[i].RefColumns = append(fks[i].RefColumns, stringValue(r[3]))
	}
	return fks, nil
}

func (m *mysqlIntrospector) Indexes(ctx context.Context, table string) ([]IndexSpec, error) {
	rows, err := m.exec.Query(ctx,
		`SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		 FROM INFORMATION_SCHEMA.STATISTICS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY'
		   AND COLUMN_NAME IS NOT NULL
		 ORDER BY INDEX_NAME, SEQ_IN_INDEX`,
		table,
	)
	if err != nil {
		return nil, err
	}

	var idxs []IndexSpec
	index := make(map[string]int)
	for _, r := range rows {
		name := stringValue(r[0])
		i, ok := index[name]
		if !ok {
			nonUnique, _ := int64Value(r[2])
			idxs = append(idxs, IndexSpec{Name: name, Unique: nonUnique == 0})
			i = len(idxs) - 1
			index[name] = i
		}
		idxs[i].Columns = append(idxs[i].Columns, stringValue(r[1]))
	}
	return idxs, nil
}

// SequenceName is always empty: AUTO_INCREMENT state lives on the column and
// disappears with it.
func (m *mysqlIntrospector) SequenceName(context.Context, string, string) (string, error) {
	return "", nil
}
