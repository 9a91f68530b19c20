package main

import (
	"context"
	"fmt"
)

// postgresIntrospector reads pg_catalog for a single schema.
type postgresIntrospector struct {
	exec   SQLExecutor
	schema string
}

func (p *postgresIntrospector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.exec.Query(ctx, `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
			AND NOT c.relispartition
			AND n.nspname = $1
		ORDER BY c.relname`, p.schema)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, stringValue(r[0]))
	}
	return tables, nil
}

func (p *postgresIntrospector) Columns(ctx context.Context, table string) ([]ColumnSpec, error) {
	rows, err := p.exec.Query(ctx, `
		SELECT
			a.attname,
			NOT a.attnotnull AS is_nullable,
			t.typname,
			format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_type t ON t.oid = a.atttypid
		WHERE n.nspname = $1
			AND c.relname = $2
			AND a.attnum > 0
			AND NOT a.attisdropped
		ORDER BY a.attnum`, p.schema, table)
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnSpec, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, ColumnSpec{
			Name:       stringValue(r[0]),
			Nullable:   boolValue(r[1]),
			DataType:   stringValue(r[2]),
			ColumnType: stringValue(r[3]),
		})
	}
	return cols, nil
}

func (p *postgresIntrospector) PrimaryKey(ctx context.Context, table string) (*PrimaryKeySpec, error) {
	rows, err := p.exec.Query(ctx, `
		SELECT con.conname, a.attname
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = u.attnum
		WHERE con.contype = 'p'
			AND n.nspname = $1
			AND c.relname = $2
		ORDER BY u.ord`, p.schema, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	pk := &PrimaryKeySpec{Name: stringValue(rows[0][0])}
	for _, r := range rows {
		pk.Columns = append(pk.Columns, stringValue(r[1]))
	}
	return pk, nil
}

func (p *postgresIntrospector) ForeignKeys(ctx context.Context, table string) ([]ForeignKeySpec, error) {
	rows, err := p.exec.Query(ctx, `
		SELECT
			con.conname,
			ca.attname AS child_column,
			pc.relname AS parent_table,
			pa.attname AS parent_column,
			con.confdeltype::text,
			con.confupdtype::text
		FROM pg_constraint con
		JOIN pg_class cc ON cc.oid = con.conrelid
		JOIN pg_namespace cn ON cn.oid = cc.relnamespace
		JOIN pg_class pc ON pc.oid = con.confrelid
		JOIN pg_namespace pn ON pn.oid = pc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS u(child_attnum, parent_attnum, ord)
		JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = u.child_attnum
		JOIN pg_attribute pa ON pa.attrelid = pc.oid AND pa.attnum = u.parent_attnum
		WHERE con.contype = 'f'
			AND con.conparentid = 0
			AND cn.nspname = $1
			AND cc.relname = $2
			AND pn.nspname = $1
		ORDER BY con.conname, u.ord`, p.schema, table)
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
				DeleteAction: pgReferentialAction(stringValue(r[4])),
				UpdateAction: pgReferentialAction(stringValue(r[5])),
			})
			i = len(fks) - 1
			index[name] = i
		}
		fks[i].Columns = append(fks[i].Columns, stringValue(r[1]))
		fks[i].RefColumns = append(fks[i].RefColumns, stringValue(r[3]))
	}
	return fks, nil
}

func (p *postgresIntrospector) Indexes(ctx context.Context, table string) ([]IndexSpec, error) {
	rows, err := p.exec.Query(ctx, `
		SELECT i.relname, a.attname, x.indisunique
		FROM pg_index x
		JOIN pg_class i ON i.oid = x.indexrelid
		JOIN pg_class c ON c.oid = x.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(x.indkey::int2[]) WITH ORDINALITY AS u(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = u.attnum
		WHERE NOT x.indisprimary
			AND n.nspname = $1
			AND c.relname = $2
		ORDER BY i.relname, u.ord`, p.schema, table)
	if err != nil {
		return nil, err
	}

	var idxs []IndexSpec
	index := make(map[string]int)
	for _, r := range rows {
		name := stringValue(r[0])
		i, ok := index[name]
		if !ok {
			idxs = append(idxs, IndexSpec{Name: name, Unique: boolValue(r[2])})
			i = len(idxs) - 1
			index[name] = i
		}
		idxs[i].Columns = append(idxs[i].Columns, stringValue(r[1]))
	}
	return idxs, nil
}

// SequenceName falls back to the serial naming convention when the column
// does not own a sequence; the drop is IF EXISTS so a guess is harmless.
func (p *postgresIntrospector) SequenceName(ctx context.Context, table, column string) (string, error) {
	qualified := pgIdent(p.schema) + "." + pgIdent(table)
	rows, err := p.exec.Query(ctx, "SELECT pg_get_serial_sequence($1, $2)", qualified, column)
	if err != nil {
		return "", err
	}
	if len(rows) > 0 && rows[0][0] != nil {
		if seq := stringValue(rows[0][0]); seq != "" {
			return seq, nil
		}
	}
	return pgIdent(p.schema) + "." + pgIdent(fmt.Sprintf("%s_%s_seq", table, column)), nil
}

// pgReferentialAction decodes pg_constraint.confdeltype / confupdtype.
func pgReferentialAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}
