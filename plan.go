package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

const (
	defaultUUIDColumn = "__uuid__"
	defaultIDColumn   = "id"
	tempColumnSuffix  = "_to_uuid"
)

// buildPlan introspects the schema once and freezes everything the later
// phases need. It validates before returning, so a failed plan means no
// statement has been issued.
func buildPlan(ctx context.Context, in SchemaIntrospector, d Dialect, table, idColumn, uuidColumn string) (*MigrationPlan, error) {
	if idColumn == "" {
		idColumn = defaultIDColumn
	}
	if uuidColumn == "" {
		uuidColumn = defaultUUIDColumn
	}

	tables, err := in.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if !slices.Contains(tables, table) {
		return nil, &LookupError{Table: table}
	}

	cols, err := in.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	idCol, err := lookupColumn(cols, table, idColumn)
	if err != nil {
		return nil, err
	}
	if d.IsUUIDColumn(idCol) {
		return nil, &AlreadyMigratedError{Table: table, Column: idColumn, Type: idCol.ColumnType}
	}
	if !d.IsIntegerColumn(idCol) {
		return nil, &UnsupportedConfigurationError{
			Reason: fmt.Sprintf("%s.%s is %s, not an integer column", table, idColumn, idCol.ColumnType),
		}
	}
	if _, err := lookupColumn(cols, table, uuidColumn); err == nil {
		return nil, fmt.Errorf("column %s.%s already exists; an earlier run may have been interrupted", table, uuidColumn)
	}

	pk, err := in.PrimaryKey(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", table, err)
	}
	if pk != nil {
		if err := validatePrimaryKey(pk, cols, table); err != nil {
			return nil, err
		}
		seq, err := in.SequenceName(ctx, table, idColumn)
		if err != nil {
			return nil, fmt.Errorf("sequence of %s.%s: %w", table, idColumn, err)
		}
		pk.Sequence = seq
	}

	plan := &MigrationPlan{
		Table:      table,
		IDColumn:   idColumn,
		UUIDColumn: uuidColumn,
		PrimaryKey: pk,
	}

	for _, owner := range tables {
		fks, err := in.ForeignKeys(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", owner, err)
		}
		var ownerCols []ColumnSpec
		var ownerPK *PrimaryKeySpec
		loaded := false

		for _, fk := range fks {
			if fk.RefTable != table {
				continue
			}
			if len(fk.Columns) != 1 {
				return nil, &UnsupportedConfigurationError{
					Reason: fmt.Sprintf("composite foreign key %s on %s (%s)", fk.Name, owner, strings.Join(fk.Columns, ", ")),
				}
			}
			if fk.RefColumns[0] != idColumn {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf(
					"%s.%s references %s.%s, not %s; left untouched",
					owner, fk.Columns[0], table, fk.RefColumns[0], idColumn))
				continue
			}

			if !loaded {
				if owner == table {
					ownerCols, ownerPK = cols, pk
				} else {
					if ownerCols, err = in.Columns(ctx, owner); err != nil {
						return nil, fmt.Errorf("columns of %s: %w", owner, err)
					}
					if ownerPK, err = in.PrimaryKey(ctx, owner); err != nil {
						return nil, fmt.Errorf("primary key of %s: %w", owner, err)
					}
				}
				loaded = true
			}

			key := fk.Columns[0]
			col, err := lookupColumn(ownerCols, owner, key)
			if err != nil {
				return nil, err
			}
			c := ForeignKeyConstraint{
				Table:        owner,
				Column:       key,
				TempColumn:   key + tempColumnSuffix,
				Nullable:     col.Nullable,
				Name:         fk.Name,
				DeleteAction: normalizeAction(fk.DeleteAction),
				UpdateAction: normalizeAction(fk.UpdateAction),
				IndexName:    supportingIndexName(fk.Name),
				PrimaryKey:   ownerPK,
				InPrimaryKey: ownerPK.Contains(key),
			}
			for _, prev := range plan.ForeignKeys {
				if prev.Table == owner && prev.Column == key {
					return nil, &UnsupportedConfigurationError{
						Reason: fmt.Sprintf("%s.%s carries two foreign keys to %s (%s, %s)", owner, key, table, prev.Name, fk.Name),
					}
				}
			}
			if _, err := lookupColumn(ownerCols, owner, c.TempColumn); err == nil {
				return nil, fmt.Errorf("column %s.%s already exists; an earlier run may have been interrupted", owner, c.TempColumn)
			}
			plan.ForeignKeys = append(plan.ForeignKeys, c)
		}
	}

	warnings, err := collectIndexLossWarnings(ctx, in, plan)
	if err != nil {
		return nil, err
	}
	plan.Warnings = append(plan.Warnings, warnings...)

	return plan, nil
}

func validatePrimaryKey(pk *PrimaryKeySpec, cols []ColumnSpec, table string) error {
	if len(pk.Columns) == 0 {
		return fmt.Errorf("primary key of %s has no columns", table)
	}
	for _, c := range pk.Columns {
		if _, err := lookupColumn(cols, table, c); err != nil {
			return err
		}
	}
	return nil
}

// supportingIndexName derives the index name from a constraint name by
// swapping its naming prefix and keeping the suffix: FK_ABC -> IDX_ABC.
func supportingIndexName(constraint string) string {
	switch {
	case strings.HasPrefix(constraint, "FK_"):
		return "IDX_" + strings.TrimPrefix(constraint, "FK_")
	case strings.HasPrefix(constraint, "fk_"):
		return "idx_" + strings.TrimPrefix(constraint, "fk_")
	case strings.HasSuffix(constraint, "_fkey"):
		return strings.TrimSuffix(constraint, "_fkey") + "_idx"
	default:
		return constraint + "_idx"
	}
}
