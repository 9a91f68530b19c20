package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// indexLossReason explains what happens to idx when col is dropped and
// recreated as a UUID column, or returns false when idx is unaffected.
func indexLossReason(idx IndexSpec, fk ForeignKeyConstraint) (string, bool) {
	if idx.Name == fk.IndexName || !slices.Contains(idx.Columns, fk.Column) {
		return "", false
	}
	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}
	return fmt.Sprintf("%s on (%s) includes %s and is not recreated", kind, strings.Join(idx.Columns, ", "), fk.Column), true
}

// collectIndexLossWarnings lists indexes on dependent tables that are
// dropped or shrunk together with a referencing column. Only the supporting
// index derived from the constraint name is rebuilt.
func collectIndexLossWarnings(ctx context.Context, in SchemaIntrospector, plan *MigrationPlan) ([]string, error) {
	cache := make(map[string][]IndexSpec)
	var warnings []string
	for _, fk := range plan.ForeignKeys {
		idxs, ok := cache[fk.Table]
		if !ok {
			var err error
			idxs, err = in.Indexes(ctx, fk.Table)
			if err != nil {
				return nil, fmt.Errorf("indexes of %s: %w", fk.Table, err)
			}
			cache[fk.Table] = idxs
		}
		for _, idx := range idxs {
			if reason, lost := indexLossReason(idx, fk); lost {
				warnings = append(warnings, fmt.Sprintf("%s.%s: %s", fk.Table, idx.Name, reason))
			}
		}
	}
	return warnings, nil
}
