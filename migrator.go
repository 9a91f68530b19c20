package main

import (
	"context"
	"fmt"
	"strings"
)

// Phase is a step of the transformation. Phases run strictly in order and
// never go back.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePrepared
	PhaseColumnsAdded
	PhaseUUIDsGenerated
	PhaseFkUUIDsPopulated
	PhaseOldFksDropped
	PhaseRenamed
	PhasePrimaryKeySwapped
	PhaseConstraintsRestored
	PhaseDone
)

var phaseNames = [...]string{
	PhaseNone:                "None",
	PhasePrepared:            "Prepared",
	PhaseColumnsAdded:        "ColumnsAdded",
	PhaseUUIDsGenerated:      "UuidsGenerated",
	PhaseFkUUIDsPopulated:    "FkUuidsPopulated",
	PhaseOldFksDropped:       "OldFksDropped",
	PhaseRenamed:             "Renamed",
	PhasePrimaryKeySwapped:   "PrimaryKeySwapped",
	PhaseConstraintsRestored: "ConstraintsRestored",
	PhaseDone:                "Done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MigratorOptions configures a Migrator.
type MigratorOptions struct {
	// IDColumn is the integer identifier column of every migrated table.
	IDColumn string
	// Generator produces UUIDs. Required.
	Generator UUIDGenerator
	// Report receives progress lines; nil discards them.
	Report Reporter
	// PreflightCheck verifies referential integrity before any mutation.
	PreflightCheck bool
}

// Migrator converts a table's integer primary key to UUIDs and carries the
// change through every foreign key that references it. It borrows the
// executor's connection and assumes nobody else writes to the affected
// tables while it runs.
type Migrator struct {
	db        SQLExecutor
	dialect   Dialect
	inspect   SchemaIntrospector
	mapper    *IdentityMapper
	report    Reporter
	idColumn  string
	preflight bool

	phase Phase
}

// NewMigrator wires the capabilities a migration consumes.
func NewMigrator(exec SQLExecutor, d Dialect, in SchemaIntrospector, opts MigratorOptions) (*Migrator, error) {
	if exec == nil || d == nil || in == nil {
		return nil, &UnsupportedConfigurationError{Reason: "executor, dialect and introspector are required"}
	}
	mapper, err := NewIdentityMapper(opts.Generator)
	if err != nil {
		return nil, err
	}
	report := opts.Report
	if report == nil {
		report = discardReporter()
	}
	idColumn := opts.IDColumn
	if idColumn == "" {
		idColumn = defaultIDColumn
	}
	return &Migrator{
		db:        exec,
		dialect:   d,
		inspect:   in,
		mapper:    mapper,
		report:    report,
		idColumn:  idColumn,
		preflight: opts.PreflightCheck,
	}, nil
}

// Phase returns the last phase completed by the most recent Migrate call.
// After a failure it tells how far the schema got.
func (m *Migrator) Phase() Phase { return m.phase }

// Plan introspects table and returns its frozen migration plan without
// changing anything.
func (m *Migrator) Plan(ctx context.Context, table, uuidColumn string) (*MigrationPlan, error) {
	return buildPlan(ctx, m.inspect, m.dialect, table, m.idColumn, uuidColumn)
}

// migration is the state of one Migrate call.
type migration struct {
	plan     MigrationPlan
	identity IdentityMap
}

// Migrate replaces table's integer identifier with UUIDs. uuidColumn is the
// temporary column name; empty means "__uuid__". On error the schema is left
// as the last completed phase produced it; nothing is rolled back.
func (m *Migrator) Migrate(ctx context.Context, table, uuidColumn string) error {
	m.phase = PhaseNone
	m.report("Migrating %s.%s to UUIDs...", table, m.idColumn)

	plan, err := m.Plan(ctx, table, uuidColumn)
	if err != nil {
		return err
	}
	m.phase = PhasePrepared
	m.reportPlan(plan)

	if m.preflight {
		if err := m.checkReferentialIntegrity(ctx, plan); err != nil {
			return err
		}
	}

	mig := &migration{plan: *plan}
	steps := []struct {
		phase Phase
		fn    func(context.Context, *migration) error
	}{
		{PhaseColumnsAdded, m.addUUIDColumns},
		{PhaseUUIDsGenerated, m.generateUUIDs},
		{PhaseFkUUIDsPopulated, m.populateForeignKeyUUIDs},
		{PhaseOldFksDropped, m.dropOldForeignKeys},
		{PhaseRenamed, m.renameForeignKeyColumns},
		{PhasePrimaryKeySwapped, m.swapPrimaryKey},
		{PhaseConstraintsRestored, m.restoreConstraints},
	}
	for _, step := range steps {
		if err := step.fn(ctx, mig); err != nil {
			return fmt.Errorf("%s: %s: %w", table, step.phase, err)
		}
		m.phase = step.phase
	}

	m.phase = PhaseDone
	m.report("Successfully migrated %s.%s to UUIDs!", table, plan.IDColumn)
	return nil
}

func (m *Migrator) reportPlan(plan *MigrationPlan) {
	if len(plan.ForeignKeys) == 0 {
		m.report("-> 0 foreign key detected.")
	} else {
		m.report("-> Detected the following foreign keys :")
		for _, fk := range plan.ForeignKeys {
			m.report("  * %s.%s", fk.Table, fk.Column)
		}
	}
	for _, w := range plan.Warnings {
		m.report("  WARN: %s", w)
	}
}

// exec runs a statement that must succeed.
func (m *Migrator) exec(ctx context.Context, stmt string, args ...any) error {
	if err := m.db.Exec(ctx, stmt, args...); err != nil {
		return &StatementFailedError{Statement: stmt, Err: err}
	}
	return nil
}

func (m *Migrator) execAll(ctx context.Context, stmts []string) error {
	for _, s := range stmts {
		if err := m.exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// execIdempotent runs stmt and ignores a failure only when benign classifies
// it as "already in the target state". Inside a transaction the statement
// runs under a savepoint so the ignored failure does not abort the rest.
func (m *Migrator) execIdempotent(ctx context.Context, stmt string, benign func(error) bool) error {
	run := func(x SQLExecutor) error { return x.Exec(ctx, stmt) }

	var err error
	if sp, ok := m.db.(savepointExecutor); ok {
		err = sp.Savepoint(ctx, run)
	} else {
		err = run(m.db)
	}
	if err == nil {
		return nil
	}
	if benign(err) {
		m.report("    (already applied, skipped: %s)", stmt)
		return nil
	}
	return &StatementFailedError{Statement: stmt, Err: err}
}

func (m *Migrator) query(ctx context.Context, stmt string, args ...any) ([][]any, error) {
	rows, err := m.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, &StatementFailedError{Statement: stmt, Err: err}
	}
	return rows, nil
}

// whereEquals renders "a = $1 AND b = $2" starting at placeholder first.
func (m *Migrator) whereEquals(cols []string, first int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = %s", m.dialect.QuoteIdent(c), m.dialect.Placeholder(first+i))
	}
	return strings.Join(parts, " AND ")
}

// checkReferentialIntegrity counts referencing values without a target row.
func (m *Migrator) checkReferentialIntegrity(ctx context.Context, plan *MigrationPlan) error {
	d := m.dialect
	for _, fk := range plan.ForeignKeys {
		q := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s d LEFT JOIN %s t ON d.%s = t.%s WHERE d.%s IS NOT NULL AND t.%s IS NULL",
			d.Table(fk.Table), d.Table(plan.Table),
			d.QuoteIdent(fk.Column), d.QuoteIdent(plan.IDColumn),
			d.QuoteIdent(fk.Column), d.QuoteIdent(plan.IDColumn))
		rows, err := m.query(ctx, q)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		n, err := int64Value(rows[0][0])
		if err != nil {
			return fmt.Errorf("integrity check of %s.%s: %w", fk.Table, fk.Column, err)
		}
		if n > 0 {
			return &DanglingReferenceError{Table: fk.Table, Column: fk.Column, Count: n}
		}
	}
	return nil
}

// --- Phases ---

func (m *Migrator) addUUIDColumns(ctx context.Context, mig *migration) error {
	p := mig.plan
	if err := m.execAll(ctx, m.dialect.AddUUIDColumn(p.Table, p.UUIDColumn, true)); err != nil {
		return err
	}
	for _, fk := range p.ForeignKeys {
		if err := m.execAll(ctx, m.dialect.AddUUIDColumn(fk.Table, fk.TempColumn, false)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) generateUUIDs(ctx context.Context, mig *migration) error {
	p := mig.plan
	d := m.dialect
	id := d.QuoteIdent(p.IDColumn)

	rows, err := m.query(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", id, d.Table(p.Table), id))
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		v, err := int64Value(r[0])
		if err != nil {
			return fmt.Errorf("%s.%s: %w", p.Table, p.IDColumn, err)
		}
		ids = append(ids, v)
	}

	identity, err := m.mapper.Generate(ids)
	if err != nil {
		return err
	}
	mig.identity = identity
	if len(ids) == 0 {
		return nil
	}

	m.report("-> Generating %d UUID(s)...", len(ids))
	update := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		d.Table(p.Table), d.QuoteIdent(p.UUIDColumn), d.Placeholder(1), id, d.Placeholder(2))
	for _, v := range ids {
		u, _ := identity.Lookup(v)
		if err := m.exec(ctx, update, u, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) populateForeignKeyUUIDs(ctx context.Context, mig *migration) error {
	if len(mig.plan.ForeignKeys) == 0 {
		return nil
	}
	m.report("-> Adding UUIDs to tables with foreign keys...")
	for _, fk := range mig.plan.ForeignKeys {
		var err error
		if fk.PrimaryKey == nil {
			err = m.populateByValue(ctx, mig, fk)
		} else {
			err = m.populateByRowKey(ctx, mig, fk)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// populateByRowKey writes each dependent row's UUID keyed by the row's own
// (possibly composite) primary key.
func (m *Migrator) populateByRowKey(ctx context.Context, mig *migration, fk ForeignKeyConstraint) error {
	d := m.dialect
	keyCols := fk.PrimaryKey.Columns
	sel := fmt.Sprintf("SELECT %s, %s FROM %s",
		quotedColumnList(d.QuoteIdent, keyCols), d.QuoteIdent(fk.Column), d.Table(fk.Table))
	rows, err := m.query(ctx, sel)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	m.report("  * Adding %d UUIDs to \"%s.%s\"...", len(rows), fk.Table, fk.Column)
	update := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s",
		d.Table(fk.Table), d.QuoteIdent(fk.TempColumn), d.Placeholder(1), m.whereEquals(keyCols, 2))
	for _, r := range rows {
		ref := r[len(keyCols)]
		if ref == nil {
			continue
		}
		u, err := m.resolve(mig, fk, ref)
		if err != nil {
			return err
		}
		args := append([]any{u}, r[:len(keyCols)]...)
		if err := m.exec(ctx, update, args...); err != nil {
			return err
		}
	}
	return nil
}

// populateByValue handles dependent tables without a primary key: rows are
// addressed by their old referencing value instead.
func (m *Migrator) populateByValue(ctx context.Context, mig *migration, fk ForeignKeyConstraint) error {
	d := m.dialect
	col := d.QuoteIdent(fk.Column)
	rows, err := m.query(ctx, fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL", col, d.Table(fk.Table), col))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	m.report("  * Adding %d UUIDs to \"%s.%s\" (no primary key, by value)...", len(rows), fk.Table, fk.Column)
	update := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		d.Table(fk.Table), d.QuoteIdent(fk.TempColumn), d.Placeholder(1), col, d.Placeholder(2))
	for _, r := range rows {
		u, err := m.resolve(mig, fk, r[0])
		if err != nil {
			return err
		}
		if err := m.exec(ctx, update, u, r[0]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) resolve(mig *migration, fk ForeignKeyConstraint, ref any) (string, error) {
	id, err := int64Value(ref)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", fk.Table, fk.Column, err)
	}
	u, ok := mig.identity.Lookup(id)
	if !ok {
		return "", &DanglingReferenceError{Table: fk.Table, Column: fk.Column, Value: ref}
	}
	return u, nil
}

func (m *Migrator) dropOldForeignKeys(ctx context.Context, mig *migration) error {
	m.report("-> Deleting previous id foreign keys...")
	d := m.dialect
	for _, fk := range mig.plan.ForeignKeys {
		if fk.InPrimaryKey {
			// An earlier constraint on the same table may already have dropped it.
			if err := m.execIdempotent(ctx, d.DropPrimaryKey(fk.Table, *fk.PrimaryKey), d.IsAlreadyDropped); err != nil {
				return err
			}
		}
		if err := m.exec(ctx, d.DropForeignKey(fk.Table, fk.Name)); err != nil {
			return err
		}
		if err := m.exec(ctx, d.DropColumn(fk.Table, fk.Column)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) renameForeignKeyColumns(ctx context.Context, mig *migration) error {
	m.report("-> Renaming temporary uuid foreign keys to previous foreign keys names...")
	for _, fk := range mig.plan.ForeignKeys {
		if err := m.execAll(ctx, m.dialect.RenameUUIDColumn(fk.Table, fk.TempColumn, fk.Column, fk.Nullable)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) swapPrimaryKey(ctx context.Context, mig *migration) error {
	m.report("-> Creating the uuid primary key...")
	p := mig.plan
	d := m.dialect
	if err := m.execAll(ctx, d.DropIdentifier(p.Table, p.PrimaryKey, p.IDColumn)); err != nil {
		return err
	}
	if err := m.execAll(ctx, d.RenameUUIDColumn(p.Table, p.UUIDColumn, p.IDColumn, false)); err != nil {
		return err
	}
	return m.exec(ctx, d.AddPrimaryKey(p.Table, p.RestoredPrimaryKey()))
}

func (m *Migrator) restoreConstraints(ctx context.Context, mig *migration) error {
	if len(mig.plan.ForeignKeys) > 0 {
		m.report("-> Restoring foreign keys and indexes...")
	}
	p := mig.plan
	d := m.dialect
	for _, fk := range p.ForeignKeys {
		if fk.InPrimaryKey {
			// Several constraints can share one owning key; the first restores it.
			if err := m.execIdempotent(ctx, d.AddPrimaryKey(fk.Table, *fk.PrimaryKey), d.IsAlreadyExists); err != nil {
				return err
			}
		}
		if err := m.exec(ctx, d.AddForeignKey(fk, p.Table, p.IDColumn)); err != nil {
			return err
		}
		if err := m.exec(ctx, d.CreateIndex(fk.IndexName, fk.Table, fk.Column)); err != nil {
			return err
		}
	}
	return nil
}
