package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

var (
	configPath string
	onlyTables []string
)

var rootCmd = &cobra.Command{
	Use:   "uuidferry [config.toml]",
	Short: "Convert integer primary keys to UUIDs, foreign keys included",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [config.toml]",
	Short: "Run the migration (same as the root command)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

var planCmd = &cobra.Command{
	Use:   "plan [config.toml]",
	Short: "Print what a migration would do without changing anything",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the uuidferry version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to migration config file (TOML, or YAML by extension)")
	rootCmd.PersistentFlags().StringSliceVar(&onlyTables, "table", nil, "table to migrate, overriding the config's tables (repeatable)")
	rootCmd.AddCommand(migrateCmd, planCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig loads the config named by the positional argument or the
// --config flag and applies the --table override.
func resolveConfig(args []string) (*MigrationConfig, error) {
	// positional arg takes precedence over --config flag
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return nil, fmt.Errorf("config file required: uuidferry <config.toml> or uuidferry --config <config.toml>")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if len(onlyTables) > 0 {
		tables, err := normalizeTables(onlyTables)
		if err != nil {
			return nil, fmt.Errorf("--table: %w", err)
		}
		cfg.Tables = tables
	}
	return cfg, nil
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	log.Printf("uuidferry %s: integer ids to UUIDs", versionString())
	log.Printf(
		"config: database=%s id_column=%s uuid_version=%s transaction=%s preflight_check=%t tables=%s",
		cfg.Database.Type,
		cfg.IDColumn,
		cfg.UUIDVersion,
		cfg.Transaction,
		cfg.PreflightCheck,
		strings.Join(cfg.Tables, ","),
	)

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	gen, err := newUUIDGenerator(cfg.UUIDVersion)
	if err != nil {
		return err
	}
	if err := migrateTables(ctx, sess, cfg, gen, logReporter()); err != nil {
		return err
	}
	if err := sess.Commit(ctx); err != nil {
		return err
	}

	log.Printf("migration completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// migrateTables runs the hooks and one full migration per configured table,
// in order. The first failure stops the run.
func migrateTables(ctx context.Context, sess *session, cfg *MigrationConfig, gen UUIDGenerator, report Reporter) error {
	if err := runHooks(ctx, sess.exec, cfg, cfg.Hooks.BeforeMigrate, "before_migrate", sess.schemaName, report); err != nil {
		return fmt.Errorf("before_migrate hooks: %w", err)
	}

	for _, table := range cfg.Tables {
		m, err := NewMigrator(sess.exec, sess.dialect, sess.introspector, MigratorOptions{
			IDColumn:       cfg.IDColumn,
			Generator:      gen,
			Report:         report,
			PreflightCheck: cfg.PreflightCheck,
		})
		if err != nil {
			return err
		}
		tableStart := time.Now()
		if err := m.Migrate(ctx, table, cfg.UUIDColumn); err != nil {
			return fmt.Errorf("migrate %s (stopped after phase %s): %w", table, m.Phase(), err)
		}
		report("  %s done in %s", table, time.Since(tableStart).Round(time.Millisecond))
	}

	if err := runHooks(ctx, sess.exec, cfg, cfg.Hooks.AfterMigrate, "after_migrate", sess.schemaName, report); err != nil {
		return fmt.Errorf("after_migrate hooks: %w", err)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	for _, table := range cfg.Tables {
		plan, err := buildPlan(ctx, sess.introspector, sess.dialect, table, cfg.IDColumn, cfg.UUIDColumn)
		if err != nil {
			return fmt.Errorf("plan %s: %w", table, err)
		}
		writePlan(cmd.OutOrStdout(), plan)
	}
	return nil
}

// writePlan prints a human-readable summary of plan.
func writePlan(w io.Writer, plan *MigrationPlan) {
	fmt.Fprintf(w, "%s.%s -> uuid\n", plan.Table, plan.IDColumn)
	if plan.PrimaryKey != nil {
		fmt.Fprintf(w, "  primary key: %s (%s)\n", displayName(plan.PrimaryKey.Name), strings.Join(plan.PrimaryKey.Columns, ", "))
		if plan.PrimaryKey.Sequence != "" {
			fmt.Fprintf(w, "  sequence: %s (dropped)\n", plan.PrimaryKey.Sequence)
		}
	} else {
		fmt.Fprintf(w, "  primary key: none (one is created on %s)\n", plan.IDColumn)
	}
	fmt.Fprintf(w, "  foreign keys: %d\n", len(plan.ForeignKeys))
	for _, fk := range plan.ForeignKeys {
		nullable := "NOT NULL"
		if fk.Nullable {
			nullable = "NULL"
		}
		fmt.Fprintf(w, "    * %s.%s %s [%s] on delete %s, on update %s, index %s\n",
			fk.Table, fk.Column, nullable, fk.Name, displayAction(fk.DeleteAction), displayAction(fk.UpdateAction), fk.IndexName)
		switch {
		case fk.PrimaryKey == nil:
			fmt.Fprintf(w, "      rows addressed by value (no primary key)\n")
		case fk.InPrimaryKey:
			fmt.Fprintf(w, "      part of primary key (%s), rebuilt\n", strings.Join(fk.PrimaryKey.Columns, ", "))
		}
	}
	for _, warn := range plan.Warnings {
		fmt.Fprintf(w, "  WARN: %s\n", warn)
	}
}

func displayAction(action string) string {
	if action == "" {
		return "NO ACTION"
	}
	return action
}

func displayName(name string) string {
	if name == "" {
		return "PRIMARY"
	}
	return name
}

// session is the one connection a run borrows, with the dialect and
// introspector bound to it.
type session struct {
	exec         SQLExecutor
	dialect      Dialect
	introspector SchemaIntrospector
	// schemaName is the PostgreSQL schema or MySQL database, for hooks.
	schemaName string

	commit func(context.Context) error
	close  func(context.Context)
}

// Commit finishes an open transaction. It is a no-op without one.
func (s *session) Commit(ctx context.Context) error {
	if s.commit == nil {
		return nil
	}
	commit := s.commit
	s.commit = nil
	if err := commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close rolls back anything uncommitted and releases the connection.
func (s *session) Close(ctx context.Context) {
	if s.close != nil {
		s.close(ctx)
	}
}

func openSession(ctx context.Context, cfg *MigrationConfig) (*session, error) {
	d, err := newDialect(cfg.Database.Type, cfg.dialectOptions())
	if err != nil {
		return nil, err
	}
	switch cfg.Database.Type {
	case "postgres":
		return openPostgresSession(ctx, cfg, d)
	case "mysql":
		return openMySQLSession(ctx, cfg, d)
	default:
		return nil, &UnsupportedConfigurationError{Reason: fmt.Sprintf("database type %q", cfg.Database.Type)}
	}
}

func openPostgresSession(ctx context.Context, cfg *MigrationConfig, d Dialect) (*session, error) {
	log.Printf("connecting to PostgreSQL...")
	conn, err := pgx.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	sess := &session{
		dialect:    d,
		schemaName: cfg.Database.Schema,
		close:      func(ctx context.Context) { conn.Close(ctx) },
	}
	if cfg.Transaction != "single" {
		sess.exec = newPgxExecutor(conn)
		if sess.introspector, err = newIntrospector(cfg.Database.Type, sess.exec, cfg.Database.Schema); err != nil {
			conn.Close(ctx)
			return nil, err
		}
		return sess, nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	log.Printf("running inside a single transaction")
	sess.exec = newPgxTxExecutor(tx)
	if sess.introspector, err = newIntrospector(cfg.Database.Type, sess.exec, cfg.Database.Schema); err != nil {
		_ = tx.Rollback(ctx)
		conn.Close(ctx)
		return nil, err
	}
	sess.commit = tx.Commit
	sess.close = func(ctx context.Context) {
		// Rollback after Commit is a no-op.
		_ = tx.Rollback(ctx)
		conn.Close(ctx)
	}
	return sess, nil
}

func openMySQLSession(ctx context.Context, cfg *MigrationConfig, d Dialect) (*session, error) {
	log.Printf("connecting to MySQL...")
	dsn, err := mysqlDSNWithSessionOptions(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	dbName, err := extractMySQLDBName(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	exec := newSQLConnExecutor(conn)
	in, err := newIntrospector(cfg.Database.Type, exec, "")
	if err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}
	return &session{
		exec:         exec,
		dialect:      d,
		introspector: in,
		schemaName:   dbName,
		close: func(context.Context) {
			conn.Close()
			db.Close()
		},
	}, nil
}
