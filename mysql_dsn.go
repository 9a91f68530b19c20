package main

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlDSNWithSessionOptions normalises a MySQL DSN for the migration
// session. Multi-statement mode stays off: every statement is issued alone.
func mysqlDSNWithSessionOptions(baseDSN string) (string, error) {
	cfg, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.MultiStatements = false
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// extractMySQLDBName pulls the database name from a MySQL DSN.
func extractMySQLDBName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("cannot extract database name from DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return cfg.DBName, nil
}
