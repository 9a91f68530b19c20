package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// dsnEnvVar supplies database.dsn when the config file leaves it empty.
const dsnEnvVar = "UUIDFERRY_DSN"

// MigrationConfig holds the full migration configuration.
type MigrationConfig struct {
	IDColumn         string         `toml:"id_column" yaml:"id_column"`
	UUIDColumn       string         `toml:"uuid_column" yaml:"uuid_column"`
	UUIDVersion      string         `toml:"uuid_version" yaml:"uuid_version"` // v4|v7
	Transaction      string         `toml:"transaction" yaml:"transaction"`   // none|single
	PreflightCheck   bool           `toml:"preflight_check" yaml:"preflight_check"`
	DoctrineComments bool           `toml:"doctrine_comments" yaml:"doctrine_comments"`
	Tables           []string       `toml:"tables" yaml:"tables"`
	Database         DatabaseConfig `toml:"database" yaml:"database"`
	Hooks            HooksConfig    `toml:"hooks" yaml:"hooks"`

	// configDir is the directory containing the config file, used to resolve relative SQL paths.
	configDir string
}

// DatabaseConfig identifies the database engine and connection string.
type DatabaseConfig struct {
	Type   string `toml:"type" yaml:"type"` // "postgres" or "mysql"
	DSN    string `toml:"dsn" yaml:"dsn"`
	Schema string `toml:"schema" yaml:"schema"` // postgres only
}

type HooksConfig struct {
	BeforeMigrate []string `toml:"before_migrate" yaml:"before_migrate"`
	AfterMigrate  []string `toml:"after_migrate" yaml:"after_migrate"`
}

func defaultConfig() MigrationConfig {
	return MigrationConfig{
		IDColumn:    defaultIDColumn,
		UUIDColumn:  defaultUUIDColumn,
		UUIDVersion: "v4",
		Transaction: "none",
	}
}

// loadConfig reads a TOML (or, by extension, YAML) config file and returns a
// MigrationConfig with defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	default:
		err = decodeTOML(data, &cfg)
	}
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeTOML(data []byte, cfg *MigrationConfig) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(data []byte, cfg *MigrationConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// normalize trims values, fills defaults that a decoder may have blanked and
// validates every key.
func (c *MigrationConfig) normalize() error {
	c.IDColumn = strings.TrimSpace(c.IDColumn)
	if c.IDColumn == "" {
		return fmt.Errorf("id_column must not be empty")
	}
	c.UUIDColumn = strings.TrimSpace(c.UUIDColumn)
	if c.UUIDColumn == "" {
		c.UUIDColumn = defaultUUIDColumn
	}
	if c.UUIDColumn == c.IDColumn {
		return fmt.Errorf("uuid_column must differ from id_column")
	}

	switch c.UUIDVersion {
	case "v4", "v7":
	default:
		return fmt.Errorf("uuid_version must be one of: v4, v7")
	}
	switch c.Transaction {
	case "none", "single":
	default:
		return fmt.Errorf("transaction must be one of: none, single")
	}

	tables, err := normalizeTables(c.Tables)
	if err != nil {
		return err
	}
	c.Tables = tables

	// Database validation
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	switch c.Database.Type {
	case "postgres":
		c.Database.Schema = strings.TrimSpace(c.Database.Schema)
		if c.Database.Schema == "" {
			c.Database.Schema = "public"
		}
	case "mysql":
		if c.Database.Schema != "" {
			return fmt.Errorf("database.schema is a PostgreSQL-only option")
		}
		if c.Transaction == "single" {
			return fmt.Errorf("transaction \"single\" is not supported for mysql (DDL commits implicitly)")
		}
	case "":
		return fmt.Errorf("database.type is required (must be postgres or mysql)")
	default:
		return fmt.Errorf("unsupported database.type %q (must be postgres or mysql)", c.Database.Type)
	}

	if c.Database.DSN == "" {
		c.Database.DSN = os.Getenv(dsnEnvVar)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (or set %s)", dsnEnvVar)
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// dialectOptions returns the dialect settings derived from the config.
func (c *MigrationConfig) dialectOptions() DialectOptions {
	return DialectOptions{Schema: c.Database.Schema, DoctrineComments: c.DoctrineComments}
}

// normalizeTables trims table names and rejects an empty list, blank
// entries and duplicates.
func normalizeTables(tables []string) ([]string, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("tables must list at least one table")
	}
	out := make([]string, 0, len(tables))
	seen := make(map[string]bool, len(tables))
	for i, t := range tables {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("tables[%d] is empty", i)
		}
		if seen[t] {
			return nil, fmt.Errorf("table %q is listed twice", t)
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}
