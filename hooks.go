package main

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// runHooks reads each SQL file, expands {{schema}}, and executes every
// statement on exec. schemaName is the PostgreSQL schema or the MySQL
// database the run targets.
func runHooks(ctx context.Context, exec SQLExecutor, cfg *MigrationConfig, files []string, phase, schemaName string, report Reporter) error {
	if len(files) == 0 {
		return nil
	}
	report("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		path := cfg.resolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		sql := strings.ReplaceAll(string(data), "{{schema}}", schemaName)
		stmts := splitStatements(sql, hookFlavor(cfg.Database.Type))

		report("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if err := exec.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w", phase, f, i+1, &StatementFailedError{Statement: stmt, Err: err})
			}
		}
	}
	return nil
}

// sqlFlavor selects the lexical rules splitStatements applies.
type sqlFlavor int

const (
	flavorPostgres sqlFlavor = iota
	// flavorMySQL adds backslash escapes in strings and # line comments, and
	// drops dollar quoting.
	flavorMySQL
)

func hookFlavor(dbType string) sqlFlavor {
	if dbType == "mysql" {
		return flavorMySQL
	}
	return flavorPostgres
}

// splitStatements splits SQL text on semicolons, ignoring empty entries.
// Semicolons inside quoted strings and identifiers, comments and
// dollar-quoted bodies do not end a statement.
func splitStatements(sql string, flavor sqlFlavor) []string {
	var stmts []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}
	lineComment := func(i int) int {
		end := strings.IndexByte(sql[i:], '\n')
		if end < 0 {
			end = len(sql) - i
		}
		current.WriteString(sql[i : i+end])
		return i + end
	}

	isMySQL := flavor == flavorMySQL
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			i = copyQuoted(&current, sql, i, c, isMySQL)
		case c == '`':
			i = copyQuoted(&current, sql, i, c, false)
		case c == '-' && strings.HasPrefix(sql[i:], "--"):
			i = lineComment(i)
		case c == '#' && isMySQL:
			i = lineComment(i)
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			i = copyBlockComment(&current, sql, i)
		case c == '$' && !isMySQL:
			i = copyDollarQuoted(&current, sql, i)
		case c == ';':
			flush()
			i++
		default:
			current.WriteByte(c)
			i++
		}
	}
	flush()

	return stmts
}

// copyQuoted copies a quoted run starting at sql[i] (the opening quote q)
// and returns the index after its closing quote. A doubled quote is an
// escaped quote; with backslash set, so is a backslash-escaped one.
func copyQuoted(b *strings.Builder, sql string, i int, q byte, backslash bool) int {
	b.WriteByte(q)
	i++
	for i < len(sql) {
		c := sql[i]
		b.WriteByte(c)
		i++
		if backslash && c == '\\' && i < len(sql) {
			b.WriteByte(sql[i])
			i++
			continue
		}
		if c != q {
			continue
		}
		if i < len(sql) && sql[i] == q {
			b.WriteByte(q)
			i++
			continue
		}
		break
	}
	return i
}

// copyBlockComment copies a possibly nested /* */ comment.
func copyBlockComment(b *strings.Builder, sql string, i int) int {
	depth := 0
	for i < len(sql) {
		switch {
		case strings.HasPrefix(sql[i:], "/*"):
			depth++
			b.WriteString("/*")
			i += 2
		case strings.HasPrefix(sql[i:], "*/"):
			depth--
			b.WriteString("*/")
			i += 2
			if depth == 0 {
				return i
			}
		default:
			b.WriteByte(sql[i])
			i++
		}
	}
	return i
}

// copyDollarQuoted copies a PostgreSQL $tag$ ... $tag$ body. A '$' that
// does not open a tag (for example a $1 parameter) is copied as-is.
func copyDollarQuoted(b *strings.Builder, sql string, i int) int {
	end := i + 1
	for end < len(sql) && (sql[end] == '_' || isAlnum(sql[end])) {
		end++
	}
	if end >= len(sql) || sql[end] != '$' || (end > i+1 && sql[i+1] >= '0' && sql[i+1] <= '9') {
		b.WriteByte('$')
		return i + 1
	}
	tag := sql[i : end+1]
	closeAt := strings.Index(sql[end+1:], tag)
	if closeAt < 0 {
		b.WriteString(sql[i:])
		return len(sql)
	}
	stop := end + 1 + closeAt + len(tag)
	b.WriteString(sql[i:stop])
	return stop
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
