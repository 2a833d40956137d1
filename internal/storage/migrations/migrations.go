// Package migrations embeds the schema of the durable stores. Each store applies
// its own migrations; this package only loads and splits them.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// Migration is one schema file split into statements.
type Migration struct {
	Version    string // file name without extension, e.g. "001_token_metadata"
	Statements []string
}

// Postgres returns the PostgreSQL migrations in version order.
func Postgres() ([]Migration, error) {
	return load(postgresFS, "postgres")
}

// ClickHouse returns the ClickHouse migrations in version order.
func ClickHouse() ([]Migration, error) {
	return load(clickhouseFS, "clickhouse")
}

func load(fsys fs.FS, dir string) ([]Migration, error) {
	names, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		stmts, err := Split(string(data))
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		if len(stmts) == 0 {
			continue
		}
		out = append(out, Migration{
			Version:    strings.TrimSuffix(path.Base(name), ".sql"),
			Statements: stmts,
		})
	}
	return out, nil
}

var errQuotedSemicolon = errors.New("semicolon inside a string literal")

// Split breaks a schema file into statements on semicolons. Lines starting with
// "--" are dropped. Semicolons inside quoted strings are rejected rather than
// parsed, so schema files must keep literals free of them.
func Split(sql string) ([]string, error) {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		kept = append(kept, line)
	}
	body := strings.Join(kept, "\n")

	quoted := false
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '\'' && i+1 < len(body) && body[i+1] == '\'':
			i++
		case body[i] == '\'':
			quoted = !quoted
		case body[i] == ';' && quoted:
			return nil, errQuotedSemicolon
		}
	}

	var stmts []string
	for _, part := range strings.Split(body, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}
