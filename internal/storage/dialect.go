package storage

import (
	"fmt"
	"strings"
)

// Dialect selects driver, DSN decoration and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) DriverName() string {
	return string(d)
}

// DSN decorates a sqlite path so every connection enforces foreign keys and
// waits on a busy database instead of failing. Postgres DSNs pass through.
func (d Dialect) DSN(dsn string) string {
	if d != DialectSQLite || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func quote(ident string) string {
	return `"` + ident + `"`
}
