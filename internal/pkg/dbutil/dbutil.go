package dbutil

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect selects the placeholder style for queries produced by gendry,
// which always emits "?".
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Finalize rewrites placeholders for the target dialect.
func Finalize(d Dialect, query string, args []interface{}) (string, []interface{}) {
	if d == DialectPostgres {
		return sqlx.Rebind(sqlx.DOLLAR, query), args
	}
	return query, args
}

// IsAlreadyExists reports DDL errors that can be ignored when re-running migrations.
func IsAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}
