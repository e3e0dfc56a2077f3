package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is the subset of *sql.DB and *sql.Tx used for catalog lookups.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DatabaseHandler defines database-specific operations for a particular database type.
// Each backend (PostgreSQL, MySQL, SQLite) implements this interface to provide
// schema introspection and the SQL fragments that differ between dialects.
type DatabaseHandler interface {
	Type() DatabaseType

	// LoadColumns returns the column names of a table in ordinal order.
	// An unknown table yields an empty slice and no error.
	LoadColumns(ctx context.Context, q Querier, tableName string) ([]string, error)

	// LoadForeignKeys returns the single-column foreign keys declared on a table.
	LoadForeignKeys(ctx context.Context, q Querier, tableName string) ([]ForeignKey, error)

	// QuoteIdent quotes an identifier (table name, column name, etc.) for safe use in SQL.
	//   - MySQL: backticks `identifier`
	//   - PostgreSQL, SQLite: double quotes "identifier"
	QuoteIdent(ident string) string

	// Placeholder returns the parameter placeholder for position i (1-indexed).
	//   - PostgreSQL: $1, $2, $3, ...
	//   - MySQL, SQLite: ?, ?, ?, ...
	Placeholder(position int) string

	// ContainsExpr renders a case-insensitive match of expr, cast to text,
	// against a LIKE pattern bound at placeholder. Backslash escapes
	// wildcards in the pattern.
	ContainsExpr(expr, placeholder string) string

	// DaysBetween renders the whole number of days from the date in
	// column expr to the date bound at placeholder.
	DaysBetween(expr, placeholder string) string

	// DateValue converts a calendar date to the argument the driver binds
	// for a DATE comparison.
	DateValue(d time.Time) any
}

// NewDatabaseHandler creates a DatabaseHandler for the given database type.
func NewDatabaseHandler(dbType DatabaseType) (DatabaseHandler, error) {
	switch dbType {
	case MySQL:
		return &MySQLHandler{}, nil
	case PostgreSQL:
		return &PostgresHandler{}, nil
	case SQLite:
		return &SQLiteHandler{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %v", dbType)
	}
}

// Executor is the gateway surface the engine packages depend on.
type Executor interface {
	Execute(ctx context.Context, stmt string, args []any, mode FetchMode) (*Result, error)
	Columns(ctx context.Context, table string) []string
	ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
	Handler() DatabaseHandler
}
