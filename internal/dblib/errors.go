package dblib

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotConnected = errors.New("no database connection")
	ErrSelection    = errors.New("exactly one row must be selected")
	ErrRecordGone   = errors.New("record no longer exists")
)

// ConnectionError means the database could not be reached at startup.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryExecutionError is a statement rejected by the engine. The transaction it ran
// in has been rolled back.
type QueryExecutionError struct {
	Statement string
	// Code is the engine's error code when the driver exposes one
	// (SQLSTATE for PostgreSQL, error number for MySQL, result code for SQLite).
	Code string
	Err  error
}

func (e *QueryExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query failed [%s]: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// ValidationError is raised client-side before any statement is sent.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Fields, ", "), e.Reason)
}

// SchemaIntrospectionError means a table's structure could not be determined.
type SchemaIntrospectionError struct {
	Table  string
	Reason string
}

func (e *SchemaIntrospectionError) Error() string {
	return fmt.Sprintf("cannot get structure of table %q: %s", e.Table, e.Reason)
}

// OpError names the user-facing operation that failed.
type OpError struct {
	Op    string
	Table string
	Err   error
}

func (e *OpError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// errorCode extracts the engine-specific error code from a driver error.
func errorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Sprintf("%d", myErr.Number)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code.Error()
	}
	return ""
}

// IsConstraintViolation reports whether err came from a violated
// integrity constraint (foreign key, unique, not null, check).
func IsConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1048, 1062, 1451, 1452, 3819:
			return true
		}
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
