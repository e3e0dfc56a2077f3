package dblib

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PostgresHandler implements DatabaseHandler for PostgreSQL databases.
type PostgresHandler struct{}

func (h *PostgresHandler) Type() DatabaseType { return PostgreSQL }

// splitQualified separates an optional schema prefix; tables without one are
// looked up in the connection's current schema.
func splitQualified(tableName string) (schema, rel string) {
	if dot := strings.IndexByte(tableName, '.'); dot != -1 {
		return tableName[:dot], tableName[dot+1:]
	}
	return "", tableName
}

// LoadColumns loads the column names of a PostgreSQL table.
func (h *PostgresHandler) LoadColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	schema, rel := splitQualified(tableName)
	query := `SELECT column_name
			FROM information_schema.columns
			WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
			ORDER BY ordinal_position`
	rows, err := q.QueryContext(ctx, query, schema, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// LoadForeignKeys loads single-column foreign key constraints for a PostgreSQL table.
func (h *PostgresHandler) LoadForeignKeys(ctx context.Context, q Querier, tableName string) ([]ForeignKey, error) {
	schema, rel := splitQualified(tableName)
	query := `SELECT a.attname, ref.relname, ra.attname
			FROM pg_constraint con
			JOIN pg_class c ON c.oid = con.conrelid
			JOIN pg_namespace n ON n.oid = c.relnamespace
			JOIN pg_class ref ON ref.oid = con.confrelid
			JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = con.conkey[1]
			JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = con.confkey[1]
			WHERE con.contype = 'f'
			  AND array_length(con.conkey, 1) = 1
			  AND n.nspname = COALESCE(NULLIF($1, ''), current_schema())
			  AND c.relname = $2
			ORDER BY con.conname`
	rows, err := q.QueryContext(ctx, query, schema, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, err
		}
		keys = append(keys, fk)
	}
	return keys, rows.Err()
}

func (h *PostgresHandler) QuoteIdent(ident string) string {
	return quoteIdent(PostgreSQL, ident)
}

func (h *PostgresHandler) Placeholder(position int) string {
	return placeholder(PostgreSQL, position)
}

func (h *PostgresHandler) ContainsExpr(expr, ph string) string {
	return fmt.Sprintf("%s::text ILIKE %s", expr, ph)
}

func (h *PostgresHandler) DaysBetween(expr, ph string) string {
	return fmt.Sprintf("(CAST(%s AS DATE) - %s)", ph, expr)
}

func (h *PostgresHandler) DateValue(d time.Time) any {
	return d
}
