package dblib

import (
	"context"
	"fmt"
	"time"
)

// MySQLHandler implements DatabaseHandler for MySQL databases.
type MySQLHandler struct{}

func (h *MySQLHandler) Type() DatabaseType { return MySQL }

// LoadColumns loads the column names of a MySQL table in the current database.
func (h *MySQLHandler) LoadColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	query := `SELECT COLUMN_NAME
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`
	rows, err := q.QueryContext(ctx, query, tableName)
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

// LoadForeignKeys loads single-column foreign key constraints for a MySQL table.
func (h *MySQLHandler) LoadForeignKeys(ctx context.Context, q Querier, tableName string) ([]ForeignKey, error) {
	query := `SELECT k.COLUMN_NAME, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME
			FROM information_schema.key_column_usage k
			WHERE k.table_schema = DATABASE()
			  AND k.table_name = ?
			  AND k.referenced_table_name IS NOT NULL
			  AND (SELECT COUNT(*) FROM information_schema.key_column_usage k2
			       WHERE k2.constraint_schema = k.constraint_schema
			         AND k2.constraint_name = k.constraint_name
			         AND k2.table_name = k.table_name) = 1
			ORDER BY k.constraint_name`
	rows, err := q.QueryContext(ctx, query, tableName)
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

func (h *MySQLHandler) QuoteIdent(ident string) string {
	return quoteIdent(MySQL, ident)
}

func (h *MySQLHandler) Placeholder(position int) string {
	return placeholder(MySQL, position)
}

// Backslash is MySQL's default LIKE escape; the default collations are
// case-insensitive.
func (h *MySQLHandler) ContainsExpr(expr, ph string) string {
	return fmt.Sprintf("CAST(%s AS CHAR) LIKE %s", expr, ph)
}

func (h *MySQLHandler) DaysBetween(expr, ph string) string {
	return fmt.Sprintf("DATEDIFF(%s, %s)", ph, expr)
}

func (h *MySQLHandler) DateValue(d time.Time) any {
	return d
}
