package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteHandler implements DatabaseHandler for SQLite databases.
type SQLiteHandler struct{}

func (h *SQLiteHandler) Type() DatabaseType { return SQLite }

// LoadColumns loads the column names of a SQLite table.
func (h *SQLiteHandler) LoadColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", tableName)
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

// LoadForeignKeys loads foreign key constraints for a SQLite table.
// Composite keys (seq > 0) are skipped.
func (h *SQLiteHandler) LoadForeignKeys(ctx context.Context, q Querier, tableName string) ([]ForeignKey, error) {
	// cols: id, seq, table, from, to, on_update, on_delete, match
	rows, err := q.QueryContext(ctx, `SELECT id, seq, "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[int]int{}
	var keys []ForeignKey
	var ids []int
	for rows.Next() {
		var id, seq int
		var refTable, fromCol string
		var toCol sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &fromCol, &toCol); err != nil {
			return nil, err
		}
		counts[id]++
		if seq != 0 {
			continue
		}
		// An empty "to" references the primary key of the foreign table.
		keys = append(keys, ForeignKey{Column: fromCol, RefTable: refTable, RefColumn: toCol.String})
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	single := keys[:0]
	for i, fk := range keys {
		if counts[ids[i]] == 1 {
			single = append(single, fk)
		}
	}
	return single, nil
}

func (h *SQLiteHandler) QuoteIdent(ident string) string {
	return quoteIdent(SQLite, ident)
}

func (h *SQLiteHandler) Placeholder(position int) string {
	return placeholder(SQLite, position)
}

// SQLite's LIKE is case-insensitive for ASCII only.
func (h *SQLiteHandler) ContainsExpr(expr, ph string) string {
	return fmt.Sprintf(`CAST(%s AS TEXT) LIKE %s ESCAPE '\'`, expr, ph)
}

func (h *SQLiteHandler) DaysBetween(expr, ph string) string {
	return fmt.Sprintf("CAST(julianday(%s) - julianday(%s) AS INTEGER)", ph, expr)
}

// Dates are stored as ISO text so they compare as strings.
func (h *SQLiteHandler) DateValue(d time.Time) any {
	return d.Format("2006-01-02")
}
