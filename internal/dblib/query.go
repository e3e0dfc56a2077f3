package dblib

import (
	"fmt"
	"regexp"
	"strings"
)

// Args hands out dialect placeholders while collecting the bound values.
type Args struct {
	h      DatabaseHandler
	values []any
}

func NewArgs(h DatabaseHandler) *Args {
	return &Args{h: h}
}

// Add binds v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return a.h.Placeholder(len(a.values))
}

func (a *Args) Values() []any { return a.values }

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is a plain SQL identifier.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

func columnError(t *Table, column, role string) error {
	return &ValidationError{
		Fields: []string{column},
		Reason: fmt.Sprintf("unknown %s column for table %s", role, t.Name),
	}
}

func checkTable(t *Table) error {
	if t == nil || len(t.Columns) == 0 {
		return &ValidationError{Reason: "table has no columns"}
	}
	if !ValidIdent(t.Name) {
		return &ValidationError{Fields: []string{t.Name}, Reason: "invalid table name"}
	}
	return nil
}

// BuildListQuery selects every column of t, optionally filtered by a
// case-insensitive substring match on fs.SearchColumn and ordered by
// fs.SortColumn. Unknown columns are rejected, never defaulted.
func BuildListQuery(h DatabaseHandler, t *Table, fs FilterSort) (string, []any, error) {
	if err := checkTable(t); err != nil {
		return "", nil, err
	}
	if !t.HasColumn(fs.SortColumn) {
		return "", nil, columnError(t, fs.SortColumn, "sort")
	}
	if (fs.Search != "" || fs.SearchColumn != "") && !t.HasColumn(fs.SearchColumn) {
		return "", nil, columnError(t, fs.SearchColumn, "search")
	}

	args := NewArgs(h)
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(h.QuoteIdent(t.Name))
	if fs.Search != "" {
		b.WriteString(" WHERE ")
		b.WriteString(h.ContainsExpr(h.QuoteIdent(fs.SearchColumn), args.Add(ContainsPattern(fs.Search))))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(h.QuoteIdent(fs.SortColumn))
	b.WriteString(" ")
	b.WriteString(fs.Direction.String())
	return b.String(), args.Values(), nil
}

// recordColumns returns the non-key columns of rec in table order, rejecting
// any column the table does not have.
func recordColumns(t *Table, rec Record) ([]string, error) {
	for col := range rec {
		if !t.HasColumn(col) {
			return nil, columnError(t, col, "record")
		}
	}
	pk := t.PrimaryKey()
	var cols []string
	for _, col := range t.Columns {
		if col == pk {
			continue
		}
		if _, ok := rec[col]; ok {
			cols = append(cols, col)
		}
	}
	return cols, nil
}

// BuildInsertQuery inserts rec into t. The primary key is left to the database.
func BuildInsertQuery(h DatabaseHandler, t *Table, rec Record) (string, []any, error) {
	if err := checkTable(t); err != nil {
		return "", nil, err
	}
	cols, err := recordColumns(t, rec)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, &ValidationError{Reason: "no columns to insert"}
	}

	args := NewArgs(h)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = h.QuoteIdent(col)
		placeholders[i] = args.Add(rec[col])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		h.QuoteIdent(t.Name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return query, args.Values(), nil
}

// BuildUpdateQuery sets the non-key columns of rec on the row whose primary
// key equals key. The primary key itself is never assigned.
func BuildUpdateQuery(h DatabaseHandler, t *Table, rec Record, key any) (string, []any, error) {
	if err := checkTable(t); err != nil {
		return "", nil, err
	}
	cols, err := recordColumns(t, rec)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, &ValidationError{Reason: "no columns to update"}
	}

	args := NewArgs(h)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", h.QuoteIdent(col), args.Add(rec[col]))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		h.QuoteIdent(t.Name), strings.Join(sets, ", "), h.QuoteIdent(t.PrimaryKey()), args.Add(key))
	return query, args.Values(), nil
}

// BuildDeleteQuery deletes the row whose primary key equals key.
func BuildDeleteQuery(h DatabaseHandler, t *Table, key any) (string, []any, error) {
	if err := checkTable(t); err != nil {
		return "", nil, err
	}
	args := NewArgs(h)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		h.QuoteIdent(t.Name), h.QuoteIdent(t.PrimaryKey()), args.Add(key))
	return query, args.Values(), nil
}

// BuildLookupQuery lists the (key, display) pairs of a referenced table
// ordered by the display column.
func BuildLookupQuery(h DatabaseHandler, ref Reference) (string, error) {
	for _, ident := range []string{ref.Table, ref.KeyColumn, ref.DisplayColumn} {
		if !ValidIdent(ident) {
			return "", &ValidationError{Fields: []string{ident}, Reason: "invalid reference identifier"}
		}
	}
	display := h.QuoteIdent(ref.DisplayColumn)
	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		h.QuoteIdent(ref.KeyColumn), display, h.QuoteIdent(ref.Table), display), nil
}
