package dblib

import (
	"fmt"
	"strings"
)

// NullDisplay is how a NULL value is rendered in tables and pickers.
const NullDisplay = "null"

type DatabaseType int

const (
	SQLite DatabaseType = iota
	PostgreSQL
	MySQL
)

func (t DatabaseType) String() string {
	switch t {
	case SQLite:
		return "sqlite"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		return fmt.Sprintf("DatabaseType(%d)", int(t))
	}
}

type databaseFeature struct {
	embedded              bool
	positionalPlaceholder bool
	// drivers lists the database/sql driver names accepted for this type;
	// the first entry is the default.
	drivers []string
}

var databaseFeatures = map[DatabaseType]databaseFeature{
	SQLite: {
		embedded:              true,
		positionalPlaceholder: false,
		drivers:               []string{"sqlite3"},
	},
	PostgreSQL: {
		embedded:              false,
		positionalPlaceholder: true,
		drivers:               []string{"postgres", "pgx"},
	},
	MySQL: {
		embedded:              false,
		positionalPlaceholder: false,
		drivers:               []string{"mysql"},
	},
}

// ParseDatabaseType maps a driver or engine name to a DatabaseType.
func ParseDatabaseType(name string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx", "pq":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return 0, fmt.Errorf("unsupported database type %q", name)
	}
}

// FetchMode selects how many rows Execute reads back.
type FetchMode int

const (
	FetchNone FetchMode = iota
	FetchOne
	FetchAll
)

func (m FetchMode) String() string {
	switch m {
	case FetchNone:
		return "none"
	case FetchOne:
		return "one"
	case FetchAll:
		return "all"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

// Record maps column names to values; a nil value is SQL NULL.
type Record map[string]any

// Result is the outcome of a single Execute call.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// Record returns row i as a Record keyed by column name.
func (r *Result) Record(i int) Record {
	if r == nil || i < 0 || i >= len(r.Rows) {
		return nil
	}
	rec := make(Record, len(r.Columns))
	for j, col := range r.Columns {
		if j < len(r.Rows[i]) {
			rec[col] = r.Rows[i][j]
		}
	}
	return rec
}

// Table describes a browsable table: its ordered columns and the
// references its foreign-key columns make to other tables.
type Table struct {
	Name    string
	Columns []string
	// References is keyed by the local foreign-key column.
	References map[string]Reference
}

// PrimaryKey returns the first column, which is the primary key by convention.
func (t *Table) PrimaryKey() string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}
	return t.Columns[0]
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Reference returns the foreign-key reference for a local column.
func (t *Table) Reference(column string) (Reference, bool) {
	if t == nil || t.References == nil {
		return Reference{}, false
	}
	ref, ok := t.References[column]
	return ref, ok
}

// Reference points a foreign-key column at the referenced table's key
// and the column shown to the user in place of the raw key.
type Reference struct {
	Table         string
	KeyColumn     string
	DisplayColumn string
}

// ForeignKey is a single-column constraint discovered in the database catalog.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

type SortDirection int

const (
	Asc SortDirection = iota
	Desc
)

func (d SortDirection) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Toggle returns the opposite direction.
func (d SortDirection) Toggle() SortDirection {
	if d == Desc {
		return Asc
	}
	return Desc
}

// FilterSort is the browsing state of one table view.
type FilterSort struct {
	SearchColumn string
	Search       string
	SortColumn   string
	Direction    SortDirection
}

// DefaultFilterSort searches the second column (the first when there is only
// one), sorts by the primary key ascending and has an empty search string.
func DefaultFilterSort(t *Table) FilterSort {
	if t == nil || len(t.Columns) == 0 {
		return FilterSort{}
	}
	search := t.Columns[0]
	if len(t.Columns) > 1 {
		search = t.Columns[1]
	}
	return FilterSort{
		SearchColumn: search,
		SortColumn:   t.Columns[0],
		Direction:    Asc,
	}
}
