// Package testdb builds throwaway SQLite databases with the library schema.
package testdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"libcat/internal/dblib"
)

// Schema is the library catalog schema in SQLite syntax.
const Schema = `
CREATE TABLE libraries (
	library_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	address TEXT
);
CREATE TABLE themes (
	theme_id INTEGER PRIMARY KEY AUTOINCREMENT,
	theme_name TEXT NOT NULL
);
CREATE TABLE books (
	book_id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	author TEXT,
	library_id INTEGER NOT NULL REFERENCES libraries(library_id),
	theme_id INTEGER NOT NULL REFERENCES themes(theme_id),
	quantity INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE readers (
	reader_id INTEGER PRIMARY KEY AUTOINCREMENT,
	full_name TEXT NOT NULL,
	phone TEXT
);
CREATE TABLE subscriptions (
	sub_id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL REFERENCES books(book_id),
	reader_id INTEGER NOT NULL REFERENCES readers(reader_id),
	give_date DATE NOT NULL,
	return_date DATE
);
CREATE TABLE employees (
	employee_id INTEGER PRIMARY KEY AUTOINCREMENT,
	full_name TEXT NOT NULL,
	position TEXT,
	library_id INTEGER NOT NULL REFERENCES libraries(library_id)
);
`

// New creates a temporary SQLite database with the library schema and
// returns a gateway over it. Both are cleaned up with the test.
func New(t *testing.T, opts ...dblib.Option) *dblib.Gateway {
	t.Helper()

	path := filepath.Join(t.TempDir(), "libcat.db")
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	gw, err := dblib.Open(db, dblib.SQLite, opts...)
	if err != nil {
		db.Close()
		t.Fatalf("Failed to open gateway: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	return gw
}

// Exec runs a fixture statement directly, failing the test on error.
func Exec(t *testing.T, gw *dblib.Gateway, stmt string, args ...any) int64 {
	t.Helper()
	res, err := gw.DB().ExecContext(context.Background(), stmt, args...)
	if err != nil {
		t.Fatalf("Fixture statement failed: %v\n%s", err, stmt)
	}
	id, _ := res.LastInsertId()
	return id
}

// Count returns the number of rows in table.
func Count(t *testing.T, gw *dblib.Gateway, table string) int {
	t.Helper()
	var n int
	if err := gw.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// Seed inserts a small catalog: two libraries, two themes, three books and
// two readers. It returns the ids by name.
func Seed(t *testing.T, gw *dblib.Gateway) map[string]int64 {
	t.Helper()
	ids := map[string]int64{}
	ids["central"] = Exec(t, gw, "INSERT INTO libraries (name, address) VALUES ('Central', '1 Main St')")
	ids["branch"] = Exec(t, gw, "INSERT INTO libraries (name, address) VALUES ('Branch', '2 Side St')")
	ids["fiction"] = Exec(t, gw, "INSERT INTO themes (theme_name) VALUES ('Fiction')")
	ids["science"] = Exec(t, gw, "INSERT INTO themes (theme_name) VALUES ('Science')")
	ids["dune"] = Exec(t, gw, "INSERT INTO books (title, author, library_id, theme_id, quantity) VALUES ('Dune', 'Herbert', ?, ?, 3)", ids["central"], ids["fiction"])
	ids["cosmos"] = Exec(t, gw, "INSERT INTO books (title, author, library_id, theme_id, quantity) VALUES ('Cosmos', 'Sagan', ?, ?, 2)", ids["central"], ids["science"])
	ids["contact"] = Exec(t, gw, "INSERT INTO books (title, author, library_id, theme_id, quantity) VALUES ('Contact', 'Sagan', ?, ?, 1)", ids["central"], ids["fiction"])
	ids["ann"] = Exec(t, gw, "INSERT INTO readers (full_name, phone) VALUES ('Ann Lee', '555-0100')")
	ids["bob"] = Exec(t, gw, "INSERT INTO readers (full_name, phone) VALUES ('Bob Stone', '555-0101')")
	return ids
}
