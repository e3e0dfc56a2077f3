//go:build integration

package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"libcat/internal/browser"
	"libcat/internal/catalog"
	"libcat/internal/dblib"
)

const postgresSchema = `
CREATE TABLE libraries (library_id SERIAL PRIMARY KEY, name TEXT NOT NULL, address TEXT);
CREATE TABLE themes (theme_id SERIAL PRIMARY KEY, theme_name TEXT NOT NULL);
CREATE TABLE books (
	book_id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT,
	library_id INTEGER NOT NULL REFERENCES libraries(library_id),
	theme_id INTEGER NOT NULL REFERENCES themes(theme_id),
	quantity INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE readers (reader_id SERIAL PRIMARY KEY, full_name TEXT NOT NULL, phone TEXT);
CREATE TABLE subscriptions (
	sub_id SERIAL PRIMARY KEY,
	book_id INTEGER NOT NULL REFERENCES books(book_id),
	reader_id INTEGER NOT NULL REFERENCES readers(reader_id),
	give_date DATE NOT NULL,
	return_date DATE
);
CREATE TABLE employees (
	employee_id SERIAL PRIMARY KEY,
	full_name TEXT NOT NULL,
	position TEXT,
	library_id INTEGER NOT NULL REFERENCES libraries(library_id)
);
INSERT INTO libraries (name) VALUES ('Central'), ('Branch');
INSERT INTO themes (theme_name) VALUES ('Fiction');
INSERT INTO books (title, author, library_id, theme_id, quantity) VALUES
	('Dune', 'Herbert', 1, 1, 3), ('Cosmos', 'Sagan', 1, 1, 2);
INSERT INTO readers (full_name) VALUES ('Ann Lee'), ('Bob Stone');
INSERT INTO subscriptions (book_id, reader_id, give_date, return_date) VALUES
	(1, 1, CURRENT_DATE - 40, NULL),
	(2, 2, CURRENT_DATE - 45, CURRENT_DATE - 1),
	(2, 2, CURRENT_DATE - 5, NULL);
`

func startPostgres(t *testing.T, driver string) *dblib.Gateway {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("library"),
		postgres.WithUsername("libcat"),
		postgres.WithPassword("libcat"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gw, err := dblib.Connect(ctx, dblib.ConnectionConfig{Driver: driver, URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	_, err = gw.DB().ExecContext(ctx, postgresSchema)
	require.NoError(t, err)
	return gw
}

func TestPostgresEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			gw := startPostgres(t, driver)
			ctx := context.Background()

			assert.Equal(t, []string{"sub_id", "book_id", "reader_id", "give_date", "return_date"}, gw.Columns(ctx, "subscriptions"))
			assert.Empty(t, gw.Columns(ctx, "no_such_table"))

			engine := NewEngine(gw)
			overdue, err := engine.Run(ctx, OverdueLoans, nil)
			require.NoError(t, err)
			require.Len(t, overdue.Rows, 1)
			assert.Equal(t, "Ann Lee", overdue.Rows[0][0])
			assert.EqualValues(t, 40, overdue.Rows[0][3])

			activity, err := engine.Run(ctx, LibraryActivity, Params{"sort": "name"})
			require.NoError(t, err)
			require.Len(t, activity.Rows, 2)
			assert.Equal(t, []Total{
				{Label: "Total books", Value: 6},
				{Label: "On loan", Value: 1},
				{Label: "Available", Value: 5},
			}, activity.Totals)

			b, err := browser.Open(ctx, gw, catalog.Default(), "books")
			require.NoError(t, err)
			require.NoError(t, b.Load(ctx, dblib.FilterSort{SearchColumn: "quantity", Search: "3", SortColumn: "title"}))
			require.Len(t, b.Rows(), 1)
			assert.Equal(t, "Dune", b.Rows()[0][1])

			_, err = b.Delete(ctx, b.Select(0), func(string) bool { return true })
			require.Error(t, err)
			assert.True(t, dblib.IsConstraintViolation(err))
		})
	}
}
