package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libcat/internal/dblib"
	"libcat/internal/testdb"
)

var fixedNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

type countingExecutor struct {
	dblib.Executor
	executed int
}

func (c *countingExecutor) Execute(ctx context.Context, stmt string, args []any, mode dblib.FetchMode) (*dblib.Result, error) {
	c.executed++
	return c.Executor.Execute(ctx, stmt, args, mode)
}

func setupEngine(t *testing.T) (*Engine, *countingExecutor, *dblib.Gateway, map[string]int64) {
	t.Helper()
	gw := testdb.New(t)
	ids := testdb.Seed(t, gw)
	exec := &countingExecutor{Executor: gw}
	return NewEngine(exec).WithClock(func() time.Time { return fixedNow }), exec, gw, ids
}

func daysAgo(n int) string {
	return fixedNow.AddDate(0, 0, -n).Format("2006-01-02")
}

func loan(t *testing.T, gw *dblib.Gateway, book, reader int64, given string, returned any) {
	t.Helper()
	testdb.Exec(t, gw, "INSERT INTO subscriptions (book_id, reader_id, give_date, return_date) VALUES (?, ?, ?, ?)",
		book, reader, given, returned)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"01.01.2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"29.02.2024", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{" 15.06.2024 ", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), false},
		{"31.02.2024", time.Time{}, true},
		{"29.02.2023", time.Time{}, true},
		{"2024-01-01", time.Time{}, true},
		{"1.1.2024", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				var verr *dblib.ValidationError
				assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{OverdueLoans, PopularAuthors, LibraryActivity} {
		r, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, r.Name)
	}
	_, err := Lookup("top-readers")
	assert.Error(t, err)
	assert.Len(t, All(), 3)
}

func TestOverdueLoans(t *testing.T) {
	engine, _, gw, ids := setupEngine(t)

	loan(t, gw, ids["dune"], ids["ann"], daysAgo(40), nil)
	loan(t, gw, ids["cosmos"], ids["bob"], daysAgo(45), daysAgo(2))
	loan(t, gw, ids["contact"], ids["bob"], daysAgo(10), nil)
	loan(t, gw, ids["cosmos"], ids["ann"], daysAgo(31), nil)

	res, err := engine.Run(context.Background(), OverdueLoans, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	// Sorted by days overdue, largest first.
	assert.Equal(t, "Ann Lee", res.Rows[0][0])
	assert.Equal(t, "Dune", res.Rows[0][1])
	assert.Equal(t, int64(40), res.Rows[0][3])
	assert.Equal(t, "Cosmos", res.Rows[1][1])
	assert.Equal(t, int64(31), res.Rows[1][3])

	for _, row := range res.Rows {
		assert.NotEqual(t, "Bob Stone", row[0], "returned or recent loans must not be listed")
	}
	assert.Equal(t, []Total{{Label: "Overdue loans", Value: 2}}, res.Totals)
}

func TestOverdueLoansFilterAndSort(t *testing.T) {
	engine, _, gw, ids := setupEngine(t)
	ctx := context.Background()

	loan(t, gw, ids["dune"], ids["ann"], daysAgo(40), nil)
	loan(t, gw, ids["contact"], ids["bob"], daysAgo(60), nil)
	loan(t, gw, ids["cosmos"], ids["bob"], daysAgo(35), nil)

	res, err := engine.Run(ctx, OverdueLoans, Params{"reader": "stone", "sort": "title"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Contact", res.Rows[0][1])
	assert.Equal(t, "Cosmos", res.Rows[1][1])

	res, err = engine.Run(ctx, OverdueLoans, Params{"sort": "reader"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "Ann Lee", res.Rows[0][0])
}

func TestPopularAuthors(t *testing.T) {
	engine, _, gw, ids := setupEngine(t)

	loan(t, gw, ids["cosmos"], ids["ann"], "2024-03-01", "2024-03-10")
	loan(t, gw, ids["contact"], ids["bob"], "2024-03-31", nil)
	loan(t, gw, ids["dune"], ids["ann"], "2024-03-15", nil)
	loan(t, gw, ids["dune"], ids["bob"], "2024-04-01", nil)

	res, err := engine.Run(context.Background(), PopularAuthors, Params{"from": "01.03.2024", "to": "31.03.2024"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, "Sagan", res.Rows[0][0])
	assert.Equal(t, int64(2), res.Rows[0][1])
	assert.Equal(t, "Herbert", res.Rows[1][0])
	assert.Equal(t, int64(1), res.Rows[1][1])
	assert.Equal(t, []Total{{Label: "Total loans", Value: 3}}, res.Totals)
}

func TestPopularAuthorsDefaults(t *testing.T) {
	engine, _, gw, ids := setupEngine(t)

	loan(t, gw, ids["dune"], ids["ann"], "2023-12-31", nil)
	loan(t, gw, ids["dune"], ids["bob"], "2024-01-01", nil)
	loan(t, gw, ids["cosmos"], ids["bob"], "2024-06-16", nil)

	res, err := engine.Run(context.Background(), PopularAuthors, nil)
	require.NoError(t, err)
	assert.Equal(t, Params{"from": "01.01.2024", "to": "15.06.2024"}, res.Params)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Herbert", res.Rows[0][0])
	assert.Equal(t, int64(1), res.Rows[0][1])
}

func TestInvalidParamsSendNothing(t *testing.T) {
	engine, exec, _, _ := setupEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		report string
		params Params
	}{
		{"impossible date", PopularAuthors, Params{"from": "31.02.2024"}},
		{"wrong format", PopularAuthors, Params{"to": "2024-03-31"}},
		{"reversed range", PopularAuthors, Params{"from": "01.04.2024", "to": "01.03.2024"}},
		{"unknown sort", OverdueLoans, Params{"sort": "fines"}},
		{"unknown activity sort", LibraryActivity, Params{"sort": "name; DROP TABLE books"}},
		{"unknown parameter", LibraryActivity, Params{"limit": "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := exec.executed
			_, err := engine.Run(ctx, tt.report, tt.params)
			var verr *dblib.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, before, exec.executed)
		})
	}
}

func TestLibraryActivity(t *testing.T) {
	engine, _, gw, ids := setupEngine(t)

	testdb.Exec(t, gw, "INSERT INTO libraries (name) VALUES ('Annex')")
	loan(t, gw, ids["dune"], ids["ann"], daysAgo(5), nil)
	loan(t, gw, ids["dune"], ids["bob"], daysAgo(3), nil)
	loan(t, gw, ids["cosmos"], ids["bob"], daysAgo(50), daysAgo(20))

	res, err := engine.Run(context.Background(), LibraryActivity, Params{"sort": "name"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	byName := map[string][]any{}
	for _, row := range res.Rows {
		byName[row[0].(string)] = row
	}
	assert.Equal(t, "Annex", res.Rows[0][0])

	// Central holds 3+2+1 copies with two active loans.
	assert.Equal(t, []any{"Central", int64(8), int64(2), int64(6)}, byName["Central"])
	// Libraries without books or loans report zero, not missing.
	assert.Equal(t, []any{"Branch", int64(0), int64(0), int64(0)}, byName["Branch"])
	assert.Equal(t, []any{"Annex", int64(0), int64(0), int64(0)}, byName["Annex"])

	assert.Equal(t, []Total{
		{Label: "Total books", Value: 8},
		{Label: "On loan", Value: 2},
		{Label: "Available", Value: 6},
	}, res.Totals)

	res, err = engine.Run(context.Background(), LibraryActivity, nil)
	require.NoError(t, err)
	assert.Equal(t, "Central", res.Rows[0][0])
}

func TestSumColumnSkipsNulls(t *testing.T) {
	rows := [][]any{{"a", int64(2)}, {"b", nil}, {"c", "5"}, {"d", float64(1)}}
	assert.Equal(t, int64(8), sumColumn(rows, 1))
}

func TestToIntParsesWholeCell(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{" 7 ", 7, true},
		{"6.000", 6, true},
		{"12.5", 13, true},
		{"12abc", 0, false},
		{"", 0, false},
		{float64(2.6), 3, true},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := toInt(tt.in)
		assert.Equal(t, tt.ok, ok, "toInt(%#v) ok", tt.in)
		assert.Equal(t, tt.want, got, "toInt(%#v)", tt.in)
	}
}
