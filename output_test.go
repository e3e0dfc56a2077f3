package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"libcat/internal/report"
)

func TestCellText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"", ""},
		{int64(42), "42"},
		{"two\nlines", "two lines"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
	}
	for _, tt := range tests {
		if got := cellText(tt.in); got != tt.want {
			t.Errorf("cellText(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"title", "author"}, [][]any{{"Dune", "Herbert"}, {"Untitled", nil}})
	for _, want := range []string{"title", "author", "Dune", "Herbert", "Untitled", "null"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReport(t *testing.T) {
	r, err := report.Lookup(report.LibraryActivity)
	if err != nil {
		t.Fatal(err)
	}
	res := &report.Result{
		Report:  r,
		Params:  report.Params{"sort": "name"},
		Columns: r.Columns,
		Rows:    [][]any{{"Central", int64(6), int64(1), int64(5)}},
		Totals:  []report.Total{{Label: "Total books", Value: 6}},
	}

	var buf bytes.Buffer
	printReport(&buf, res)
	out := buf.String()
	for _, want := range []string{"Library activity", "Sort by: name", "Central", "Total books: 6"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
