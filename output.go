package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"libcat/internal/dblib"
	"libcat/internal/report"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	nullStyle   = cellStyle.Foreground(lipgloss.Color("8"))
)

// cellText renders a value for display; NULL is shown as a marker so it is
// not confused with an empty string.
func cellText(v any) string {
	if v == nil {
		return dblib.NullDisplay
	}
	return strings.ReplaceAll(dblib.FormatValue(v), "\n", " ")
}

func stringRows(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = cellText(v)
		}
	}
	return out
}

// renderTable draws rows as a bordered table for CLI output.
func renderTable(headers []string, rows [][]any) string {
	data := stringRows(rows)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == nil {
				return nullStyle
			}
			return cellStyle
		})
	return t.Render()
}

func printRows(w io.Writer, headers []string, rows [][]any) {
	fmt.Fprintln(w, renderTable(headers, rows))
	fmt.Fprintf(w, "%d rows\n", len(rows))
}

func printReport(w io.Writer, res *report.Result) {
	fmt.Fprintln(w, headerStyle.UnsetPadding().Render(res.Report.Title))
	for _, p := range res.Report.Params {
		if v := res.Params[p.Name]; v != "" {
			fmt.Fprintf(w, "  %s: %s\n", p.Label, v)
		}
	}
	fmt.Fprintln(w, renderTable(res.Columns, res.Rows))
	for _, t := range res.Totals {
		fmt.Fprintf(w, "%s: %d\n", t.Label, t.Value)
	}
}
