package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"libcat/internal/browser"
	"libcat/internal/dblib"
)

const (
	minColumnWidth = 4
	maxColumnWidth = 30
)

// refreshGrid copies the browser's rows into the grid, keeping the cursor
// in range.
func (m *Model) refreshGrid() {
	if m.browser == nil {
		return
	}
	columns := m.browser.Columns()
	rows := stringRows(m.browser.Rows())
	fs := m.browser.Filter()
	m.filter = fs
	m.rowCount = len(rows)
	m.loadState = m.browser.State()

	cols := make([]table.Column, len(columns))
	for i, name := range columns {
		title := name
		if name == fs.SortColumn {
			if fs.Direction == dblib.Desc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		if name == fs.SearchColumn {
			title = "*" + title
		}
		width := lipgloss.Width(title)
		for _, row := range rows {
			if i < len(row) {
				width = max(width, lipgloss.Width(row[i]))
			}
		}
		width = min(max(width, minColumnWidth), maxColumnWidth)
		cols[i] = table.Column{Title: title, Width: width}
	}

	gridRows := make([]table.Row, len(rows))
	for i, row := range rows {
		for j := range row {
			if j < len(cols) {
				row[j] = truncateString(row[j], cols[j].Width)
			}
		}
		gridRows[i] = table.Row(row)
	}

	cursor := m.grid.Cursor()
	// Rows must match the columns they are rendered against.
	m.grid.SetRows(nil)
	m.grid.SetColumns(cols)
	m.grid.SetRows(gridRows)
	m.grid.SetHeight(m.gridHeight())
	if len(gridRows) > 0 {
		m.grid.SetCursor(min(cursor, len(gridRows)-1))
	}
}

func (m Model) selection() browser.Selection {
	if len(m.browser.Rows()) == 0 {
		return browser.Selection{}
	}
	return m.browser.Select(m.grid.Cursor())
}

// nextColumn returns the column after current, wrapping around.
func nextColumn(columns []string, current string) string {
	if len(columns) == 0 {
		return current
	}
	for i, c := range columns {
		if c == current {
			return columns[(i+1)%len(columns)]
		}
	}
	return columns[0]
}

// loadCmd fetches rows for fs off the event loop. The browser itself is
// only changed when Update applies the returned listing.
func loadCmd(ctx context.Context, b *browser.Browser, fs dblib.FilterSort, status string) tea.Cmd {
	return func() tea.Msg {
		l, err := b.Fetch(ctx, fs)
		return loadedMsg{status: status, listing: l, err: err}
	}
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		return m.updateConfirm(msg)
	}
	if m.searching {
		return m.updateSearch(msg)
	}

	fs := m.browser.Filter()
	switch {
	case key.Matches(msg, m.keys.Back):
		m.setView(menuView, "close table")
		m.browser = nil
		m.statusMsg, m.errorMsg = "", ""
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(fs.Search)
		m.search.CursorEnd()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.SearchBy):
		fs.SearchColumn = nextColumn(m.browser.Table().Columns, fs.SearchColumn)
		return m.start(loadCmd(m.ctx, m.browser, fs, "searching "+fs.SearchColumn))

	case key.Matches(msg, m.keys.SortBy):
		fs.SortColumn = nextColumn(m.browser.Table().Columns, fs.SortColumn)
		return m.start(loadCmd(m.ctx, m.browser, fs, "sorted by "+fs.SortColumn))

	case key.Matches(msg, m.keys.Order):
		fs.Direction = fs.Direction.Toggle()
		return m.start(loadCmd(m.ctx, m.browser, fs, fs.Direction.String()))

	case key.Matches(msg, m.keys.Reset):
		return m.start(loadCmd(m.ctx, m.browser, dblib.DefaultFilterSort(m.browser.Table()), "filters reset"))

	case key.Matches(msg, m.keys.Reload):
		return m.start(loadCmd(m.ctx, m.browser, fs, "reloaded"))

	case key.Matches(msg, m.keys.Add):
		return m.start(openForm(m.ctx, m.browser, browser.Selection{}))

	case key.Matches(msg, m.keys.Edit):
		sel := m.selection()
		if len(sel.Keys) != 1 {
			m.notify(&dblib.OpError{Op: "edit record", Table: m.browser.Table().Name, Err: dblib.ErrSelection})
			return m, nil
		}
		return m.start(openForm(m.ctx, m.browser, sel))

	case key.Matches(msg, m.keys.Delete):
		sel := m.selection()
		if len(sel.Keys) != 1 {
			m.notify(&dblib.OpError{Op: "delete record", Table: m.browser.Table().Name, Err: dblib.ErrSelection})
			return m, nil
		}
		m.confirming = true
		m.pending = sel
		m.errorMsg = ""
		m.statusMsg = fmt.Sprintf("Delete %s %v? (y/n)", m.browser.Table().PrimaryKey(), dblib.FormatValue(sel.Keys[0]))
		return m, nil
	}

	var cmd tea.Cmd
	m.grid, cmd = m.grid.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		fs := m.browser.Filter()
		fs.Search = m.search.Value()
		return m.start(loadCmd(m.ctx, m.browser, fs, "search applied"))
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Yes):
		m.confirming = false
		b, sel, ctx, fs := m.browser, m.pending, m.ctx, m.browser.Filter()
		return m.start(func() tea.Msg {
			deleted, err := b.Remove(ctx, sel, func(string) bool { return true })
			if err != nil || !deleted {
				return loadedMsg{status: "nothing deleted", err: err}
			}
			l, err := b.Fetch(ctx, fs)
			return loadedMsg{status: "record deleted", listing: l, err: err}
		})
	case key.Matches(msg, m.keys.No):
		m.confirming = false
		m.statusMsg = "delete cancelled"
	}
	return m, nil
}

func (m Model) viewTable() string {
	var b strings.Builder
	fs := m.filter
	state := m.loadState.String()
	if m.busy {
		state = browser.Loading.String()
	}
	if m.searching {
		b.WriteString(m.search.View())
	} else {
		line := fmt.Sprintf("search %s", fs.SearchColumn)
		if fs.Search != "" {
			line += fmt.Sprintf(" for %q", fs.Search)
		}
		line += fmt.Sprintf(" | sort %s %s | %s", fs.SortColumn, fs.Direction, state)
		b.WriteString(dimStyle.Render(line))
	}
	b.WriteString("\n")
	if m.rowCount == 0 {
		b.WriteString(dimStyle.Render("no rows"))
		return b.String()
	}
	b.WriteString(m.grid.View())
	return b.String()
}

// openForm builds a create form when sel is empty and an edit form for the
// selected row otherwise.
func openForm(ctx context.Context, b *browser.Browser, sel browser.Selection) tea.Cmd {
	return func() tea.Msg {
		if len(sel.Keys) == 0 {
			f, err := b.NewForm(ctx)
			if err != nil {
				return formOpenedMsg{err: err}
			}
			return formOpenedMsg{f: newFormModel(f, sel)}
		}
		f, err := b.EditForm(ctx, sel)
		if err != nil {
			return formOpenedMsg{err: err}
		}
		return formOpenedMsg{f: newFormModel(f, sel)}
	}
}
