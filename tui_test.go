package main

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"libcat/internal/catalog"
	"libcat/internal/dblib"
	"libcat/internal/report"
	"libcat/internal/testdb"
)

func newTestModel(t *testing.T) (Model, *dblib.Gateway) {
	t.Helper()
	gw := testdb.New(t)
	testdb.Seed(t, gw)
	app := &App{
		Config:  Config{Database: "test.db"},
		Logger:  zap.NewNop(),
		Gateway: gw,
		Catalog: catalog.Default(),
		Reports: report.NewEngine(gw),
	}
	m := NewModel(context.Background(), app)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), gw
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends one key. When the key starts a database command, the command
// is run to completion and its result fed back.
func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	nm := next.(Model)
	if !nm.busy {
		return nm
	}
	nm = run(t, nm, cmd)
	if nm.busy {
		t.Fatalf("still busy after %q", msg.String())
	}
	return nm
}

func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			m = run(t, m, c)
		}
		return m
	}
	switch msg.(type) {
	case tableOpenedMsg, loadedMsg, formOpenedMsg, savedMsg, reportDoneMsg:
		next, _ := m.Update(msg)
		return next.(Model)
	case spinner.TickMsg:
		// Ticks only animate the busy indicator.
	}
	return m
}

func openMenuItem(t *testing.T, m Model, title string) Model {
	t.Helper()
	for i, item := range m.items {
		if item.title == title {
			m.cursor = i
			return press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		}
	}
	t.Fatalf("no menu item %q", title)
	return m
}

func TestMenuListsTablesThenReports(t *testing.T) {
	m, _ := newTestModel(t)

	if len(m.items) != 9 {
		t.Fatalf("got %d menu items, want 9", len(m.items))
	}
	if m.items[0].table != "libraries" {
		t.Errorf("first item = %+v, want libraries", m.items[0])
	}
	if m.items[6].report == nil || m.items[6].report.Name != report.LibraryActivity {
		t.Errorf("first report item = %+v", m.items[6])
	}
	if !strings.Contains(m.View(), "> Libraries") {
		t.Errorf("cursor not on first item:\n%s", m.View())
	}
}

func TestOpenTableAndSearch(t *testing.T) {
	m, _ := newTestModel(t)
	m = openMenuItem(t, m, "Books")

	if m.view != tableView {
		t.Fatalf("view = %v, want table", m.view)
	}
	if len(m.grid.Rows()) != 3 {
		t.Fatalf("got %d grid rows, want 3", len(m.grid.Rows()))
	}

	m = press(t, m, keyRunes("/"))
	if !m.searching {
		t.Fatal("search input not active")
	}
	m = press(t, m, keyRunes("co"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.searching {
		t.Error("search input still active after enter")
	}
	if got := m.browser.Filter().Search; got != "co" {
		t.Errorf("filter search = %q, want co", got)
	}
	if len(m.grid.Rows()) != 2 {
		t.Errorf("got %d rows after search, want 2", len(m.grid.Rows()))
	}

	m = press(t, m, keyRunes("x"))
	if m.browser.Filter() != dblib.DefaultFilterSort(m.browser.Table()) {
		t.Errorf("filter after reset = %+v", m.browser.Filter())
	}
	if len(m.grid.Rows()) != 3 {
		t.Errorf("got %d rows after reset, want 3", len(m.grid.Rows()))
	}
}

func TestSortKeysReload(t *testing.T) {
	m, _ := newTestModel(t)
	m = openMenuItem(t, m, "Books")

	m = press(t, m, keyRunes("s"))
	if got := m.browser.Filter().SortColumn; got != "title" {
		t.Errorf("sort column = %q, want title", got)
	}
	if first := m.grid.Rows()[0][1]; first != "Contact" {
		t.Errorf("first title = %q, want Contact", first)
	}

	m = press(t, m, keyRunes("o"))
	if m.browser.Filter().Direction != dblib.Desc {
		t.Error("direction not toggled")
	}
	if first := m.grid.Rows()[0][1]; first != "Dune" {
		t.Errorf("first title = %q, want Dune", first)
	}
}

func TestDeleteAsksFirst(t *testing.T) {
	m, gw := newTestModel(t)
	m = openMenuItem(t, m, "Readers")

	m = press(t, m, keyRunes("d"))
	if !m.confirming {
		t.Fatal("delete did not ask for confirmation")
	}
	m = press(t, m, keyRunes("n"))
	if m.confirming || m.statusMsg != "delete cancelled" {
		t.Errorf("after n: confirming=%v status=%q", m.confirming, m.statusMsg)
	}
	if n := testdb.Count(t, gw, "readers"); n != 2 {
		t.Fatalf("readers = %d after cancel, want 2", n)
	}

	m = press(t, m, keyRunes("d"))
	m = press(t, m, keyRunes("y"))
	if n := testdb.Count(t, gw, "readers"); n != 1 {
		t.Errorf("readers = %d after confirm, want 1", n)
	}
	if len(m.grid.Rows()) != 1 {
		t.Errorf("grid shows %d rows, want 1", len(m.grid.Rows()))
	}
}

func TestDeleteFailureKeepsRows(t *testing.T) {
	m, gw := newTestModel(t)
	m = openMenuItem(t, m, "Libraries")

	m = press(t, m, keyRunes("d"))
	m = press(t, m, keyRunes("y"))

	if !strings.Contains(m.errorMsg, "delete record (libraries)") {
		t.Errorf("errorMsg = %q, want the failing operation named", m.errorMsg)
	}
	if n := testdb.Count(t, gw, "libraries"); n != 2 {
		t.Errorf("libraries = %d, want 2", n)
	}
	if len(m.grid.Rows()) != 2 {
		t.Errorf("grid shows %d rows, want 2", len(m.grid.Rows()))
	}
}

func TestAddBookThroughForm(t *testing.T) {
	m, gw := newTestModel(t)
	m = openMenuItem(t, m, "Books")

	m = press(t, m, keyRunes("a"))
	if m.view != formView {
		t.Fatalf("view = %v, want form", m.view)
	}
	if col := m.form.focused().Column; col != "title" {
		t.Fatalf("focused field = %q, want title", col)
	}
	m = press(t, m, keyRunes("Solaris"))

	// Saving without the required lookups keeps the form open.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.view != formView {
		t.Fatalf("view = %v after invalid save, want form", m.view)
	}
	if !strings.Contains(m.errorMsg, "missing required reference") {
		t.Errorf("errorMsg = %q", m.errorMsg)
	}
	if m.form.form.Field("title").Text != "Solaris" {
		t.Error("form input lost after failed save")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}) // author
	m = press(t, m, keyRunes("Lem"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}) // library_id
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if got := m.form.form.Field("library_id").Value(); got != "Branch (2)" {
		t.Errorf("library = %q, want Branch (2)", got)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}) // theme_id
	m = press(t, m, keyRunes("sci"))
	if got := m.form.form.Field("theme_id").Value(); got != "Science (2)" {
		t.Errorf("theme = %q, want Science (2)", got)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}) // quantity
	m = press(t, m, keyRunes("4"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.view != tableView {
		t.Fatalf("view = %v after save, want table (error %q)", m.view, m.errorMsg)
	}
	if n := testdb.Count(t, gw, "books"); n != 4 {
		t.Errorf("books = %d, want 4", n)
	}
	if len(m.grid.Rows()) != 4 {
		t.Errorf("grid shows %d rows, want 4", len(m.grid.Rows()))
	}
}

func TestEditCancelLeavesRow(t *testing.T) {
	m, gw := newTestModel(t)
	m = openMenuItem(t, m, "Readers")

	m = press(t, m, keyRunes("e"))
	if m.view != formView {
		t.Fatalf("view = %v, want form", m.view)
	}
	if !m.form.form.Field("reader_id").ReadOnly {
		t.Error("primary key is editable")
	}
	m = press(t, m, keyRunes("xyz"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.view != tableView || m.statusMsg != "edit cancelled" {
		t.Errorf("after esc: view=%v status=%q", m.view, m.statusMsg)
	}

	var name string
	if err := gw.DB().QueryRow("SELECT full_name FROM readers ORDER BY reader_id LIMIT 1").Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "Ann Lee" {
		t.Errorf("name = %q, want Ann Lee", name)
	}
}

func TestBusyIgnoresKeys(t *testing.T) {
	m, _ := newTestModel(t)
	m.busy = true

	next, cmd := m.Update(keyRunes("q"))
	if cmd != nil {
		t.Error("key produced a command while busy")
	}
	if next.(Model).view != menuView {
		t.Error("view changed while busy")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Error("ctrl+c ignored while busy")
	}
}

func TestReportFromMenu(t *testing.T) {
	m, _ := newTestModel(t)
	m = openMenuItem(t, m, "Report: Library activity")
	if m.view != reportParamsView {
		t.Fatalf("view = %v, want report params", m.view)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if got := m.report.params()["sort"]; got != "total" {
		t.Errorf("sort = %q, want total", got)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != reportResultView {
		t.Fatalf("view = %v, want report (error %q)", m.view, m.errorMsg)
	}
	if len(m.report.result.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(m.report.result.Rows))
	}
	if !strings.Contains(m.View(), "Total books: 6") {
		t.Errorf("totals missing from view:\n%s", m.View())
	}
}

func TestReportValidationStaysOnParams(t *testing.T) {
	m, _ := newTestModel(t)
	m = openMenuItem(t, m, "Report: Popular authors")

	m = press(t, m, keyRunes("31.02.2024"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.view != reportParamsView {
		t.Errorf("view = %v, want report params", m.view)
	}
	if !strings.Contains(m.errorMsg, "DD.MM.YYYY") {
		t.Errorf("errorMsg = %q", m.errorMsg)
	}
}

// Commands run on their own goroutine while the event loop keeps rendering;
// run with -race.
func TestLoadRunsOffRenderedBrowser(t *testing.T) {
	m, _ := newTestModel(t)
	m = openMenuItem(t, m, "Books")
	before := m.browser.Filter()

	fs := before
	fs.SortColumn = "title"
	cmd := loadCmd(m.ctx, m.browser, fs, "sorted by title")
	m.busy = true

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	for i := 0; i < 200; i++ {
		if out := m.View(); !strings.Contains(out, "loading") {
			t.Fatalf("busy table view does not show loading:\n%s", out)
		}
	}
	msg := <-done

	if m.browser.Filter() != before {
		t.Fatalf("browser filter changed before the result was applied: %+v", m.browser.Filter())
	}
	next, _ := m.Update(msg)
	m = next.(Model)
	if got := m.browser.Filter().SortColumn; got != "title" {
		t.Errorf("sort column = %q, want title", got)
	}
	if first := m.grid.Rows()[0][1]; first != "Contact" {
		t.Errorf("first title = %q, want Contact", first)
	}
	if m.statusMsg != "sorted by title, 3 rows" {
		t.Errorf("status = %q", m.statusMsg)
	}
}
