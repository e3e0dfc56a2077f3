package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"libcat/internal/browser"
	"libcat/internal/dblib"
	"libcat/internal/report"
)

type view int

const (
	menuView view = iota
	tableView
	formView
	reportParamsView
	reportResultView
)

func (v view) String() string {
	switch v {
	case tableView:
		return "table"
	case formView:
		return "form"
	case reportParamsView:
		return "report params"
	case reportResultView:
		return "report"
	default:
		return "menu"
	}
}

type menuItem struct {
	title  string
	table  string
	report *report.Report
}

// Model is the terminal shell. Only one command runs at a time; while busy
// all keys except ctrl+c are ignored.
type Model struct {
	ctx  context.Context
	app  *App
	keys keyMap
	help help.Model

	view   view
	items  []menuItem
	cursor int

	browser    *browser.Browser
	grid       table.Model
	search     textinput.Model
	searching  bool
	confirming bool
	pending    browser.Selection

	// Snapshot of the browser taken by refreshGrid; View renders from it.
	filter    dblib.FilterSort
	rowCount  int
	loadState browser.State

	form   *formModel
	report *reportModel

	busy    bool
	spinner spinner.Model

	width     int
	height    int
	statusMsg string
	errorMsg  string
}

func NewModel(ctx context.Context, app *App) Model {
	var items []menuItem
	for _, name := range app.Catalog.Names() {
		items = append(items, menuItem{title: app.Catalog.Title(name), table: name})
	}
	for _, r := range report.All() {
		items = append(items, menuItem{title: "Report: " + r.Title, report: r})
	}

	search := textinput.New()
	search.Prompt = "search: "
	search.CharLimit = 256

	return Model{
		ctx:     ctx,
		app:     app,
		keys:    defaultKeyMap(),
		help:    help.New(),
		items:   items,
		grid:    table.New(table.WithFocused(true)),
		search:  search,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Messages
type tableOpenedMsg struct {
	b   *browser.Browser
	err error
}

type loadedMsg struct {
	status  string
	listing *browser.Listing
	err     error
}

type formOpenedMsg struct {
	f   *formModel
	err error
}

type savedMsg struct {
	status  string
	listing *browser.Listing
	err     error
}

type reportDoneMsg struct {
	res *report.Result
	err error
}

// start marks the shell busy and runs cmd.
func (m Model) start(cmd tea.Cmd) (Model, tea.Cmd) {
	m.busy = true
	m.errorMsg = ""
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m *Model) setView(v view, description string) {
	m.view = v
	recordNavigation(v.String(), description)
}

// notify shows err in the status bar. Validation problems are shown as
// given; everything else is prefixed so the failing operation is clear.
func (m *Model) notify(err error) {
	m.statusMsg = ""
	if browser.IsValidation(err) {
		m.errorMsg = err.Error()
	} else {
		m.errorMsg = "Error: " + err.Error()
	}
	m.app.Logger.Sugar().Debugw("notified", "view", m.view.String(), "error", err)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.grid.SetWidth(msg.Width)
		m.grid.SetHeight(m.gridHeight())
		if m.report != nil {
			m.report.grid.SetWidth(msg.Width)
			m.report.grid.SetHeight(m.gridHeight() - len(m.report.totalsLines()))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		if breadcrumbs != nil && !m.typing() {
			breadcrumbs.RecordKeyboard(msg.String())
		}
		switch m.view {
		case tableView:
			return m.updateTable(msg)
		case formView:
			return m.updateForm(msg)
		case reportParamsView:
			return m.updateReportParams(msg)
		case reportResultView:
			return m.updateReportResult(msg)
		default:
			return m.updateMenu(msg)
		}

	case tableOpenedMsg:
		m.busy = false
		if msg.b == nil {
			m.notify(msg.err)
			return m, nil
		}
		m.browser = msg.b
		m.searching, m.confirming = false, false
		m.setView(tableView, msg.b.Table().Name)
		m.grid.SetCursor(0)
		m.refreshGrid()
		if msg.err != nil {
			m.notify(msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("%d rows", len(msg.b.Rows()))
		}
		return m, nil

	case loadedMsg:
		m.busy = false
		m.applyListing(msg.listing, msg.err)
		switch {
		case msg.err != nil:
			m.notify(msg.err)
		case msg.listing != nil:
			m.statusMsg = fmt.Sprintf("%s, %d rows", msg.status, len(msg.listing.Rows))
		default:
			m.statusMsg = msg.status
		}
		return m, nil

	case formOpenedMsg:
		m.busy = false
		if msg.err != nil {
			m.notify(msg.err)
			return m, nil
		}
		m.form = msg.f
		m.setView(formView, msg.f.form.Mode().String())
		m.statusMsg = ""
		return m, textinput.Blink

	case savedMsg:
		return m.handleSaved(msg)

	case reportDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.notify(msg.err)
			return m, nil
		}
		m.report.setResult(msg.res, m.width, m.gridHeight())
		m.setView(reportResultView, msg.res.Report.Name)
		m.statusMsg = fmt.Sprintf("%d rows", len(msg.res.Rows))
		return m, nil
	}

	return m, nil
}

// applyListing hands the result of a background fetch to the browser and
// redraws the grid. Failures other than the fetch itself leave the browser
// as it was.
func (m *Model) applyListing(l *browser.Listing, err error) {
	if l != nil || loadFailed(err) {
		_ = m.browser.Apply(l, err)
	}
	m.refreshGrid()
}

func loadFailed(err error) bool {
	var op *dblib.OpError
	return errors.As(err, &op) && op.Op == "load"
}

// typing reports whether keys are going into a text field, which are not
// recorded as breadcrumbs.
func (m Model) typing() bool {
	return m.searching || m.view == formView || m.view == reportParamsView
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Back):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if len(m.items) == 0 {
			return m, nil
		}
		item := m.items[m.cursor]
		if item.report != nil {
			m.report = newReportModel(item.report)
			m.setView(reportParamsView, item.report.Name)
			m.statusMsg, m.errorMsg = "", ""
			return m, textinput.Blink
		}
		return m.start(openTable(m.ctx, m.app, item.table))
	}
	return m, nil
}

func openTable(ctx context.Context, app *App, name string) tea.Cmd {
	return func() tea.Msg {
		b, err := browser.Open(ctx, app.Gateway, app.Catalog, name)
		return tableOpenedMsg{b: b, err: err}
	}
}

func (m Model) gridHeight() int {
	// title, search line, status bar and help
	h := m.height - 5
	if h < 3 {
		h = 3
	}
	return h
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Background(lipgloss.Color("8")).Foreground(lipgloss.Color("15"))
	errorStyle  = lipgloss.NewStyle().Background(lipgloss.Color("1")).Foreground(lipgloss.Color("15"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title()))
	b.WriteString("\n")

	switch m.view {
	case tableView:
		b.WriteString(m.viewTable())
	case formView:
		b.WriteString(m.viewForm())
	case reportParamsView:
		b.WriteString(m.viewReportParams())
	case reportResultView:
		b.WriteString(m.viewReportResult())
	default:
		b.WriteString(m.viewMenu())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m Model) title() string {
	switch m.view {
	case tableView:
		return m.app.Catalog.Title(m.browser.Table().Name)
	case formView:
		return fmt.Sprintf("%s: %s", m.app.Catalog.Title(m.form.form.Table().Name), m.form.form.Mode())
	case reportParamsView, reportResultView:
		return m.report.report.Title
	default:
		return "libcat"
	}
}

func (m Model) helpKeys() []key.Binding {
	switch m.view {
	case tableView:
		if m.confirming {
			return []key.Binding{m.keys.Yes, m.keys.No}
		}
		return m.keys.tableHelp()
	case formView:
		return m.keys.formHelp()
	case reportParamsView:
		return m.keys.reportHelp()
	case reportResultView:
		return []key.Binding{m.keys.Reload, m.keys.Back}
	default:
		return m.keys.menuHelp()
	}
}

func (m Model) viewMenu() string {
	var b strings.Builder
	for i, item := range m.items {
		line := "  " + item.title
		if i == m.cursor {
			line = cursorStyle.Render("> " + item.title)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderStatusBar() string {
	status := m.statusMsg
	if m.app.Config.Database != "" {
		status = fmt.Sprintf("%s | %s", m.app.Config.Database, status)
	}
	if m.busy {
		status = m.spinner.View() + " working..."
	}
	if m.errorMsg != "" {
		return errorStyle.Width(m.width).Render(m.errorMsg)
	}
	return statusStyle.Width(m.width).Render(status)
}

func truncateString(s string, maxLen int) string {
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	r := []rune(s)
	if len(r) > maxLen-1 {
		r = r[:maxLen-1]
	}
	return string(r) + "…"
}
