package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"libcat/internal/report"
)

// reportModel holds a report's parameter inputs and its last result.
type reportModel struct {
	report *report.Report
	inputs []textinput.Model
	choice []int
	focus  int

	result *report.Result
	grid   table.Model
}

func newReportModel(r *report.Report) *reportModel {
	rm := &reportModel{
		report: r,
		choice: make([]int, len(r.Params)),
		grid:   table.New(table.WithFocused(true)),
	}
	now := time.Now()
	for i, p := range r.Params {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 64
		if p.Default != nil {
			def := p.Default(now)
			in.Placeholder = def
			for j, c := range p.Choices {
				if c == def {
					rm.choice[i] = j
				}
			}
		}
		rm.inputs = append(rm.inputs, in)
	}
	rm.setFocus(0)
	return rm
}

func (rm *reportModel) setFocus(i int) {
	if len(rm.inputs) == 0 {
		return
	}
	rm.focus = (i + len(rm.inputs)) % len(rm.inputs)
	for j := range rm.inputs {
		if j == rm.focus && rm.report.Params[j].Kind != report.ChoiceParam {
			rm.inputs[j].Focus()
		} else {
			rm.inputs[j].Blur()
		}
	}
}

// params returns the entered values; empty inputs are left out so the
// report applies its defaults.
func (rm *reportModel) params() report.Params {
	p := report.Params{}
	for i, param := range rm.report.Params {
		if param.Kind == report.ChoiceParam {
			if len(param.Choices) > 0 {
				p[param.Name] = param.Choices[rm.choice[i]]
			}
			continue
		}
		if v := strings.TrimSpace(rm.inputs[i].Value()); v != "" {
			p[param.Name] = v
		}
	}
	return p
}

func (rm *reportModel) setResult(res *report.Result, width, height int) {
	rm.result = res
	rows := stringRows(res.Rows)

	cols := make([]table.Column, len(res.Columns))
	for i, name := range res.Columns {
		w := lipgloss.Width(name)
		for _, row := range rows {
			if i < len(row) {
				w = max(w, lipgloss.Width(row[i]))
			}
		}
		cols[i] = table.Column{Title: name, Width: min(max(w, minColumnWidth), maxColumnWidth)}
	}
	gridRows := make([]table.Row, len(rows))
	for i, row := range rows {
		gridRows[i] = table.Row(row)
	}

	rm.grid.SetRows(nil)
	rm.grid.SetColumns(cols)
	rm.grid.SetRows(gridRows)
	rm.grid.SetWidth(width)
	rm.grid.SetHeight(max(height-len(rm.totalsLines()), 3))
	if len(gridRows) > 0 {
		rm.grid.SetCursor(0)
	}
}

func (rm *reportModel) totalsLines() []string {
	if rm.result == nil {
		return nil
	}
	lines := make([]string, len(rm.result.Totals))
	for i, t := range rm.result.Totals {
		lines[i] = fmt.Sprintf("%s: %d", t.Label, t.Value)
	}
	return lines
}

func runReport(ctx context.Context, engine *report.Engine, name string, params report.Params) tea.Cmd {
	return func() tea.Msg {
		res, err := engine.Run(ctx, name, params)
		return reportDoneMsg{res: res, err: err}
	}
}

func (m Model) updateReportParams(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rm := m.report
	switch {
	case key.Matches(msg, m.keys.Back):
		m.report = nil
		m.setView(menuView, "close report")
		m.statusMsg, m.errorMsg = "", ""
		return m, nil
	case key.Matches(msg, m.keys.Run):
		return m.start(runReport(m.ctx, m.app.Reports, rm.report.Name, rm.params()))
	case key.Matches(msg, m.keys.Next):
		rm.setFocus(rm.focus + 1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		rm.setFocus(rm.focus - 1)
		return m, nil
	}

	if len(rm.inputs) == 0 {
		return m, nil
	}
	param := rm.report.Params[rm.focus]
	if param.Kind == report.ChoiceParam {
		n := len(param.Choices)
		switch {
		case n == 0:
		case key.Matches(msg, m.keys.Left):
			rm.choice[rm.focus] = (rm.choice[rm.focus] - 1 + n) % n
		case key.Matches(msg, m.keys.Right):
			rm.choice[rm.focus] = (rm.choice[rm.focus] + 1) % n
		}
		return m, nil
	}

	var cmd tea.Cmd
	rm.inputs[rm.focus], cmd = rm.inputs[rm.focus].Update(msg)
	return m, cmd
}

func (m Model) updateReportResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rm := m.report
	switch {
	case key.Matches(msg, m.keys.Back):
		m.setView(reportParamsView, rm.report.Name)
		m.statusMsg = ""
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Reload):
		return m.start(runReport(m.ctx, m.app.Reports, rm.report.Name, rm.params()))
	}
	var cmd tea.Cmd
	rm.grid, cmd = rm.grid.Update(msg)
	return m, cmd
}

func (m Model) viewReportParams() string {
	rm := m.report
	width := 0
	for _, p := range rm.report.Params {
		width = max(width, len(p.Label))
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, p := range rm.report.Params {
		marker := "  "
		if i == rm.focus {
			marker = cursorStyle.Render("> ")
		}
		value := rm.inputs[i].View()
		if p.Kind == report.ChoiceParam && len(p.Choices) > 0 {
			value = "< " + p.Choices[rm.choice[i]] + " >"
		}
		fmt.Fprintf(&b, "%s%-*s  %s\n", marker, width, p.Label, value)
	}
	return b.String()
}

func (m Model) viewReportResult() string {
	rm := m.report
	var b strings.Builder
	var params []string
	for _, p := range rm.report.Params {
		if v := rm.result.Params[p.Name]; v != "" {
			params = append(params, fmt.Sprintf("%s=%s", p.Name, v))
		}
	}
	b.WriteString(dimStyle.Render(strings.Join(params, " ")))
	b.WriteString("\n")
	if len(rm.result.Rows) == 0 {
		b.WriteString(dimStyle.Render("no rows"))
	} else {
		b.WriteString(rm.grid.View())
	}
	for _, line := range rm.totalsLines() {
		b.WriteString("\n" + line)
	}
	return b.String()
}
