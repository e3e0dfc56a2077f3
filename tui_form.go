package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"libcat/internal/browser"
	"libcat/internal/form"
)

// formModel is the editing state of one record form. Text fields edit
// their value directly; on reference fields the input is a filter over the
// choices.
type formModel struct {
	form   *form.Form
	sel    browser.Selection
	inputs []textinput.Model
	focus  int
}

func newFormModel(f *form.Form, sel browser.Selection) *formModel {
	fm := &formModel{form: f, sel: sel, focus: -1}
	for _, field := range f.Fields() {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 512
		if field.Kind == form.TextField {
			in.SetValue(field.Text)
		} else {
			in.Placeholder = "type to filter"
		}
		fm.inputs = append(fm.inputs, in)
	}
	fm.move(1)
	return fm
}

// move shifts focus to the next editable field in direction delta.
func (fm *formModel) move(delta int) {
	fields := fm.form.Fields()
	n := len(fields)
	for i := 1; i <= n; i++ {
		idx := ((fm.focus+delta*i)%n + n) % n
		if !fields[idx].ReadOnly {
			fm.focus = idx
			break
		}
	}
	for i := range fm.inputs {
		if i == fm.focus {
			fm.inputs[i].Focus()
		} else {
			fm.inputs[i].Blur()
		}
	}
}

func (fm *formModel) focused() *form.Field {
	if fm.focus < 0 || fm.focus >= len(fm.form.Fields()) {
		return nil
	}
	return fm.form.Fields()[fm.focus]
}

func (fm *formModel) onLast() bool {
	fields := fm.form.Fields()
	for i := len(fields) - 1; i >= 0; i-- {
		if !fields[i].ReadOnly {
			return i == fm.focus
		}
	}
	return true
}

// cycle moves a reference field's selection through the choices matching
// the current filter.
func (fm *formModel) cycle(delta int) {
	field := fm.focused()
	matches := field.Filter(fm.inputs[fm.focus].Value())
	if len(matches) == 0 {
		return
	}
	pos := -1
	for i, idx := range matches {
		if idx == field.Selected {
			pos = i
		}
	}
	switch {
	case pos < 0 && delta > 0:
		pos = 0
	case pos < 0:
		pos = len(matches) - 1
	default:
		pos = (pos + delta + len(matches)) % len(matches)
	}
	_ = fm.form.SelectIndex(field.Column, matches[pos])
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fm := m.form
	switch {
	case key.Matches(msg, m.keys.Back):
		m.form = nil
		m.setView(tableView, "cancel form")
		m.errorMsg = ""
		m.statusMsg = "edit cancelled"
		return m, nil
	case key.Matches(msg, m.keys.Save):
		return m.submitForm()
	case msg.Type == tea.KeyEnter:
		if fm.onLast() {
			return m.submitForm()
		}
		fm.move(1)
		return m, nil
	case key.Matches(msg, m.keys.Next):
		fm.move(1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		fm.move(-1)
		return m, nil
	}

	field := fm.focused()
	if field == nil {
		return m, nil
	}
	in := &fm.inputs[fm.focus]

	if key.Matches(msg, m.keys.Clear) {
		fm.form.Clear(field.Column)
		in.SetValue("")
		return m, nil
	}

	if field.Kind == form.ReferenceField {
		switch {
		case key.Matches(msg, m.keys.Left):
			fm.cycle(-1)
			return m, nil
		case key.Matches(msg, m.keys.Right):
			fm.cycle(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	if field.Kind == form.ReferenceField {
		if q := in.Value(); q != "" {
			if matches := field.Filter(q); len(matches) > 0 {
				_ = fm.form.SelectIndex(field.Column, matches[0])
			}
		}
	} else {
		_ = fm.form.SetText(field.Column, in.Value())
	}
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	fm, b, ctx, fs := m.form, m.browser, m.ctx, m.browser.Filter()
	return m.start(func() tea.Msg {
		status := "record added"
		var err error
		if fm.form.Mode() == form.Create {
			err = b.Insert(ctx, fm.form)
		} else {
			status = "record saved"
			err = b.Update(ctx, fm.sel, fm.form)
		}
		if err != nil {
			return savedMsg{status: status, err: err}
		}
		l, err := b.Fetch(ctx, fs)
		return savedMsg{status: status, listing: l, err: err}
	})
}

// handleSaved returns to the table after a write. A rejected write keeps the
// form and its input so the user can correct it; a write that succeeded but
// could not be reloaded still closes the form.
func (m Model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil && !loadFailed(msg.err) {
		m.notify(msg.err)
		return m, nil
	}
	m.form = nil
	m.setView(tableView, msg.status)
	m.applyListing(msg.listing, msg.err)
	if msg.err != nil {
		m.notify(msg.err)
	} else {
		m.statusMsg = fmt.Sprintf("%s, %d rows", msg.status, len(m.browser.Rows()))
	}
	return m, nil
}

func (m Model) viewForm() string {
	fm := m.form
	fields := fm.form.Fields()
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Column))
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, field := range fields {
		marker := "  "
		if i == fm.focus {
			marker = cursorStyle.Render("> ")
		}
		label := fmt.Sprintf("%-*s", width, field.Column)
		if field.Kind == form.ReferenceField {
			label += "*"
		} else {
			label += " "
		}

		var value string
		switch {
		case field.ReadOnly:
			value = dimStyle.Render(field.Value())
		case field.Kind == form.ReferenceField:
			value = "< " + field.Value() + " >"
			if field.Selected < 0 {
				value = dimStyle.Render("< none >")
			}
			if i == fm.focus {
				n := len(field.Filter(fm.inputs[i].Value()))
				value += fmt.Sprintf("  filter: %s %s", fm.inputs[i].View(), dimStyle.Render(fmt.Sprintf("(%d of %d)", n, len(field.Choices))))
			}
		default:
			value = fm.inputs[i].View()
		}
		fmt.Fprintf(&b, "%s%s  %s\n", marker, label, value)
	}
	b.WriteString(dimStyle.Render("\n* required"))
	return b.String()
}
