package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Back     key.Binding
	Quit     key.Binding
	Search   key.Binding
	SearchBy key.Binding
	SortBy   key.Binding
	Order    key.Binding
	Reset    key.Binding
	Reload   key.Binding
	Add      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Yes      key.Binding
	No       key.Binding
	Next     key.Binding
	Prev     key.Binding
	Left     key.Binding
	Right    key.Binding
	Clear    key.Binding
	Save     key.Binding
	Run      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		SearchBy: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "search column")),
		SortBy:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		Order:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "asc/desc")),
		Reset:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset")),
		Reload:   key.NewBinding(key.WithKeys("ctrl+r", "f5"), key.WithHelp("ctrl+r", "reload")),
		Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:     key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Yes:      key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm")),
		No:       key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "cancel")),
		Next:     key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
		Left:     key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "prev choice")),
		Right:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next choice")),
		Clear:    key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear")),
		Save:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Run:      key.NewBinding(key.WithKeys("ctrl+s", "enter"), key.WithHelp("enter", "run")),
	}
}

func (k keyMap) menuHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Quit}
}

func (k keyMap) tableHelp() []key.Binding {
	return []key.Binding{k.Search, k.SearchBy, k.SortBy, k.Order, k.Reset, k.Add, k.Edit, k.Delete, k.Back}
}

func (k keyMap) formHelp() []key.Binding {
	return []key.Binding{k.Next, k.Left, k.Right, k.Clear, k.Save, k.Back}
}

func (k keyMap) reportHelp() []key.Binding {
	return []key.Binding{k.Next, k.Left, k.Right, k.Run, k.Back}
}
