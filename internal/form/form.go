// Package form models the add/edit form of one table row.
package form

import (
	"context"
	"fmt"

	"libcat/internal/dblib"
)

type Mode int

const (
	Create Mode = iota
	Edit
)

func (m Mode) String() string {
	if m == Edit {
		return "edit"
	}
	return "create"
}

type FieldKind int

const (
	TextField FieldKind = iota
	ReferenceField
)

// Choice is one option of a reference picker.
type Choice struct {
	Label string
	Key   any
}

// Field is one column of the form. Text fields hold Text; reference fields
// hold an index into Choices, -1 when nothing is selected.
type Field struct {
	Column   string
	Kind     FieldKind
	ReadOnly bool
	Text     string
	Choices  []Choice
	Selected int
}

// Value returns the text shown for the field.
func (f *Field) Value() string {
	if f.Kind == ReferenceField {
		if f.Selected < 0 || f.Selected >= len(f.Choices) {
			return ""
		}
		return f.Choices[f.Selected].Label
	}
	return f.Text
}

// Form holds one row being created or edited.
type Form struct {
	table  *dblib.Table
	mode   Mode
	fields []*Field
	index  map[string]int
}

func choiceLabel(display, key any) string {
	return fmt.Sprintf("%s (%s)", dblib.FormatValue(display), dblib.FormatValue(key))
}

// New builds a form for t. Create mode omits the primary key; edit mode shows
// it read-only. Reference pickers are filled through exec.
func New(ctx context.Context, exec dblib.Executor, t *dblib.Table, mode Mode) (*Form, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, &dblib.SchemaIntrospectionError{Reason: "no columns"}
	}
	f := &Form{
		table: t,
		mode:  mode,
		index: make(map[string]int, len(t.Columns)),
	}
	pk := t.PrimaryKey()
	for _, col := range t.Columns {
		if col == pk && mode == Create {
			continue
		}
		field := &Field{Column: col, Kind: TextField, Selected: -1, ReadOnly: col == pk}
		if ref, ok := t.Reference(col); ok && col != pk {
			choices, err := loadChoices(ctx, exec, ref)
			if err != nil {
				return nil, &dblib.OpError{Op: "load choices for " + col, Table: t.Name, Err: err}
			}
			field.Kind = ReferenceField
			field.Choices = choices
		}
		f.index[col] = len(f.fields)
		f.fields = append(f.fields, field)
	}
	return f, nil
}

func loadChoices(ctx context.Context, exec dblib.Executor, ref dblib.Reference) ([]Choice, error) {
	query, err := dblib.BuildLookupQuery(exec.Handler(), ref)
	if err != nil {
		return nil, err
	}
	res, err := exec.Execute(ctx, query, nil, dblib.FetchAll)
	if err != nil {
		return nil, err
	}
	choices := make([]Choice, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 2 {
			continue
		}
		choices = append(choices, Choice{Label: choiceLabel(row[1], row[0]), Key: row[0]})
	}
	return choices, nil
}

func (f *Form) Table() *dblib.Table { return f.table }
func (f *Form) Mode() Mode { return f.mode }
func (f *Form) Fields() []*Field { return f.fields }

// Field returns the field for column, or nil.
func (f *Form) Field(column string) *Field {
	i, ok := f.index[column]
	if !ok {
		return nil
	}
	return f.fields[i]
}

func (f *Form) editable(column string, kind FieldKind) (*Field, error) {
	field := f.Field(column)
	if field == nil {
		return nil, fmt.Errorf("no field %q", column)
	}
	if field.ReadOnly {
		return nil, fmt.Errorf("field %q is read-only", column)
	}
	if field.Kind != kind {
		return nil, fmt.Errorf("field %q has the wrong kind", column)
	}
	return field, nil
}

// SetText sets a free-text field.
func (f *Form) SetText(column, value string) error {
	field, err := f.editable(column, TextField)
	if err != nil {
		return err
	}
	field.Text = value
	return nil
}

// Select picks a reference choice by its label.
func (f *Form) Select(column, label string) error {
	field, err := f.editable(column, ReferenceField)
	if err != nil {
		return err
	}
	for i, c := range field.Choices {
		if c.Label == label {
			field.Selected = i
			return nil
		}
	}
	return fmt.Errorf("no choice %q for %s", label, column)
}

// SelectIndex picks a reference choice by position.
func (f *Form) SelectIndex(column string, i int) error {
	field, err := f.editable(column, ReferenceField)
	if err != nil {
		return err
	}
	if i < -1 || i >= len(field.Choices) {
		return fmt.Errorf("choice %d out of range for %s", i, column)
	}
	field.Selected = i
	return nil
}

func sameKey(a, b any) bool {
	return dblib.FormatValue(a) == dblib.FormatValue(b)
}

// SelectKey picks the reference choice whose key equals key.
func (f *Form) SelectKey(column string, key any) error {
	field, err := f.editable(column, ReferenceField)
	if err != nil {
		return err
	}
	for i, c := range field.Choices {
		if sameKey(c.Key, key) {
			field.Selected = i
			return nil
		}
	}
	return fmt.Errorf("no choice with key %v for %s", key, column)
}

// Clear empties a field.
func (f *Form) Clear(column string) {
	if field := f.Field(column); field != nil && !field.ReadOnly {
		field.Text = ""
		field.Selected = -1
	}
}

// Populate fills the form from a stored row. A reference whose key is no
// longer among the choices is left unselected.
func (f *Form) Populate(rec dblib.Record) {
	for _, field := range f.fields {
		v, ok := rec[field.Column]
		if !ok {
			continue
		}
		if field.Kind == TextField {
			field.Text = dblib.FormatValue(v)
			continue
		}
		field.Selected = -1
		for i, c := range field.Choices {
			if v != nil && sameKey(c.Key, v) {
				field.Selected = i
				break
			}
		}
	}
}

// Validate fails when any reference field has no selection. Text fields are
// never required.
func (f *Form) Validate() error {
	var missing []string
	for _, field := range f.fields {
		if field.Kind == ReferenceField && !field.ReadOnly && field.Selected < 0 {
			missing = append(missing, field.Column)
		}
	}
	if len(missing) > 0 {
		return &dblib.ValidationError{Fields: missing, Reason: "missing required reference"}
	}
	return nil
}

// Record validates the form and converts it to column values. Empty text
// becomes NULL and read-only fields are left out.
func (f *Form) Record() (dblib.Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rec := make(dblib.Record, len(f.fields))
	for _, field := range f.fields {
		if field.ReadOnly {
			continue
		}
		switch field.Kind {
		case ReferenceField:
			rec[field.Column] = field.Choices[field.Selected].Key
		default:
			if field.Text == "" {
				rec[field.Column] = nil
			} else {
				rec[field.Column] = field.Text
			}
		}
	}
	return rec, nil
}
