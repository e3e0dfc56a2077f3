// Package browser drives one table view: filtered and sorted listing plus
// add, edit and delete through record forms.
package browser

import (
	"context"
	"errors"

	"libcat/internal/catalog"
	"libcat/internal/dblib"
	"libcat/internal/form"
)

type State int

const (
	Idle State = iota
	Loading
	Error
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Selection holds the primary keys of the rows chosen by the user, captured
// when they were selected.
type Selection struct {
	Keys []any
}

// Confirm asks the user to approve a destructive action.
type Confirm func(prompt string) bool

type Browser struct {
	exec  dblib.Executor
	table *dblib.Table

	filter  dblib.FilterSort
	columns []string
	rows    [][]any
	state   State
	lastErr error
}

// Open resolves the table's descriptor and performs the first load with the
// default filter. A schema failure aborts opening the view.
func Open(ctx context.Context, exec dblib.Executor, cat *catalog.Catalog, name string) (*Browser, error) {
	table, err := cat.Resolve(ctx, exec, name)
	if err != nil {
		return nil, &dblib.OpError{Op: "open table", Table: name, Err: err}
	}
	b := New(exec, table)
	if err := b.Load(ctx, dblib.DefaultFilterSort(table)); err != nil {
		return b, err
	}
	return b, nil
}

// New creates an idle browser over an already resolved table.
func New(exec dblib.Executor, table *dblib.Table) *Browser {
	return &Browser{
		exec:    exec,
		table:   table,
		filter:  dblib.DefaultFilterSort(table),
		columns: table.Columns,
	}
}

func (b *Browser) Table() *dblib.Table { return b.table }
func (b *Browser) Filter() dblib.FilterSort { return b.filter }
func (b *Browser) Columns() []string { return b.columns }
func (b *Browser) Rows() [][]any { return b.rows }
func (b *Browser) State() State { return b.state }
func (b *Browser) Err() error { return b.lastErr }
func (b *Browser) Executor() dblib.Executor { return b.exec }

func (b *Browser) opError(op string, err error) error {
	return &dblib.OpError{Op: op, Table: b.table.Name, Err: err}
}

// Listing is the result of one list query together with the filter that
// produced it.
type Listing struct {
	Filter  dblib.FilterSort
	Columns []string
	Rows    [][]any
}

// Fetch runs the list query for fs and returns the rows without changing
// the browser. It only reads the browser, so it may run while another
// goroutine renders the current rows.
func (b *Browser) Fetch(ctx context.Context, fs dblib.FilterSort) (*Listing, error) {
	query, args, err := dblib.BuildListQuery(b.exec.Handler(), b.table, fs)
	if err != nil {
		return nil, b.opError("load", err)
	}
	res, err := b.exec.Execute(ctx, query, args, dblib.FetchAll)
	if err != nil {
		return nil, b.opError("load", err)
	}
	l := &Listing{Filter: fs, Columns: b.columns, Rows: res.Rows}
	if len(res.Columns) > 0 {
		l.Columns = res.Columns
	}
	return l, nil
}

// Apply installs the outcome of a Fetch. Rows, columns and filter are
// replaced together on success; on failure the previous rows stay and the
// state is Error.
func (b *Browser) Apply(l *Listing, err error) error {
	if err != nil {
		b.state = Error
		b.lastErr = err
		return err
	}
	b.filter = l.Filter
	b.columns = l.Columns
	b.rows = l.Rows
	b.state = Idle
	b.lastErr = nil
	return nil
}

// Load lists the table with fs and applies the result.
func (b *Browser) Load(ctx context.Context, fs dblib.FilterSort) error {
	b.state = Loading
	return b.Apply(b.Fetch(ctx, fs))
}

// Reload repeats the current listing.
func (b *Browser) Reload(ctx context.Context) error {
	return b.Load(ctx, b.filter)
}

// ResetFilters restores the default filter and reloads.
func (b *Browser) ResetFilters(ctx context.Context) error {
	return b.Load(ctx, dblib.DefaultFilterSort(b.table))
}

// Select captures the primary keys of the given row indexes.
func (b *Browser) Select(rows ...int) Selection {
	sel := Selection{}
	for _, i := range rows {
		if i < 0 || i >= len(b.rows) || len(b.rows[i]) == 0 {
			continue
		}
		sel.Keys = append(sel.Keys, b.rows[i][0])
	}
	return sel
}

func (sel Selection) single() (any, error) {
	if len(sel.Keys) != 1 {
		return nil, dblib.ErrSelection
	}
	return sel.Keys[0], nil
}

func (b *Browser) rowByKey(key any) []any {
	want := dblib.FormatValue(key)
	for _, row := range b.rows {
		if len(row) > 0 && dblib.FormatValue(row[0]) == want {
			return row
		}
	}
	return nil
}

// NewForm returns an empty create form.
func (b *Browser) NewForm(ctx context.Context) (*form.Form, error) {
	f, err := form.New(ctx, b.exec, b.table, form.Create)
	if err != nil {
		return nil, b.opError("new record", err)
	}
	return f, nil
}

// EditForm returns an edit form populated from the selected row.
func (b *Browser) EditForm(ctx context.Context, sel Selection) (*form.Form, error) {
	key, err := sel.single()
	if err != nil {
		return nil, b.opError("edit record", err)
	}
	row := b.rowByKey(key)
	if row == nil {
		return nil, b.opError("edit record", dblib.ErrRecordGone)
	}
	f, err := form.New(ctx, b.exec, b.table, form.Edit)
	if err != nil {
		return nil, b.opError("edit record", err)
	}
	rec := make(dblib.Record, len(b.columns))
	for i, col := range b.columns {
		if i < len(row) {
			rec[col] = row[i]
		}
	}
	f.Populate(rec)
	return f, nil
}

// Insert adds the form's record without reloading. Validation failures send
// nothing to the database and leave the form as it was.
func (b *Browser) Insert(ctx context.Context, f *form.Form) error {
	rec, err := f.Record()
	if err != nil {
		return b.opError("add record", err)
	}
	query, args, err := dblib.BuildInsertQuery(b.exec.Handler(), b.table, rec)
	if err != nil {
		return b.opError("add record", err)
	}
	if _, err := b.exec.Execute(ctx, query, args, dblib.FetchNone); err != nil {
		return b.opError("add record", err)
	}
	return nil
}

// Add inserts the form's record and reloads.
func (b *Browser) Add(ctx context.Context, f *form.Form) error {
	if err := b.Insert(ctx, f); err != nil {
		return err
	}
	return b.Reload(ctx)
}

// Update writes the form over the selected row without reloading. The last
// write wins.
func (b *Browser) Update(ctx context.Context, sel Selection, f *form.Form) error {
	key, err := sel.single()
	if err != nil {
		return b.opError("edit record", err)
	}
	rec, err := f.Record()
	if err != nil {
		return b.opError("edit record", err)
	}
	query, args, err := dblib.BuildUpdateQuery(b.exec.Handler(), b.table, rec, key)
	if err != nil {
		return b.opError("edit record", err)
	}
	res, err := b.exec.Execute(ctx, query, args, dblib.FetchNone)
	if err != nil {
		return b.opError("edit record", err)
	}
	if res.RowsAffected == 0 {
		return b.opError("edit record", dblib.ErrRecordGone)
	}
	return nil
}

// Edit updates the selected row from the form and reloads.
func (b *Browser) Edit(ctx context.Context, sel Selection, f *form.Form) error {
	if err := b.Update(ctx, sel, f); err != nil {
		return err
	}
	return b.Reload(ctx)
}

// Remove deletes the selected row after confirm approves it, without
// reloading. It reports whether a row was deleted.
func (b *Browser) Remove(ctx context.Context, sel Selection, confirm Confirm) (bool, error) {
	key, err := sel.single()
	if err != nil {
		return false, b.opError("delete record", err)
	}
	if confirm == nil || !confirm("Delete the selected record?") {
		return false, nil
	}
	query, args, err := dblib.BuildDeleteQuery(b.exec.Handler(), b.table, key)
	if err != nil {
		return false, b.opError("delete record", err)
	}
	res, err := b.exec.Execute(ctx, query, args, dblib.FetchNone)
	if err != nil {
		return false, b.opError("delete record", err)
	}
	if res.RowsAffected == 0 {
		return false, b.opError("delete record", dblib.ErrRecordGone)
	}
	return true, nil
}

// Delete removes the selected row after confirm approves it and reloads.
func (b *Browser) Delete(ctx context.Context, sel Selection, confirm Confirm) (bool, error) {
	deleted, err := b.Remove(ctx, sel, confirm)
	if !deleted || err != nil {
		return deleted, err
	}
	return true, b.Reload(ctx)
}

// IsValidation reports whether err stopped an operation before it reached
// the database.
func IsValidation(err error) bool {
	var verr *dblib.ValidationError
	return errors.As(err, &verr) || errors.Is(err, dblib.ErrSelection)
}
