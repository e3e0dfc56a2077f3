package form

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"libcat/internal/catalog"
	"libcat/internal/dblib"
	"libcat/internal/testdb"
)

// countingExecutor records how many statements reach the database.
type countingExecutor struct {
	dblib.Executor
	executed int
}

func (c *countingExecutor) Execute(ctx context.Context, stmt string, args []any, mode dblib.FetchMode) (*dblib.Result, error) {
	c.executed++
	return c.Executor.Execute(ctx, stmt, args, mode)
}

func setupForm(t *testing.T, table string, mode Mode) (*Form, *countingExecutor, map[string]int64) {
	t.Helper()
	gw := testdb.New(t)
	ids := testdb.Seed(t, gw)
	exec := &countingExecutor{Executor: gw}

	desc, err := catalog.Default().Resolve(context.Background(), exec, table)
	if err != nil {
		t.Fatalf("Failed to resolve %s: %v", table, err)
	}
	f, err := New(context.Background(), exec, desc, mode)
	if err != nil {
		t.Fatalf("Failed to build form: %v", err)
	}
	return f, exec, ids
}

func TestNewFormFields(t *testing.T) {
	f, _, _ := setupForm(t, "books", Create)

	var columns []string
	for _, field := range f.Fields() {
		columns = append(columns, field.Column)
	}
	want := []string{"title", "author", "library_id", "theme_id", "quantity"}
	if !reflect.DeepEqual(columns, want) {
		t.Errorf("create form columns = %v, want %v", columns, want)
	}

	lib := f.Field("library_id")
	if lib.Kind != ReferenceField {
		t.Fatalf("library_id kind = %v, want reference", lib.Kind)
	}
	// Choices are ordered by display column.
	labels := []string{lib.Choices[0].Label, lib.Choices[1].Label}
	if !reflect.DeepEqual(labels, []string{"Branch (2)", "Central (1)"}) {
		t.Errorf("library labels = %v", labels)
	}
	if f.Field("title").Kind != TextField {
		t.Error("title should be a text field")
	}
}

func TestEditFormShowsKeyReadOnly(t *testing.T) {
	f, _, _ := setupForm(t, "books", Edit)
	pk := f.Field("book_id")
	if pk == nil || !pk.ReadOnly {
		t.Fatalf("edit form primary key = %+v, want read-only field", pk)
	}
	if err := f.SetText("book_id", "42"); err == nil {
		t.Error("expected error setting read-only field")
	}
}

func TestValidationBlocksMissingReference(t *testing.T) {
	f, exec, ids := setupForm(t, "books", Create)
	before := exec.executed

	f.SetText("title", "Solaris")
	if err := f.SelectKey("library_id", ids["central"]); err != nil {
		t.Fatalf("SelectKey() error = %v", err)
	}

	_, err := f.Record()
	var verr *dblib.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.Fields, []string{"theme_id"}) {
		t.Errorf("missing fields = %v, want [theme_id]", verr.Fields)
	}
	if exec.executed != before {
		t.Errorf("validation executed %d statements", exec.executed-before)
	}
}

func TestRecordConversion(t *testing.T) {
	f, _, ids := setupForm(t, "books", Create)

	f.SetText("title", "Solaris")
	f.SetText("author", "")
	f.SetText("quantity", "4")
	if err := f.Select("library_id", "Central (1)"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := f.SelectKey("theme_id", ids["science"]); err != nil {
		t.Fatalf("SelectKey() error = %v", err)
	}

	rec, err := f.Record()
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	want := dblib.Record{
		"title":      "Solaris",
		"author":     nil,
		"library_id": ids["central"],
		"theme_id":   ids["science"],
		"quantity":   "4",
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Record() = %v, want %v", rec, want)
	}
}

func TestPopulate(t *testing.T) {
	f, _, ids := setupForm(t, "books", Edit)

	f.Populate(dblib.Record{
		"book_id":    ids["dune"],
		"title":      "Dune",
		"author":     nil,
		"library_id": ids["branch"],
		"theme_id":   int64(999),
		"quantity":   int64(3),
	})

	if got := f.Field("title").Text; got != "Dune" {
		t.Errorf("title = %q", got)
	}
	if got := f.Field("author").Text; got != "" {
		t.Errorf("null author = %q, want empty", got)
	}
	if got := f.Field("quantity").Text; got != "3" {
		t.Errorf("quantity = %q", got)
	}
	if got := f.Field("library_id").Value(); got != "Branch (2)" {
		t.Errorf("library_id = %q, want Branch (2)", got)
	}
	// An orphaned key leaves the picker blank without an error.
	if got := f.Field("theme_id").Selected; got != -1 {
		t.Errorf("orphaned theme_id selected = %d, want -1", got)
	}
	if err := f.Validate(); err == nil {
		t.Error("expected validation to fail for the orphaned reference")
	}
}

func TestFieldFilter(t *testing.T) {
	field := &Field{
		Kind: ReferenceField,
		Choices: []Choice{
			{Label: "orders (1)"},
			{Label: "test_users (2)"},
			{Label: "users (3)"},
			{Label: "user_profiles (4)"},
			{Label: "my_users (5)"},
		},
	}

	tests := []struct {
		search   string
		expected []int
	}{
		{"user", []int{2, 3, 1, 4}},
		{"test", []int{1}},
		{"usr", []int{1, 2, 3, 4}},
		{"ORD", []int{0}},
		{"", []int{0, 1, 2, 3, 4}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := field.Filter(tt.search)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Filter(%q) = %v, want %v", tt.search, got, tt.expected)
			}
		})
	}
}
