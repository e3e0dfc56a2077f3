package main

import (
	"fmt"
	"testing"
)

func TestBreadcrumbsAggregateRepeats(t *testing.T) {
	b := NewBreadcrumbBuffer(10)
	b.RecordKeyboard("j")
	b.RecordKeyboard("j")
	b.RecordKeyboard("j")
	b.RecordDatabase("SELECT books")

	entries := b.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Count != 3 {
		t.Errorf("key count = %d, want 3", entries[0].Count)
	}
	if entries[1].Message != "DB: SELECT books" {
		t.Errorf("second entry = %q", entries[1].Message)
	}
}

func TestBreadcrumbsKeepNewest(t *testing.T) {
	b := NewBreadcrumbBuffer(3)
	for i := 0; i < 5; i++ {
		b.RecordDatabase(fmt.Sprintf("DELETE t%d", i))
	}

	entries := b.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"DB: DELETE t2", "DB: DELETE t3", "DB: DELETE t4"} {
		if entries[i].Message != want {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Message, want)
		}
	}
}

func TestBreadcrumbsFlushEmpties(t *testing.T) {
	b := NewBreadcrumbBuffer(5)
	b.RecordNavigation("table", "books")
	b.Flush()
	if n := len(b.Entries()); n != 0 {
		t.Errorf("got %d entries after flush, want 0", n)
	}
}
