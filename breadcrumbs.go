package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// BreadcrumbType is the category a breadcrumb is filed under in Sentry.
type BreadcrumbType string

const (
	BreadcrumbKeyboard   BreadcrumbType = "keyboard"
	BreadcrumbNavigation BreadcrumbType = "navigation"
	BreadcrumbDatabase   BreadcrumbType = "database"
)

// aggregateWindow is how close two identical events must be to merge.
const aggregateWindow = 100 * time.Millisecond

type BreadcrumbEntry struct {
	Type      BreadcrumbType
	Message   string
	Data      map[string]any
	Timestamp time.Time
	Level     sentry.Level
	Count     int
}

// BreadcrumbBuffer is a thread-safe ring of the most recent user and
// database events. Repeats of the same event in quick succession are merged
// into one entry with a count.
type BreadcrumbBuffer struct {
	mu      sync.Mutex
	entries []BreadcrumbEntry
	next    int
	count   int
}

func NewBreadcrumbBuffer(maxSize int) *BreadcrumbBuffer {
	if maxSize < 1 {
		maxSize = 1
	}
	return &BreadcrumbBuffer{entries: make([]BreadcrumbEntry, maxSize)}
}

func (b *BreadcrumbBuffer) last() *BreadcrumbEntry {
	if b.count == 0 {
		return nil
	}
	return &b.entries[(b.next-1+len(b.entries))%len(b.entries)]
}

func (b *BreadcrumbBuffer) add(entry BreadcrumbEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if last := b.last(); last != nil && last.Type == entry.Type && last.Message == entry.Message &&
		entry.Timestamp.Sub(last.Timestamp) <= aggregateWindow {
		last.Count++
		last.Timestamp = entry.Timestamp
		return
	}

	entry.Count = 1
	b.entries[b.next] = entry
	b.next = (b.next + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// RecordKeyboard records a key press in the terminal shell.
func (b *BreadcrumbBuffer) RecordKeyboard(key string) {
	b.add(BreadcrumbEntry{
		Type:      BreadcrumbKeyboard,
		Message:   "Key: " + key,
		Timestamp: time.Now(),
		Level:     sentry.LevelDebug,
		Data:      map[string]any{"key": key},
	})
}

// RecordNavigation records a view change (menu, table, form, report).
func (b *BreadcrumbBuffer) RecordNavigation(view string, description string) {
	b.add(BreadcrumbEntry{
		Type:      BreadcrumbNavigation,
		Message:   fmt.Sprintf("Navigation: %s - %s", view, description),
		Timestamp: time.Now(),
		Level:     sentry.LevelInfo,
		Data:      map[string]any{"view": view, "description": description},
	})
}

// RecordDatabase records a statement sent by the gateway. op is the
// statement keyword and target table, never the bound values.
func (b *BreadcrumbBuffer) RecordDatabase(op string) {
	b.add(BreadcrumbEntry{
		Type:      BreadcrumbDatabase,
		Message:   "DB: " + op,
		Timestamp: time.Now(),
		Level:     sentry.LevelInfo,
		Data:      map[string]any{"operation": op},
	})
}

// Entries returns the buffered events oldest first.
func (b *BreadcrumbBuffer) Entries() []BreadcrumbEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ordered()
}

func (b *BreadcrumbBuffer) ordered() []BreadcrumbEntry {
	out := make([]BreadcrumbEntry, 0, b.count)
	start := (b.next - b.count + len(b.entries)) % len(b.entries)
	for i := 0; i < b.count; i++ {
		out = append(out, b.entries[(start+i)%len(b.entries)])
	}
	return out
}

// Flush moves the buffered events onto the current Sentry scope and empties
// the buffer.
func (b *BreadcrumbBuffer) Flush() {
	b.mu.Lock()
	entries := b.ordered()
	b.next = 0
	b.count = 0
	b.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		for _, e := range entries {
			message, data := e.Message, e.Data
			if e.Count > 1 {
				message = fmt.Sprintf("%s (x%d)", e.Message, e.Count)
				data = make(map[string]any, len(e.Data)+1)
				for k, v := range e.Data {
					data[k] = v
				}
				data["count"] = e.Count
			}
			scope.AddBreadcrumb(&sentry.Breadcrumb{
				Message:   message,
				Category:  string(e.Type),
				Data:      data,
				Timestamp: e.Timestamp,
				Level:     e.Level,
			}, len(b.entries))
		}
	})
}

// Global breadcrumb buffer; nil while telemetry is off.
var breadcrumbs *BreadcrumbBuffer

func InitBreadcrumbs(maxSize int) {
	breadcrumbs = NewBreadcrumbBuffer(maxSize)
}

func recordNavigation(view, description string) {
	if breadcrumbs != nil {
		breadcrumbs.RecordNavigation(view, description)
	}
}
