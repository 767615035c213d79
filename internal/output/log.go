// Package output is the program terminal: an append-only, ordered list of
// typed output entries produced by compile, run and debug sessions.
package output

import (
	"sync"
)

// Kind classifies an entry for rendering.
type Kind string

const (
	// KindCompile is informational compiler progress.
	KindCompile Kind = "compile"
	// KindRun is session status ("Running...", "Finished Running").
	KindRun Kind = "run"
	// KindError is a labeled error message.
	KindError Kind = "error"
	// KindRed is an alert line.
	KindRed Kind = "red"
	// KindText is raw program output; line breaks are preserved literally.
	KindText Kind = "text"
)

// Entry is one line of terminal output.
type Entry struct {
	Kind    Kind
	Message string
}

// Log is the output log. All methods are thread-safe.
type Log struct {
	mu       sync.RWMutex
	entries  []Entry
	onAppend func(Entry)
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// OnAppend registers a callback invoked after every append. It is called
// without the log's lock held.
func (l *Log) OnAppend(fn func(Entry)) {
	l.mu.Lock()
	l.onAppend = fn
	l.mu.Unlock()
}

// Clear removes every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Append adds an entry to the end of the log.
func (l *Log) Append(kind Kind, message string) {
	e := Entry{Kind: kind, Message: message}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	fn := l.onAppend
	l.mu.Unlock()

	if fn != nil {
		fn(e)
	}
}

// AppendIf adds an entry only if keep reports true. keep is evaluated under
// the log's lock, so an entry it admits is ordered before any append that
// starts after keep turns false.
func (l *Log) AppendIf(kind Kind, message string, keep func() bool) bool {
	e := Entry{Kind: kind, Message: message}

	l.mu.Lock()
	if !keep() {
		l.mu.Unlock()
		return false
	}
	l.entries = append(l.entries, e)
	fn := l.onAppend
	l.mu.Unlock()

	if fn != nil {
		fn(e)
	}
	return true
}

// Entries returns a copy of all entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Since returns the entries appended after the first n.
func (l *Log) Since(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(l.entries) {
		return nil
	}
	return append([]Entry(nil), l.entries[n:]...)
}
