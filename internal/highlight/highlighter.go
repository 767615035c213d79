// Package highlight marks the single source line execution is paused at.
package highlight

import "sync"

// LineCounter is the part of a document the highlighter needs.
type LineCounter interface {
	LineCount() int
}

// Location is a file id and a 1-based line number. The zero value means
// nothing is highlighted.
type Location struct {
	FileID string
	Line   int
}

// IsZero reports whether the location denotes no line.
func (l Location) IsZero() bool {
	return l.FileID == "" && l.Line == 0
}

// Highlighter holds the current execution location.
// All methods are thread-safe.
type Highlighter struct {
	mu  sync.RWMutex
	loc Location
}

// New creates a highlighter with nothing marked.
func New() *Highlighter {
	return &Highlighter{}
}

// Set marks line in file. Any previously marked line is unmarked.
func (h *Highlighter) Set(fileID string, line int) {
	h.mu.Lock()
	h.loc = Location{FileID: fileID, Line: line}
	h.mu.Unlock()
}

// Clear unmarks everything; equivalent to Set("", 0).
func (h *Highlighter) Clear() {
	h.Set("", 0)
}

// Location returns the current target.
func (h *Highlighter) Location() Location {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loc
}

// LineFor returns the line to mark in the document of fileID, recomputed
// against the document's current line count. The second result is false
// when nothing should be marked in that document: another file is targeted,
// the line is zero, or the line lies outside the document.
func (h *Highlighter) LineFor(fileID string, doc LineCounter) (int, bool) {
	h.mu.RLock()
	loc := h.loc
	h.mu.RUnlock()

	if loc.FileID == "" || loc.FileID != fileID || doc == nil {
		return 0, false
	}
	if loc.Line < 1 || loc.Line > doc.LineCount() {
		return 0, false
	}
	return loc.Line, true
}

// Reveal returns the line the view should center when fileID becomes the
// active tab. It reports false when the file holds no marked line.
func (h *Highlighter) Reveal(fileID string, doc LineCounter) (int, bool) {
	return h.LineFor(fileID, doc)
}
