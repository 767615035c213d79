// Package breakpoint tracks per-file breakpoints as positions in the live
// document so that they stay attached to the same source line while the
// text is edited.
//
// Markers are stored as byte offsets, never as line numbers. A marker is
// converted to a line number only when breakpoints are handed to the
// execution engine or persisted.
//
// Files tracked here must not be folded by the editing surface: a hidden
// line would break the 1:1 correspondence between visible rows and the
// logical line numbers that toggling and engine reports rely on.
package breakpoint

import (
	"sort"
	"sync"

	"github.com/dshills/asmstudio/internal/document"
)

// Tracker is the breakpoint set of one document.
// All methods are thread-safe.
type Tracker struct {
	mu      sync.RWMutex
	doc     *document.Document
	offsets map[int]struct{}
}

// NewTracker creates an empty tracker bound to doc.
func NewTracker(doc *document.Document) *Tracker {
	return &Tracker{
		doc:     doc,
		offsets: make(map[int]struct{}),
	}
}

// NewTrackerFromLines creates a tracker from a persisted line list. Each line
// is converted to its start offset in the current document; lines outside
// the document are ignored.
func NewTrackerFromLines(doc *document.Document, lines []int) *Tracker {
	t := NewTracker(doc)
	t.Load(lines)
	return t
}

// Load replaces all markers with markers at the start of each given line.
func (t *Tracker) Load(lines []int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.offsets = make(map[int]struct{}, len(lines))
	for _, line := range lines {
		start, err := t.doc.LineStart(line)
		if err != nil {
			continue
		}
		t.offsets[start] = struct{}{}
	}
}

// Toggle flips the breakpoint on line. If a marker sits at the line's start
// offset it is removed, otherwise one is added there. Toggling the same line
// twice restores the original state. It reports whether a breakpoint is now
// set on the line.
func (t *Tracker) Toggle(line int) (bool, error) {
	start, err := t.doc.LineStart(line)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.offsets[start]; ok {
		delete(t.offsets, start)
		return false, nil
	}
	t.offsets[start] = struct{}{}
	return true, nil
}

// Has reports whether a breakpoint is set on line.
func (t *Tracker) Has(line int) bool {
	start, err := t.doc.LineStart(line)
	if err != nil {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.offsets[start]
	return ok
}

// Map moves every marker through a change that has already been applied to
// the document. Markers inside the replaced range are dropped. Survivors are
// snapped to the start of the line they now fall on, so a marker always
// denotes a whole line and Toggle's exact-offset test keeps working after
// text is typed at the beginning of a marked line.
func (t *Tracker) Map(c document.Change) {
	t.mu.Lock()
	defer t.mu.Unlock()

	mapped := make(map[int]struct{}, len(t.offsets))
	for off := range t.offsets {
		next, ok := TransformOffset(off, c)
		if !ok {
			continue
		}
		start, err := t.doc.LineStart(t.doc.LineAt(next))
		if err != nil {
			continue
		}
		mapped[start] = struct{}{}
	}
	t.offsets = mapped
}

// Lines returns the current line number of every marker, ascending and
// without duplicates.
func (t *Tracker) Lines() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[int]struct{}, len(t.offsets))
	lines := make([]int, 0, len(t.offsets))
	for off := range t.offsets {
		line := t.doc.LineAt(off)
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Offsets returns the tracked offsets in ascending order.
func (t *Tracker) Offsets() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	offsets := make([]int, 0, len(t.offsets))
	for off := range t.offsets {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	return offsets
}

// Len returns the number of markers.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.offsets)
}

// Clear removes every marker.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offsets = make(map[int]struct{})
}
