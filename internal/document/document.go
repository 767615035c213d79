// Package document holds the live text of an open source file and the
// line index needed to convert between byte offsets and line numbers.
package document

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Errors returned by document operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrRangeInvalid     = errors.New("invalid range")
	ErrLineOutOfRange   = errors.New("line out of range")
)

// Edit replaces the byte range [Start, End) with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Insert returns an edit that inserts text at offset.
func Insert(offset int, text string) Edit {
	return Edit{Start: offset, End: offset, Text: text}
}

// Delete returns an edit that removes [start, end).
func Delete(start, end int) Edit {
	return Edit{Start: start, End: end}
}

// Change describes an applied edit as (start, end, insertedLength), with
// start and end expressed in pre-edit offsets.
type Change struct {
	Start       int
	End         int
	InsertedLen int
}

// Delta returns the change in document length.
func (c Change) Delta() int {
	return c.InsertedLen - (c.End - c.Start)
}

// Document is the text of one file. Line numbers are 1-based.
// All methods are thread-safe.
type Document struct {
	mu         sync.RWMutex
	text       string
	lineStarts []int
	revision   uint64
}

// New creates a document with the given content. CRLF and CR line endings
// are normalized to LF so offsets match what the engine counts as lines.
func New(text string) *Document {
	d := &Document{}
	d.text = normalizeLineEndings(text)
	d.reindex()
	return d
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// reindex rebuilds the line start table (must hold lock).
func (d *Document) reindex() {
	starts := make([]int, 1, strings.Count(d.text, "\n")+1)
	for i := 0; i < len(d.text); i++ {
		if d.text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	d.lineStarts = starts
}

// Text returns the full document content.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Len returns the document length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// LineCount returns the number of lines. An empty document has one line.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lineStarts)
}

// Revision returns a counter incremented on every applied edit.
func (d *Document) Revision() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// LineStart returns the byte offset of the first character of line.
func (d *Document) LineStart(line int) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if line < 1 || line > len(d.lineStarts) {
		return 0, ErrLineOutOfRange
	}
	return d.lineStarts[line-1], nil
}

// LineText returns the content of line without its trailing newline.
func (d *Document) LineText(line int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if line < 1 || line > len(d.lineStarts) {
		return "", ErrLineOutOfRange
	}
	start := d.lineStarts[line-1]
	end := len(d.text)
	if line < len(d.lineStarts) {
		end = d.lineStarts[line] - 1
	}
	return d.text[start:end], nil
}

// LineAt returns the line containing offset. Offsets past the end map to
// the last line.
func (d *Document) LineAt(offset int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lineAtLocked(offset)
}

func (d *Document) lineAtLocked(offset int) int {
	// First line start strictly greater than offset, minus one.
	i := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	})
	if i == 0 {
		return 1
	}
	return i
}

// Apply applies an edit and returns the change it produced.
func (d *Document) Apply(e Edit) (Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.Start < 0 || e.End > len(d.text) {
		return Change{}, ErrOffsetOutOfRange
	}
	if e.Start > e.End {
		return Change{}, ErrRangeInvalid
	}

	text := normalizeLineEndings(e.Text)
	d.text = d.text[:e.Start] + text + d.text[e.End:]
	d.reindex()
	d.revision++

	return Change{Start: e.Start, End: e.End, InsertedLen: len(text)}, nil
}

// SetText replaces the whole content and returns the equivalent change.
func (d *Document) SetText(text string) Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := len(d.text)
	d.text = normalizeLineEndings(text)
	d.reindex()
	d.revision++

	return Change{Start: 0, End: old, InsertedLen: len(d.text)}
}
