package document

import (
	"errors"
	"testing"
)

func TestNewNormalizesLineEndings(t *testing.T) {
	d := New("a\r\nb\rc")
	if got := d.Text(); got != "a\nb\nc" {
		t.Errorf("Text() = %q", got)
	}
	if got := d.LineCount(); got != 3 {
		t.Errorf("LineCount() = %d, want 3", got)
	}
}

func TestEmptyDocumentHasOneLine(t *testing.T) {
	d := New("")
	if got := d.LineCount(); got != 1 {
		t.Errorf("LineCount() = %d, want 1", got)
	}
	start, err := d.LineStart(1)
	if err != nil || start != 0 {
		t.Errorf("LineStart(1) = %d, %v", start, err)
	}
}

func TestLineStartAndLineAt(t *testing.T) {
	d := New("mov r0, #1\nadd r0, r0\n\nb end\n")
	tests := []struct {
		line  int
		start int
	}{
		{1, 0},
		{2, 11},
		{3, 22},
		{4, 23},
		{5, 29},
	}
	for _, tt := range tests {
		got, err := d.LineStart(tt.line)
		if err != nil {
			t.Fatalf("LineStart(%d): %v", tt.line, err)
		}
		if got != tt.start {
			t.Errorf("LineStart(%d) = %d, want %d", tt.line, got, tt.start)
		}
		if l := d.LineAt(tt.start); l != tt.line {
			t.Errorf("LineAt(%d) = %d, want %d", tt.start, l, tt.line)
		}
	}

	if got := d.LineAt(5); got != 1 {
		t.Errorf("LineAt(5) = %d, want 1", got)
	}
	if got := d.LineAt(10); got != 1 {
		t.Errorf("LineAt(10) (the newline) = %d, want 1", got)
	}

	if _, err := d.LineStart(0); !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("LineStart(0) error = %v", err)
	}
	if _, err := d.LineStart(6); !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("LineStart(6) error = %v", err)
	}
}

func TestLineText(t *testing.T) {
	d := New("one\ntwo\nthree")
	for i, want := range []string{"one", "two", "three"} {
		got, err := d.LineText(i + 1)
		if err != nil || got != want {
			t.Errorf("LineText(%d) = %q, %v; want %q", i+1, got, err, want)
		}
	}
}

func TestApply(t *testing.T) {
	d := New("abc\ndef\n")

	change, err := d.Apply(Insert(4, "xyz\n"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if change != (Change{Start: 4, End: 4, InsertedLen: 4}) {
		t.Errorf("change = %+v", change)
	}
	if change.Delta() != 4 {
		t.Errorf("Delta() = %d", change.Delta())
	}
	if got := d.Text(); got != "abc\nxyz\ndef\n" {
		t.Errorf("Text() = %q", got)
	}
	if got := d.LineCount(); got != 4 {
		t.Errorf("LineCount() = %d", got)
	}

	change, err = d.Apply(Delete(0, 4))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if change.Delta() != -4 {
		t.Errorf("Delta() = %d", change.Delta())
	}
	if d.Revision() != 2 {
		t.Errorf("Revision() = %d, want 2", d.Revision())
	}
}

func TestApplyInvalid(t *testing.T) {
	d := New("abc")
	if _, err := d.Apply(Edit{Start: 2, End: 1}); !errors.Is(err, ErrRangeInvalid) {
		t.Errorf("reversed range error = %v", err)
	}
	if _, err := d.Apply(Edit{Start: 0, End: 10}); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("out of range error = %v", err)
	}
	if _, err := d.Apply(Edit{Start: -1, End: 0}); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("negative offset error = %v", err)
	}
	if d.Revision() != 0 {
		t.Error("failed edits must not bump the revision")
	}
}

func TestSetText(t *testing.T) {
	d := New("abc")
	change := d.SetText("a\nb")
	if change != (Change{Start: 0, End: 3, InsertedLen: 3}) {
		t.Errorf("change = %+v", change)
	}
	if d.LineCount() != 2 {
		t.Errorf("LineCount() = %d", d.LineCount())
	}
}
