package breakpoint

import "github.com/dshills/asmstudio/internal/document"

// TransformOffset maps a marker offset through an applied change.
// The second result is false when the marker was edited over and must be
// dropped.
//
// Transformation rules:
//   - offset < start: unchanged
//   - offset >= end: shifted by the change's delta
//   - start <= offset < end: removed
//
// A pure insertion (start == end) has an empty removal range, so a marker
// sitting exactly at the insertion point moves right with the inserted text.
func TransformOffset(offset int, c document.Change) (int, bool) {
	if offset < c.Start {
		return offset, true
	}
	if offset >= c.End {
		return offset + c.Delta(), true
	}
	return 0, false
}
