package output

import (
	"fmt"
	"io"
)

// Render writes an entry the way a terminal panel shows it: compile and run
// entries as plain status lines, errors labeled, alerts marked, and program
// text written verbatim so its own line breaks are kept.
func Render(w io.Writer, e Entry) error {
	var err error
	switch e.Kind {
	case KindText:
		_, err = io.WriteString(w, e.Message)
	case KindError:
		_, err = fmt.Fprintf(w, "Error: %s\n", e.Message)
	case KindRed:
		_, err = fmt.Fprintf(w, "!! %s\n", e.Message)
	default:
		_, err = fmt.Fprintln(w, e.Message)
	}
	return err
}

// RenderAll renders every entry in order.
func RenderAll(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if err := Render(w, e); err != nil {
			return err
		}
	}
	return nil
}
