package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/asmstudio/internal/output"
)

var (
	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)
)

// renderEntry writes an output entry, colouring alerts and errors when the
// terminal supports it.
func renderEntry(w io.Writer, e output.Entry) error {
	switch e.Kind {
	case output.KindRed:
		_, err := fmt.Fprintln(w, alertStyle.Render("!! "+e.Message))
		return err
	case output.KindError:
		_, err := fmt.Fprintln(w, errorStyle.Render("Error: "+e.Message))
		return err
	default:
		return output.Render(w, e)
	}
}
