package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	cmdStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
)

// printBanner writes a bold title followed by dimmed "key: value" lines.
func printBanner(w io.Writer, title string, pairs ...string) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(title))
	for i := 0; i+1 < len(pairs); i += 2 {
		_, _ = fmt.Fprintf(w, "  %s %s\n", dimStyle.Render(pairs[i]+":"), pairs[i+1])
	}
}
