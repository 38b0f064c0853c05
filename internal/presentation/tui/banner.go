package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the wool banner to w, colored when w is a terminal.
func PrintBanner(w io.Writer) {
	p := ProfileFor(w)
	lines := []struct{ text, color string }{
		{" __      __ ___   ___  _", "#a78bfa"},
		{" \\ \\ /\\ / // _ \\ / _ \\| |", "#c084fc"},
		{"  \\ V  V /| (_) | (_) | |", "#e879f9"},
		{"   \\_/\\_/  \\___/ \\___/|_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
