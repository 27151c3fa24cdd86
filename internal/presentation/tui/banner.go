package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the ludics ASCII art banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct{ text, color string }{
		{"  _           _ _          ", "#818cf8"},
		{" | |_   _  __| (_) ___ ___ ", "#a78bfa"},
		{" | | | | |/ _` | |/ __/ __|", "#c084fc"},
		{" | | |_| | (_| | | (__\\__ \\", "#e879f9"},
		{" |_|\\__,_|\\__,_|_|\\___|___/", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}
