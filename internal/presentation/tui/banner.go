package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the interop banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _       _                        ", "#34d399"},
		{" (_)_ __ | |_ ___ _ __ ___  _ __   ", "#2dd4bf"},
		{" | | '_ \\| __/ _ \\ '__/ _ \\| '_ \\  ", "#22d3ee"},
		{" | | | | | ||  __/ | | (_) | |_) | ", "#38bdf8"},
		{" |_|_| |_|\\__\\___|_|  \\___/| .__/  ", "#60a5fa"},
		{"                           |_|     ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
