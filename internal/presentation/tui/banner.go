package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{" _              _           ", "#fbbf24"},
	{"| |   _   _  __| |_   _ ___ ", "#f59e0b"},
	{"| |  | | | |/ _` | | | / __|", "#f97316"},
	{"| |__| |_| | (_| | |_| \\__ \\", "#ef4444"},
	{"|_____\\__,_|\\__,_|\\__,_|___/", "#dc2626"},
}

// PrintBanner writes the Ludus banner followed by a subtitle line, usually
// the game being played. Colors degrade to the terminal's profile.
func PrintBanner(w io.Writer, subtitle string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if subtitle != "" {
		fmt.Fprintln(w, termenv.String("  "+subtitle).Faint())
	}
	fmt.Fprintln(w)
}
