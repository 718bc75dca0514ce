package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	`       _      _                        `,
	` __ __(_)_ _ | |_ _  _ ___ ___ ___   `,
	` \ V /| | '_||  _| || / _ (_-</ _ \  `,
	`  \_/ |_|_|   \__|\_,_\___/__/\___/  `,
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9"}

// PrintBanner writes the ASCII banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.NewOutput(w).Profile
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i])))
	}
	fmt.Fprintf(w, "  v%s\n\n", strings.TrimSpace(version))
}
