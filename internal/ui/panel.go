package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// visibleWidth ignores escape sequences and counts wide runes as two cells.
func visibleWidth(s string) int { return lipgloss.Width(s) }

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	ratio := min(float64(done)/float64(total), 1)
	filled := int(ratio * float64(width))
	return fmt.Sprintf("%s%s %3d%%",
		strings.Repeat("█", filled), strings.Repeat("░", width-filled), int(ratio*100))
}

// Panel draws a framed box on Stdout using the current theme.
func Panel(lines []string) { FPanel(Stdout, lines) }

// FPanel draws a framed box on w.
func FPanel(w io.Writer, lines []string) {
	t := Current()
	maxw := 0
	for _, ln := range lines {
		maxw = max(maxw, visibleWidth(ln))
	}
	rule := strings.Repeat(t.H, maxw+2)
	fmt.Fprintln(w, t.CornerTL+rule+t.CornerTR)
	for _, ln := range lines {
		gap := strings.Repeat(" ", maxw-visibleWidth(ln))
		fmt.Fprintf(w, "%s %s%s %s\n", t.V, ln, gap, t.V)
	}
	fmt.Fprintln(w, t.CornerBL+rule+t.CornerBR)
}

// Truncate shortens s to n visible runes with an ellipsis.
func Truncate(s string, n int) string {
	if n <= 1 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
