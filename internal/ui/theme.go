package ui

import (
	"strings"

	"github.com/Makepad-fr/tada/internal/model"
)

// Theme bundles palette + symbols + box borders.
// All UI helpers pull from `current`.
type Theme struct {
	Name                                                      string
	Title, Muted, Accent, Success, Error, Pending, InProgress string
	CornerTL, CornerTR, CornerBL, CornerBR                    string
	H, V                                                      string
	SymDone, SymPending, SymInProgress                        string

	// lipgloss colors for the TUI
	TUISuccess, TUIPending, TUIInProgress, TUIAccent, TUIError, TUIBorder string
}

// Themes lists the accepted names.
var Themes = []string{"classic", "neon", "mono"}

var current = classic()

func classic() Theme {
	return Theme{
		Name:  "classic",
		Title: bold, Muted: fgGray, Accent: fgBlue,
		Success: fgGreen, Error: fgRed, Pending: fgYellow, InProgress: fgCyan,
		CornerTL: "┌", CornerTR: "┐", CornerBL: "└", CornerBR: "┘",
		H: "─", V: "│",
		SymDone: "☑", SymPending: "☐", SymInProgress: "◐",
		TUISuccess: "42", TUIPending: "214", TUIInProgress: "39", TUIAccent: "12", TUIError: "9", TUIBorder: "8",
	}
}

// SetTheme switches the palette; unknown names select classic.
func SetTheme(name string) {
	switch strings.ToLower(name) {
	case "neon":
		disableColor = false
		current = Theme{
			Name:  "neon",
			Title: "\033[95m", // bright magenta
			Muted: fgGray, Accent: "\033[96m",
			Success: fgGreen, Error: fgRed, Pending: "\033[93m", InProgress: "\033[94m",
			CornerTL: "╭", CornerTR: "╮", CornerBL: "╰", CornerBR: "╯",
			H: "─", V: "│",
			SymDone: "◼", SymPending: "◻", SymInProgress: "◧",
			TUISuccess: "48", TUIPending: "227", TUIInProgress: "45", TUIAccent: "201", TUIError: "197", TUIBorder: "201",
		}
	case "mono":
		disableColor = true
		current = Theme{
			Name:     "mono",
			CornerTL: "+", CornerTR: "+", CornerBL: "+", CornerBR: "+",
			H: "-", V: "|",
			SymDone: "[x]", SymPending: "[ ]", SymInProgress: "[~]",
		}
	default:
		disableColor = false
		current = classic()
	}
}

// Current returns the active theme.
func Current() Theme { return current }

// Glyph is the checkbox-like symbol for s.
func (t Theme) Glyph(s model.Status) string {
	switch s {
	case model.StatusDone:
		return t.SymDone
	case model.StatusInProgress:
		return t.SymInProgress
	default:
		return t.SymPending
	}
}

// StatusColor is the ANSI color for s.
func (t Theme) StatusColor(s model.Status) string {
	switch s {
	case model.StatusDone:
		return t.Success
	case model.StatusInProgress:
		return t.InProgress
	default:
		return t.Pending
	}
}

// StatusBadge renders glyph and name of s in its color.
func StatusBadge(s model.Status) string {
	return C(current.StatusColor(s), current.Glyph(s)+" "+string(s))
}
