package ui

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles the TUI renders with.
type Styles struct {
	Title, Success, Pending, InProgress, Accent, Muted, Error lipgloss.Style
	Selected, Done, Help, Modal, Backdrop, Banner              lipgloss.Style
}

// TUIStyles derives lipgloss styles from the current theme.
func TUIStyles() Styles {
	t := Current()
	fg := func(c string) lipgloss.Style {
		s := lipgloss.NewStyle()
		if c != "" {
			s = s.Foreground(lipgloss.Color(c))
		}
		return s
	}
	return Styles{
		Title:      lipgloss.NewStyle().Bold(true),
		Success:    fg(t.TUISuccess),
		Pending:    fg(t.TUIPending),
		InProgress: fg(t.TUIInProgress),
		Accent:     fg(t.TUIAccent),
		Muted:      lipgloss.NewStyle().Faint(true),
		Error:      fg(t.TUIError).Bold(true),
		Selected:   lipgloss.NewStyle().Bold(true).Reverse(true),
		Done:       lipgloss.NewStyle().Faint(true).Strikethrough(true),
		Help:       lipgloss.NewStyle().Faint(true),
		Modal: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(orDefault(t.TUIBorder, "8"))).
			Padding(0, 1),
		Backdrop: lipgloss.NewStyle().Faint(true),
		Banner:   fg(t.TUIError).Bold(true).Padding(0, 1),
	}
}

func orDefault(s, d string) string {
	if s == "" {
		return d
	}
	return s
}
