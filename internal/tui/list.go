package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/session"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/view"
)

// listItem adapts model.Item to bubbles/list.Item
type listItem struct{ it model.Item }

func (i listItem) Title() string       { return i.it.Title }
func (i listItem) Description() string { return i.it.Description }
func (i listItem) FilterValue() string { return i.it.Title + " " + i.it.Description }

// itemDelegate renders one line per todo.
type itemDelegate struct{ st ui.Styles }

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd     { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	li, ok := item.(listItem)
	if !ok {
		return
	}
	fmt.Fprint(w, d.line(li.it, index == m.Index(), m.Width()))
}

func (d itemDelegate) line(it model.Item, selected bool, width int) string {
	th := ui.Current()
	glyph := th.Glyph(it.Status)
	switch it.Status {
	case model.StatusDone:
		glyph = d.st.Success.Render(glyph)
	case model.StatusInProgress:
		glyph = d.st.InProgress.Render(glyph)
	default:
		glyph = d.st.Pending.Render(glyph)
	}
	text := it.Title
	if it.Description != "" {
		text += "  " + strings.ReplaceAll(it.Description, "\n", " ")
	}
	text = ui.Truncate(text, max(width-12, 10))
	if it.Done() {
		text = d.st.Done.Render(text)
	}
	if it.ImageURL != "" {
		text += " " + d.st.Accent.Render("▣")
	}
	prefix := "  "
	if selected {
		prefix = d.st.Selected.Render("> ")
	}
	return prefix + glyph + " " + text
}

var (
	addKey    = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editKey   = key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit"))
	cycleKey  = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "next status"))
	deleteKey = key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete"))
	filterKey = key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter"))
	reloadKey = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload"))
	logoutKey = key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out"))
	quitKey   = key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit"))
)

func newList(st ui.Styles) list.Model {
	l := list.New(nil, itemDelegate{st: st}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = st.Title
	l.Styles.HelpStyle = st.Help
	l.Styles.PaginationStyle = st.Help
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")
	l.KeyMap.Quit.SetEnabled(false)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{addKey, editKey, cycleKey, deleteKey, filterKey}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{addKey, editKey, cycleKey, deleteKey, filterKey, reloadKey, logoutKey, quitKey}
	}
	return l
}

// refreshList rebuilds the visible rows from the store through the filter.
func (m *appModel) refreshList() {
	all := m.deps.Store.Items()
	shown := view.Project(all, m.filter)
	items := make([]list.Item, len(shown))
	for i, it := range shown {
		items[i] = listItem{it: it}
	}
	m.list.SetItems(items)
	m.list.Title = m.listTitle(all)
}

func (m *appModel) listTitle(all []model.Item) string {
	s := view.Count(all)
	title := fmt.Sprintf("%s   %s %d  %s %d  %s %d  %s %d",
		m.st.Title.Render("Todos"),
		m.st.Pending.Render(ui.Current().SymPending), s.Pending,
		m.st.InProgress.Render(ui.Current().SymInProgress), s.InProgress,
		m.st.Success.Render(ui.Current().SymDone), s.Done,
		m.st.Accent.Render("Total"), s.Total(),
	)
	if m.filter != view.All {
		title += "  " + m.st.Muted.Render("["+m.filter.Label()+"]")
	}
	return title
}

func (m appModel) selected() (model.Item, bool) {
	li, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return li.it, true
}

func (m appModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.SettingFilter() {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	switch {
	case key.Matches(msg, quitKey):
		return m, tea.Quit
	case key.Matches(msg, addKey):
		m.form.OpenAdd()
		return ret(&m, m.modal.open(m.form))
	case key.Matches(msg, editKey):
		if it, ok := m.selected(); ok {
			m.form.OpenEdit(it)
			return ret(&m, m.modal.open(m.form))
		}
		return m, nil
	case key.Matches(msg, cycleKey):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		next := it.Status.Next()
		m.busy++
		s, ctx := m.deps.Store, m.ctx
		return m, func() tea.Msg {
			return mutationMsg{op: "status", err: s.ApplyEdit(ctx, it.ID, model.ChangeSet{Status: &next})}
		}
	case key.Matches(msg, deleteKey):
		if it, ok := m.selected(); ok {
			m.form.RequestDelete(it.ID)
		}
		return m, nil
	case key.Matches(msg, filterKey):
		m.filter = m.filter.Next()
		m.refreshList()
		return m, nil
	case key.Matches(msg, reloadKey):
		return ret(&m, m.loadCmd())
	case key.Matches(msg, logoutKey):
		if err := m.deps.Auth.Logout(); err != nil {
			return ret(&m, m.showError(err))
		}
		m.screen = session.LoginPath
		m.nav.set(m.screen)
		m.refreshList()
		return ret(&m, m.login.focus())
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) listView() string {
	content := m.list.View()
	if m.busy > 0 {
		content = m.spin.View() + " " + m.st.Muted.Render("syncing…") + "\n" + content
	} else if m.deps.Store.Err() != nil && len(m.list.Items()) == 0 {
		content = m.st.Error.Render("Could not load todos. Press r to retry.") + "\n" + content
	}
	return m.st.Modal.Render(content)
}
