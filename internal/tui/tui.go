// Package tui is the interactive bubbletea client: a login screen, the
// todo list and an add/edit modal.
package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/form"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/session"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/view"
)

// ListPath is the route of the todo list screen.
const ListPath = "/todos"

// Deps are the components the interface drives.
type Deps struct {
	Session *session.Session
	Auth    *session.Manager
	Store   *store.Store
	NewForm func() *form.Controller
	Filter  view.Filter
	Log     *slog.Logger
}

type (
	navigateMsg    struct{ path string }
	listChangedMsg struct{}
	loadedMsg      struct{ err error }
	authMsg        struct {
		user   *model.User
		err    error
		signup bool
	}
	mutationMsg struct {
		op  string
		err error
	}
	submitMsg  struct{ err error }
	deleteMsg  struct{ err error }
	bannerDone struct{ seq int }
)

// navigator routes session redirects into the program.
type navigator struct {
	mu       sync.Mutex
	location string
	send     func(tea.Msg)
}

func (n *navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *navigator) Navigate(path string) {
	n.mu.Lock()
	n.location = path
	send := n.send
	n.mu.Unlock()
	if send != nil {
		send(navigateMsg{path: path})
	}
}

func (n *navigator) set(path string) {
	n.mu.Lock()
	n.location = path
	n.mu.Unlock()
}

type appModel struct {
	deps Deps
	ctx  context.Context
	nav  *navigator
	st   ui.Styles

	width, height int
	screen        string

	login loginForm

	list   list.Model
	filter view.Filter
	spin   spinner.Model
	busy   int

	banner    string
	bannerSeq int
	info      string

	form  *form.Controller
	modal modal
}

func newModel(ctx context.Context, deps Deps, nav *navigator) appModel {
	if deps.Log == nil {
		deps.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	st := ui.TUIStyles()
	m := appModel{
		deps:   deps,
		ctx:    ctx,
		nav:    nav,
		st:     st,
		width:  80,
		height: 24,
		login:  newLoginForm(),
		filter: deps.Filter,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(st.Accent)),
		form:   deps.NewForm(),
		modal:  newModal(),
	}
	m.list = newList(st)
	m.screen = session.LoginPath
	if deps.Session.IsAuthenticated() {
		m.screen = ListPath
	}
	nav.set(m.screen)
	m.refreshList()
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	nav := &navigator{}
	m := newModel(ctx, deps, nav)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	nav.mu.Lock()
	nav.send = p.Send
	nav.mu.Unlock()
	deps.Session.SetNavigator(nav)
	deps.Store.OnChange(func() { p.Send(listChangedMsg{}) })

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick}
	if m.screen == ListPath {
		cmds = append(cmds, m.loadCmd())
	} else {
		cmds = append(cmds, m.login.focus())
	}
	return tea.Batch(cmds...)
}

func (m *appModel) loadCmd() tea.Cmd {
	m.busy++
	s, ctx := m.deps.Store, m.ctx
	return func() tea.Msg { return loadedMsg{err: s.Load(ctx)} }
}

func (m *appModel) showError(err error) tea.Cmd {
	return m.showBanner(errText(err))
}

func (m *appModel) showBanner(msg string) tea.Cmd {
	m.bannerSeq++
	m.banner = msg
	seq := m.bannerSeq
	return tea.Tick(6*time.Second, func(time.Time) tea.Msg { return bannerDone{seq: seq} })
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(max(msg.Width-4, 10), max(msg.Height-6, 3))
		m.modal.resize(msg.Width)
		if m.modal.picking {
			var cmd tea.Cmd
			m.modal.picker, cmd = m.modal.picker.Update(msg)
			return m, cmd
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case bannerDone:
		if msg.seq == m.bannerSeq {
			m.banner = ""
		}
		return m, nil

	case navigateMsg:
		if msg.path == session.LoginPath && m.screen != session.LoginPath {
			m.form.Cancel()
			m.form.CancelDelete()
			m.modal.reset()
			m.screen = session.LoginPath
			m.login.reset(m.login.email.Value())
			return ret(&m, tea.Batch(m.showBanner("Your session has expired. Please log in again."), m.login.focus()))
		}
		return m, nil

	case listChangedMsg:
		m.refreshList()
		return m, nil

	case loadedMsg:
		m.busy = max(m.busy-1, 0)
		m.refreshList()
		if msg.err != nil && !apiclient.IsSessionExpired(msg.err) {
			return ret(&m, m.showError(msg.err))
		}
		return m, nil

	case authMsg:
		return m.handleAuth(msg)

	case mutationMsg:
		m.busy = max(m.busy-1, 0)
		if msg.err != nil && !apiclient.IsSessionExpired(msg.err) {
			m.deps.Log.Debug("mutation failed", "op", msg.op, "err", msg.err)
			return ret(&m, m.showError(msg.err))
		}
		return m, nil

	case submitMsg:
		m.busy = max(m.busy-1, 0)
		if msg.err == nil {
			m.modal.reset()
			return m, nil
		}
		if apiclient.IsSessionExpired(msg.err) {
			return m, nil
		}
		return ret(&m, m.showError(msg.err))

	case deleteMsg:
		m.busy = max(m.busy-1, 0)
		if !m.form.IsOpen() {
			m.modal.reset()
		}
		if msg.err != nil && !apiclient.IsSessionExpired(msg.err) {
			return ret(&m, m.showError(msg.err))
		}
		return m, nil

	case uploadMsg:
		if msg.res.Err != nil && !msg.res.Superseded && !apiclient.IsSessionExpired(msg.res.Err) {
			return ret(&m, m.showError(msg.res.Err))
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if _, ok := m.form.Confirming(); ok {
			return m.handleConfirmKey(msg)
		}
		if m.form.IsOpen() {
			return m.handleModalKey(msg)
		}
		if m.screen == session.LoginPath {
			return m.handleLoginKey(msg)
		}
		return m.handleListKey(msg)
	}

	// everything else (blink, filepicker reads, list internals)
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.modal.picking {
		m.modal.picker, cmd = m.modal.picker.Update(msg)
		cmds = append(cmds, cmd)
		if sel, cmd := m.pickedFile(msg); sel {
			cmds = append(cmds, cmd)
		}
	}
	switch {
	case m.form.IsOpen():
		cmds = append(cmds, m.modal.updateInputs(msg))
	case m.screen == session.LoginPath:
		cmds = append(cmds, m.login.update(msg))
	default:
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m appModel) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.busy++
		f, s, ctx := m.form, m.deps.Store, m.ctx
		return m, func() tea.Msg { return deleteMsg{err: f.ConfirmDelete(ctx, s)} }
	case "n", "N", "esc":
		m.form.CancelDelete()
	}
	return m, nil
}

// ret copies m only after cmd has been evaluated, so state changes made
// while building cmd are kept.
func ret(m *appModel, cmd tea.Cmd) (tea.Model, tea.Cmd) { return *m, cmd }

func (m appModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.form.IsOpen() {
		return m, nil
	}
	onBackdrop := !m.modalRect().contains(msg.X, msg.Y)
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.form.PointerDown(onBackdrop)
		}
	case tea.MouseActionRelease:
		switch msg.Button {
		case tea.MouseButtonRight, tea.MouseButtonMiddle:
			m.form.PointerUp()
		default:
			// X10 terminals report every release as MouseButtonNone.
			if m.form.Click(onBackdrop) {
				m.modal.reset()
			}
		}
	}
	return m, nil
}

func (m appModel) View() string {
	var body string
	switch {
	case m.screen == session.LoginPath:
		body = m.loginView()
	case m.form.IsOpen():
		body = lipgloss.Place(m.width, max(m.height-2, 1), lipgloss.Center, lipgloss.Center, m.modalView())
	default:
		body = m.listView()
	}
	var footer []string
	if id, ok := m.form.Confirming(); ok {
		footer = append(footer, m.confirmLine(id))
	}
	if m.banner != "" {
		footer = append(footer, m.st.Banner.Render("✖ "+m.banner))
	}
	if m.info != "" && m.screen == session.LoginPath {
		footer = append(footer, m.st.Success.Render(m.info))
	}
	if len(footer) == 0 {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, append([]string{body}, footer...)...)
}

func (m appModel) confirmLine(id uint) string {
	title := "this todo"
	if it, ok := m.deps.Store.Get(id); ok {
		title = "“" + ui.Truncate(it.Title, 40) + "”"
	}
	return m.st.Error.Render("Delete "+title+"?") + m.st.Help.Render("  y confirm · n cancel")
}
