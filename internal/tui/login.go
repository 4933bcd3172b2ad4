package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/session"
)

type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focused  int
	signup   bool
	err      string
	pending  bool
}

func newLoginForm() loginForm {
	e := textinput.New()
	e.Prompt = "Email    "
	e.Placeholder = "you@example.com"
	e.CharLimit = 254

	p := textinput.New()
	p.Prompt = "Password "
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'
	p.CharLimit = 128
	return loginForm{email: e, password: p}
}

// reset clears the password and errors, keeping email.
func (f *loginForm) reset(email string) {
	f.email.SetValue(email)
	f.password.SetValue("")
	f.err = ""
	f.pending = false
	f.focused = 0
	if email != "" {
		f.focused = 1
	}
}

func (f *loginForm) focus() tea.Cmd {
	f.email.Blur()
	f.password.Blur()
	if f.focused == 0 {
		return f.email.Focus()
	}
	return f.password.Focus()
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.focused == 0 {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

func (m appModel) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	if f.pending {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		f.focused = 1 - f.focused
		return ret(&m, f.focus())
	case "ctrl+t":
		f.signup = !f.signup
		f.err = ""
		return m, nil
	case "enter":
		if f.focused == 0 {
			f.focused = 1
			return ret(&m, f.focus())
		}
		return m.submitLogin()
	}
	return ret(&m, f.update(msg))
}

func (m appModel) submitLogin() (tea.Model, tea.Cmd) {
	f := &m.login
	email, password := strings.TrimSpace(f.email.Value()), f.password.Value()
	f.err = ""
	f.pending = true
	m.info = ""
	m.busy++
	auth, ctx, signup := m.deps.Auth, m.ctx, f.signup
	return m, func() tea.Msg {
		if signup {
			_, err := auth.Signup(ctx, email, password)
			return authMsg{err: err, signup: true}
		}
		u, err := auth.Login(ctx, email, password)
		return authMsg{user: u, err: err}
	}
}

func (m appModel) handleAuth(msg authMsg) (tea.Model, tea.Cmd) {
	m.busy = max(m.busy-1, 0)
	f := &m.login
	f.pending = false
	if msg.err != nil {
		f.err = apiclient.Message(msg.err)
		return m, nil
	}
	if msg.signup {
		f.signup = false
		f.password.SetValue("")
		f.focused = 1
		m.info = "Account created. Please log in."
		return ret(&m, f.focus())
	}
	m.banner = ""
	f.reset("")
	m.screen = ListPath
	m.nav.set(ListPath)
	return ret(&m, m.loadCmd())
}

func (m appModel) loginView() string {
	f := m.login
	title, other := "Log in", "ctrl+t sign up instead"
	if f.signup {
		title, other = "Sign up", "ctrl+t log in instead"
	}
	lines := []string{
		m.st.Title.Render("tada · " + title),
		"",
		f.email.View(),
		f.password.View(),
		"",
	}
	switch {
	case f.pending:
		lines = append(lines, m.spin.View()+" "+m.st.Muted.Render("contacting server…"))
	case f.err != "":
		lines = append(lines, m.st.Error.Render(f.err))
	default:
		lines = append(lines, "")
	}
	lines = append(lines, m.st.Help.Render("enter submit · tab switch field · "+other+" · esc quit"))
	box := m.st.Modal.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, max(m.height-2, 1), lipgloss.Center, lipgloss.Center, box)
}

var _ session.Navigator = (*navigator)(nil)
