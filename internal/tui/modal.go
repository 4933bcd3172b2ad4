package tui

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/form"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/upload"
)

type field int

const (
	fieldTitle field = iota
	fieldDesc
	fieldStatus
	fieldImage
	fieldCount
)

type uploadMsg struct{ res upload.Result }

type modal struct {
	title   textinput.Model
	desc    textarea.Model
	picker  filepicker.Model
	focus   field
	picking bool
	width   int
}

func newModal() modal {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "What needs doing?"
	ti.CharLimit = 200

	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.Placeholder = "Details (optional)"
	ta.CharLimit = 2000
	ta.SetHeight(4)

	return modal{title: ti, desc: ta, picker: newPicker(), width: 56}
}

func newPicker() filepicker.Model {
	fp := filepicker.New()
	fp.AllowedTypes = upload.AllowedExtensions
	if home, err := os.UserHomeDir(); err == nil {
		fp.CurrentDirectory = home
	}
	return fp
}

func (md *modal) resize(screenWidth int) {
	md.width = min(max(screenWidth-10, 30), 72)
	md.title.Width = md.width - 4
	md.desc.SetWidth(md.width - 4)
}

// open seeds the inputs from the form's buffer.
func (md *modal) open(f *form.Controller) tea.Cmd {
	b := f.Buffer()
	md.title.SetValue(b.Title)
	md.title.CursorEnd()
	md.desc.SetValue(b.Description)
	md.picking = false
	md.focus = fieldTitle
	return md.applyFocus()
}

func (md *modal) reset() {
	md.title.SetValue("")
	md.desc.SetValue("")
	md.title.Blur()
	md.desc.Blur()
	md.picking = false
	md.focus = fieldTitle
}

// step moves focus by n fields, passing over the status when the form
// has none.
func (md *modal) step(n field, withStatus bool) {
	md.focus = (md.focus + n) % fieldCount
	if md.focus == fieldStatus && !withStatus {
		md.focus = (md.focus + n) % fieldCount
	}
}

func (md *modal) applyFocus() tea.Cmd {
	md.title.Blur()
	md.desc.Blur()
	switch md.focus {
	case fieldTitle:
		return md.title.Focus()
	case fieldDesc:
		return md.desc.Focus()
	}
	return nil
}

// updateInputs forwards non-key messages such as cursor blinks.
func (md *modal) updateInputs(msg tea.Msg) tea.Cmd {
	var c1, c2 tea.Cmd
	md.title, c1 = md.title.Update(msg)
	md.desc, c2 = md.desc.Update(msg)
	return tea.Batch(c1, c2)
}

func waitUpload(ch <-chan upload.Result) tea.Cmd {
	return func() tea.Msg { return uploadMsg{res: <-ch} }
}

func (m appModel) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	md := &m.modal
	if md.picking {
		if msg.String() == "esc" {
			md.picking = false
			return m, nil
		}
		var cmd tea.Cmd
		md.picker, cmd = md.picker.Update(msg)
		if sel, pcmd := m.pickedFile(msg); sel {
			return m, tea.Batch(cmd, pcmd)
		}
		return m, cmd
	}
	if m.form.Submitting() {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.form.Key("esc")
		md.reset()
		return m, nil
	case "tab":
		md.step(1, m.form.HasStatus())
		return ret(&m, md.applyFocus())
	case "shift+tab":
		md.step(fieldCount-1, m.form.HasStatus())
		return ret(&m, md.applyFocus())
	case "ctrl+s":
		return m.submitForm()
	}

	switch md.focus {
	case fieldTitle:
		if msg.String() == "enter" {
			return m.submitForm()
		}
		var cmd tea.Cmd
		md.title, cmd = md.title.Update(msg)
		m.form.SetTitle(md.title.Value())
		return m, cmd
	case fieldDesc:
		var cmd tea.Cmd
		md.desc, cmd = md.desc.Update(msg)
		m.form.SetDescription(md.desc.Value())
		return m, cmd
	case fieldStatus:
		switch msg.String() {
		case " ", "enter", "right", "l":
			m.form.CycleStatus()
		}
		return m, nil
	case fieldImage:
		switch msg.String() {
		case "enter", "o", " ":
			md.picking = true
			md.picker = newPicker()
			return ret(&m, md.picker.Init())
		case "x", "backspace", "delete":
			m.form.ClearImage()
		}
		return m, nil
	}
	return m, nil
}

// pickedFile starts the upload when msg completed a selection.
func (m *appModel) pickedFile(msg tea.Msg) (bool, tea.Cmd) {
	if ok, path := m.modal.picker.DidSelectDisabledFile(msg); ok {
		m.modal.picking = false
		return true, m.showBanner("Only JPEG and PNG images can be attached: " + path)
	}
	ok, path := m.modal.picker.DidSelectFile(msg)
	if !ok {
		return false, nil
	}
	m.modal.picking = false
	f, err := upload.FileFromPath(path)
	if err != nil {
		return true, m.showError(err)
	}
	ch, err := m.form.SelectImage(m.ctx, f)
	if err != nil {
		return true, nil // shown inside the modal through form.Err
	}
	return true, waitUpload(ch)
}

func (m appModel) submitForm() (tea.Model, tea.Cmd) {
	m.form.SetTitle(m.modal.title.Value())
	m.form.SetDescription(m.modal.desc.Value())
	m.busy++
	f, s, ctx := m.form, m.deps.Store, m.ctx
	return m, func() tea.Msg { return submitMsg{err: f.Submit(ctx, s)} }
}

func (m appModel) modalView() string {
	md := m.modal
	st := m.st
	heading := "New todo"
	if m.form.Mode() == form.Editing {
		heading = fmt.Sprintf("Edit todo #%d", m.form.Seed().ID)
	}
	label := func(f field, s string) string {
		if md.focus == f && !md.picking {
			return st.Accent.Render("› " + s)
		}
		return st.Muted.Render("  " + s)
	}

	b := m.form.Buffer()
	up := m.form.Upload()
	var image string
	switch {
	case up.Uploading:
		image = m.spin.View() + " uploading " + up.Selected.Name + "…"
	case up.Preview != nil && up.RemoteURL != "":
		image = st.Success.Render("✔ ") + up.Selected.Name + " " + st.Muted.Render("("+up.Preview.String()+")")
	case b.ImageURL != "":
		image = ui.Truncate(b.ImageURL, max(md.width-16, 10))
	default:
		image = st.Muted.Render("none")
	}
	if up.Err != nil {
		image += "  " + st.Error.Render(up.Err.Error())
	}

	lines := []string{
		st.Title.Render(heading),
		"",
		label(fieldTitle, "Title"),
		"  " + md.title.View(),
		label(fieldDesc, "Description"),
		md.desc.View(),
	}
	if m.form.HasStatus() {
		lines = append(lines, label(fieldStatus, "Status")+"  "+m.statusBadge(b.Status))
	}
	lines = append(lines, label(fieldImage, "Image")+"  "+image)
	if md.picking {
		lines = append(lines, "", st.Muted.Render("Pick a .jpg or .png file (esc to go back)"), md.picker.View())
	}
	lines = append(lines, "")
	switch {
	case m.form.Submitting():
		lines = append(lines, m.spin.View()+" saving…")
	case m.form.Err() != nil:
		lines = append(lines, st.Error.Render(errText(m.form.Err())))
	}
	lines = append(lines, st.Help.Render("tab next field · ctrl+s save · esc cancel · click outside to close"))
	return st.Modal.Width(md.width).Render(strings.Join(lines, "\n"))
}

// rect is a screen region in cells.
type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// modalRect is where View centers the modal.
func (m appModel) modalRect() rect {
	v := m.modalView()
	w, h := lipgloss.Width(v), lipgloss.Height(v)
	areaH := max(m.height-2, 1)
	return rect{
		x: centerOffset(m.width, w),
		y: centerOffset(areaH, h),
		w: w,
		h: h,
	}
}

// centerOffset matches lipgloss.Place's centering.
func centerOffset(total, size int) int {
	gap := total - size
	if gap <= 0 {
		return 0
	}
	return int(math.Round(float64(gap) * 0.5))
}

func (m appModel) statusBadge(s model.Status) string {
	g := ui.Current().Glyph(s) + " " + string(s)
	switch s {
	case model.StatusDone:
		return m.st.Success.Render(g)
	case model.StatusInProgress:
		return m.st.InProgress.Render(g)
	}
	return m.st.Pending.Render(g)
}

// errText is the user-facing text of err. Partial edits keep the detail of
// which half the server accepted.
func errText(err error) string {
	var pe *store.PartialUpdateError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%s was saved but %s (press r to reload)", pe.Committed, apiclient.Message(pe.Err))
	}
	return apiclient.Message(err)
}
