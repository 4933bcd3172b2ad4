// Package form drives the add/edit modal: it owns the edit buffer, the
// image selection for it and the delete confirmation. It never touches the
// list directly; intents go to a Mutator.
package form

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/upload"
)

// Mode is what the modal is doing.
type Mode int

const (
	Closed Mode = iota
	Adding
	Editing
)

func (m Mode) String() string {
	switch m {
	case Adding:
		return "add"
	case Editing:
		return "edit"
	default:
		return "closed"
	}
}

// ErrNotOpen is returned by Submit when no form is open.
var ErrNotOpen = errors.New("form: not open")

// Mutator applies intents to the list.
type Mutator interface {
	Add(ctx context.Context, title, description, imageURL string) (model.Item, error)
	ApplyEdit(ctx context.Context, id uint, cs model.ChangeSet) error
	Remove(ctx context.Context, id uint) error
}

// Controller is safe for concurrent use; submissions typically complete on
// another goroutine than the one handling input.
type Controller struct {
	newUploads func() *upload.Coordinator
	log        *slog.Logger

	mu         sync.Mutex
	mode       Mode
	seed       model.Item
	buf        model.Item
	up         *upload.Coordinator
	err        error
	submitting bool

	pressedBackdrop bool

	deleteID   uint
	confirming bool
}

// New returns a closed controller. newUploads is called once per opened
// form to get a fresh coordinator.
func New(newUploads func() *upload.Coordinator, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{newUploads: newUploads, log: log}
}

// OpenAdd opens an empty form, discarding any open one.
func (c *Controller) OpenAdd() {
	c.open(Adding, model.Item{Status: model.StatusPending})
}

// OpenEdit opens a form seeded from it.
func (c *Controller) OpenEdit(it model.Item) {
	c.open(Editing, it)
}

func (c *Controller) open(m Mode, seed model.Item) {
	c.mu.Lock()
	old := c.closeLocked()
	c.mode = m
	c.seed = seed
	c.buf = seed
	if c.newUploads != nil {
		c.up = c.newUploads()
	}
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.log.Debug("form opened", "mode", m, "id", seed.ID)
}

// closeLocked resets the buffer and returns the coordinator to close
// outside the lock.
func (c *Controller) closeLocked() *upload.Coordinator {
	up := c.up
	c.mode = Closed
	c.seed = model.Item{}
	c.buf = model.Item{}
	c.up = nil
	c.err = nil
	c.submitting = false
	c.pressedBackdrop = false
	return up
}

// IsOpen reports whether the modal is shown.
func (c *Controller) IsOpen() bool { return c.Mode() != Closed }

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Buffer returns the working copy. ImageURL reflects a finished upload.
func (c *Controller) Buffer() model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editedLocked()
}

// Seed returns the item the form was opened with.
func (c *Controller) Seed() model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seed
}

// Err is the last submit or selection error.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Submitting reports whether a Submit is running.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

func (c *Controller) SetTitle(s string) {
	c.mu.Lock()
	c.buf.Title = s
	c.mu.Unlock()
}

func (c *Controller) SetDescription(s string) {
	c.mu.Lock()
	c.buf.Description = s
	c.mu.Unlock()
}

func (c *Controller) SetStatus(s model.Status) {
	c.mu.Lock()
	if c.mode == Editing {
		c.buf.Status = s
	}
	c.mu.Unlock()
}

// CycleStatus advances the buffer's status and returns it. New todos are
// always created pending, so outside Editing it leaves the status alone.
func (c *Controller) CycleStatus() model.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Editing {
		c.buf.Status = c.buf.Status.Next()
	}
	return c.buf.Status
}

// HasStatus reports whether the open form edits the status.
func (c *Controller) HasStatus() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == Editing
}

// SelectImage hands f to the form's coordinator. The returned channel
// yields the upload outcome.
func (c *Controller) SelectImage(ctx context.Context, f upload.File) (<-chan upload.Result, error) {
	c.mu.Lock()
	up := c.up
	c.mu.Unlock()
	if up == nil {
		return nil, ErrNotOpen
	}
	ch, err := up.Select(ctx, f)
	c.mu.Lock()
	if c.up == up {
		c.err = err
	}
	c.mu.Unlock()
	return ch, err
}

// Upload is the coordinator's state, zero when closed.
func (c *Controller) Upload() upload.State {
	c.mu.Lock()
	up := c.up
	c.mu.Unlock()
	if up == nil {
		return upload.State{}
	}
	return up.State()
}

// ClearImage drops both the pending selection and the item's current image.
func (c *Controller) ClearImage() {
	c.mu.Lock()
	c.buf.ImageURL = ""
	up := c.up
	c.mu.Unlock()
	if up != nil {
		up.Clear()
	}
}

func (c *Controller) editedLocked() model.Item {
	ed := c.buf
	if c.up != nil {
		if url := c.up.RemoteURL(); url != "" {
			ed.ImageURL = url
		}
	}
	return ed
}

// ChangeSet diffs the buffer against the seed.
func (c *Controller) ChangeSet() model.ChangeSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.Diff(c.seed, c.editedLocked())
}

// Submit validates the buffer and sends it to m. On success the form
// closes; on failure it stays open and the error is kept for display.
func (c *Controller) Submit(ctx context.Context, m Mutator) error {
	c.mu.Lock()
	if c.mode == Closed {
		c.mu.Unlock()
		return ErrNotOpen
	}
	mode, seed, ed, up := c.mode, c.seed, c.editedLocked(), c.up
	var err error
	switch {
	case strings.TrimSpace(ed.Title) == "":
		err = model.Invalid("title", "cannot be empty")
	case up != nil && up.Uploading():
		err = model.Invalid("image", "upload still in progress")
	}
	if err != nil {
		c.err = err
		c.mu.Unlock()
		return err
	}
	c.submitting = true
	c.err = nil
	c.mu.Unlock()

	if mode == Adding {
		_, err = m.Add(ctx, ed.Title, ed.Description, ed.ImageURL)
	} else {
		err = m.ApplyEdit(ctx, seed.ID, model.Diff(seed, ed))
	}

	c.mu.Lock()
	if c.up != up || c.mode != mode {
		// closed or reopened meanwhile
		c.mu.Unlock()
		return err
	}
	c.submitting = false
	if err != nil {
		c.err = err
		c.mu.Unlock()
		c.log.Debug("form submit failed", "mode", mode, "err", err)
		return err
	}
	old := c.closeLocked()
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Cancel closes the form without saving.
func (c *Controller) Cancel() {
	c.mu.Lock()
	old := c.closeLocked()
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Key handles a named key and reports whether it was consumed. Escape
// first dismisses a delete confirmation, then the form.
func (c *Controller) Key(name string) bool {
	if name != "esc" && name != "escape" {
		return false
	}
	c.mu.Lock()
	confirming, open := c.confirming, c.mode != Closed
	c.mu.Unlock()
	switch {
	case confirming:
		c.CancelDelete()
	case open:
		c.Cancel()
	default:
		return false
	}
	return true
}

// PointerDown records where a press started.
func (c *Controller) PointerDown(onBackdrop bool) {
	c.mu.Lock()
	c.pressedBackdrop = onBackdrop
	c.mu.Unlock()
}

// PointerUp forgets a press that did not turn into a click.
func (c *Controller) PointerUp() {
	c.mu.Lock()
	c.pressedBackdrop = false
	c.mu.Unlock()
}

// Click closes the form when both press and click landed on the backdrop,
// so a drag that starts inside the modal never closes it. It reports
// whether the form closed.
func (c *Controller) Click(onBackdrop bool) bool {
	c.mu.Lock()
	through := onBackdrop && c.pressedBackdrop && c.mode != Closed
	c.pressedBackdrop = false
	c.mu.Unlock()
	if through {
		c.Cancel()
	}
	return through
}

// RequestDelete asks for confirmation before removing id.
func (c *Controller) RequestDelete(id uint) {
	c.mu.Lock()
	c.deleteID = id
	c.confirming = true
	c.mu.Unlock()
}

// Confirming returns the id awaiting confirmation.
func (c *Controller) Confirming() (uint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteID, c.confirming
}

// CancelDelete drops the pending confirmation.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	c.deleteID = 0
	c.confirming = false
	c.mu.Unlock()
}

// ConfirmDelete removes the pending id through m. An open edit form for
// the same item is closed on success.
func (c *Controller) ConfirmDelete(ctx context.Context, m Mutator) error {
	c.mu.Lock()
	id, ok := c.deleteID, c.confirming
	c.deleteID = 0
	c.confirming = false
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := m.Remove(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	var old *upload.Coordinator
	if c.mode == Editing && c.seed.ID == id {
		old = c.closeLocked()
	}
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}
