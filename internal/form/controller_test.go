package form

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/apitest"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/upload"
)

type fakeMutator struct {
	mu      sync.Mutex
	adds    []string
	edits   []model.ChangeSet
	removes []uint
	err     error
}

func (f *fakeMutator) Add(_ context.Context, title, _, imageURL string) (model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, title+"|"+imageURL)
	return model.Item{ID: 1, Title: title}, f.err
}

func (f *fakeMutator) ApplyEdit(_ context.Context, _ uint, cs model.ChangeSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, cs)
	return f.err
}

func (f *fakeMutator) Remove(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, id)
	return f.err
}

func (f *fakeMutator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.adds) + len(f.edits) + len(f.removes)
}

type gatedUploader struct {
	gate chan struct{}
}

func (g *gatedUploader) UploadImage(_ context.Context, filename, _ string, r io.Reader) (string, error) {
	if g.gate != nil {
		<-g.gate
	}
	_, _ = io.ReadAll(r)
	return "https://cdn.example/" + filename, nil
}

func pngFile(t *testing.T) upload.File {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png failed: %v", err)
	}
	b := buf.Bytes()
	return upload.File{
		Name:        "cat.png",
		ContentType: "image/png",
		Size:        int64(len(b)),
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil },
	}
}

func newController(t *testing.T, up upload.Uploader) *Controller {
	t.Helper()
	dir := t.TempDir()
	return New(func() *upload.Coordinator { return upload.New(up, upload.WithTempDir(dir)) }, nil)
}

var seed = model.Item{ID: 7, Title: "Buy milk", Description: "2L", Status: model.StatusPending}

func TestSubmit_BlankTitleStaysOpen(t *testing.T) {
	c := newController(t, &gatedUploader{})
	m := &fakeMutator{}
	c.OpenAdd()
	c.SetTitle("   ")

	err := c.Submit(context.Background(), m)
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}
	if !c.IsOpen() || c.Err() == nil {
		t.Error("form should stay open with the error")
	}
	if m.calls() != 0 {
		t.Errorf("mutator calls: got %d, want 0", m.calls())
	}
}

func TestSubmit_AddClosesOnSuccess(t *testing.T) {
	c := newController(t, &gatedUploader{})
	m := &fakeMutator{}
	c.OpenAdd()
	c.SetTitle("Walk dog")
	if err := c.Submit(context.Background(), m); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if c.IsOpen() {
		t.Error("form should close after success")
	}
	if len(m.adds) != 1 || m.adds[0] != "Walk dog|" {
		t.Errorf("adds: got %v", m.adds)
	}
}

type staticToken string

func (s staticToken) Token() (string, uint64) { return string(s), 1 }
func (s staticToken) Expire(uint64) bool      { return false }

func TestAdd_StatusStaysPending(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	token := srv.AddUser("a@b.c", "secret1")
	st := store.New(apiclient.New(srv.APIURL(), staticToken(token)))

	c := newController(t, &gatedUploader{})
	c.OpenAdd()
	if c.HasStatus() {
		t.Error("add form should not offer a status")
	}
	c.SetTitle("ship it")
	c.CycleStatus()
	c.CycleStatus()
	c.SetStatus(model.StatusDone)
	if got := c.Buffer().Status; got != model.StatusPending {
		t.Fatalf("buffer status: got %q, want %q", got, model.StatusPending)
	}
	if err := c.Submit(context.Background(), st); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	items := st.Items()
	if len(items) != 1 || items[0].Title != "ship it" || items[0].Status != model.StatusPending {
		t.Errorf("items: got %+v", items)
	}
	if srv.Calls(apitest.RouteStatus) != 0 {
		t.Error("add must not issue a status call")
	}
}

func TestSubmit_EditSendsOnlyChanges(t *testing.T) {
	c := newController(t, &gatedUploader{})
	m := &fakeMutator{}
	c.OpenEdit(seed)
	if !c.HasStatus() {
		t.Error("edit form should offer a status")
	}
	if got := c.CycleStatus(); got != model.StatusInProgress {
		t.Fatalf("CycleStatus: got %q", got)
	}
	cs := c.ChangeSet()
	if cs.HasContent() || !cs.HasStatus() {
		t.Fatalf("ChangeSet: got %+v", cs)
	}
	if err := c.Submit(context.Background(), m); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(m.edits) != 1 || m.edits[0].HasContent() || *m.edits[0].Status != model.StatusInProgress {
		t.Errorf("edits: got %+v", m.edits)
	}
}

func TestSubmit_FailureKeepsFormOpen(t *testing.T) {
	c := newController(t, &gatedUploader{})
	boom := errors.New("Failed to update todo content")
	m := &fakeMutator{err: boom}
	c.OpenEdit(seed)
	c.SetTitle("Buy oat milk")

	if err := c.Submit(context.Background(), m); !errors.Is(err, boom) {
		t.Fatalf("Submit: got %v", err)
	}
	if !c.IsOpen() || !errors.Is(c.Err(), boom) || c.Submitting() {
		t.Errorf("after failure: open=%v err=%v submitting=%v", c.IsOpen(), c.Err(), c.Submitting())
	}
	if c.Buffer().Title != "Buy oat milk" {
		t.Errorf("buffer lost: %+v", c.Buffer())
	}
}

func TestEscapeClosesWithoutStoreCalls(t *testing.T) {
	c := newController(t, &gatedUploader{})
	m := &fakeMutator{}
	c.OpenEdit(seed)
	c.SetTitle("changed")
	if !c.Key("esc") {
		t.Fatal("esc not handled")
	}
	if c.IsOpen() {
		t.Error("esc should close the form")
	}
	if c.Key("esc") {
		t.Error("esc on a closed form should not be consumed")
	}
	if m.calls() != 0 {
		t.Errorf("mutator calls: got %d", m.calls())
	}
}

func TestBackdropClick(t *testing.T) {
	tests := []struct {
		name       string
		down, up   bool
		wantClosed bool
	}{
		{"click through", true, true, true},
		{"drag out of modal", false, true, false},
		{"drag into modal", true, false, false},
		{"inside", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t, &gatedUploader{})
			c.OpenAdd()
			c.PointerDown(tt.down)
			closed := c.Click(tt.up)
			if closed != tt.wantClosed || c.IsOpen() == tt.wantClosed {
				t.Errorf("closed=%v open=%v, want closed=%v", closed, c.IsOpen(), tt.wantClosed)
			}
		})
	}

	c := newController(t, &gatedUploader{})
	c.OpenAdd()
	c.PointerDown(true)
	c.PointerUp()
	if c.Click(true) {
		t.Error("a cancelled press must not close the form")
	}
}

func TestSubmit_WaitsForUpload(t *testing.T) {
	up := &gatedUploader{gate: make(chan struct{})}
	c := newController(t, up)
	m := &fakeMutator{}
	c.OpenAdd()
	c.SetTitle("With picture")

	ch, err := c.SelectImage(context.Background(), pngFile(t))
	if err != nil {
		t.Fatalf("SelectImage failed: %v", err)
	}
	err = c.Submit(context.Background(), m)
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "image" {
		t.Fatalf("expected image validation error while uploading, got %v", err)
	}

	close(up.gate)
	if res := <-ch; res.Err != nil {
		t.Fatalf("upload failed: %v", res.Err)
	}
	if err := c.Submit(context.Background(), m); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(m.adds) != 1 || m.adds[0] != "With picture|https://cdn.example/cat.png" {
		t.Errorf("adds: got %v", m.adds)
	}
}

func TestCancelReleasesPreview(t *testing.T) {
	c := newController(t, &gatedUploader{})
	c.OpenEdit(seed)
	ch, err := c.SelectImage(context.Background(), pngFile(t))
	if err != nil {
		t.Fatalf("SelectImage failed: %v", err)
	}
	<-ch
	st := c.Upload()
	if st.Preview == nil {
		t.Fatal("expected a preview")
	}
	if _, err := os.Stat(st.Preview.Path); err != nil {
		t.Fatalf("preview missing: %v", err)
	}
	c.Cancel()
	if _, err := os.Stat(st.Preview.Path); !os.IsNotExist(err) {
		t.Errorf("preview not released: %v", err)
	}
}

func TestClearImageRemovesExisting(t *testing.T) {
	c := newController(t, &gatedUploader{})
	it := seed
	it.ImageURL = "https://cdn.example/old.png"
	c.OpenEdit(it)
	c.ClearImage()
	cs := c.ChangeSet()
	if cs.ImageURL == nil || *cs.ImageURL != "" {
		t.Errorf("ChangeSet: got %+v", cs)
	}
}

func TestDeleteConfirmation(t *testing.T) {
	c := newController(t, &gatedUploader{})
	m := &fakeMutator{}

	c.RequestDelete(7)
	c.CancelDelete()
	if err := c.ConfirmDelete(context.Background(), m); err != nil || len(m.removes) != 0 {
		t.Fatalf("cancelled delete still ran: %v %v", err, m.removes)
	}

	c.OpenEdit(seed)
	c.RequestDelete(7)
	if !c.Key("esc") {
		t.Fatal("esc not handled")
	}
	if _, ok := c.Confirming(); ok || !c.IsOpen() {
		t.Error("esc should dismiss the confirmation only")
	}

	c.RequestDelete(7)
	if err := c.ConfirmDelete(context.Background(), m); err != nil {
		t.Fatalf("ConfirmDelete failed: %v", err)
	}
	if len(m.removes) != 1 || m.removes[0] != 7 {
		t.Errorf("removes: got %v", m.removes)
	}
	if c.IsOpen() {
		t.Error("edit form of the deleted item should close")
	}
}
