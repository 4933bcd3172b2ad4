package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Makepad-fr/tada/internal/model"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
	err   error
	urls  []string
}

func (f *fakeUploader) UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	f.mu.Lock()
	f.calls++
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if _, rerr := io.ReadAll(r); rerr != nil {
		return "", rerr
	}
	if err != nil {
		return "", err
	}
	url := "https://cdn.example/" + filename
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return url, nil
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png failed: %v", err)
	}
	return buf.Bytes()
}

func memFile(name, ct string, b []byte) File {
	return File{
		Name:        name,
		ContentType: ct,
		Size:        int64(len(b)),
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil },
	}
}

func previewCount(t *testing.T, dir string) int {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, "tada-preview-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	return len(m)
}

func TestSelect_RejectsLocally(t *testing.T) {
	tests := []struct {
		name string
		file File
	}{
		{"gif", memFile("a.gif", "image/gif", []byte("GIF89a"))},
		{"webp", memFile("a.webp", "image/webp", []byte("RIFF"))},
		{"too large", File{Name: "big.png", ContentType: "image/png", Size: 6 << 20,
			Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil }}},
		{"empty", memFile("e.png", "image/png", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUploader{}
			dir := t.TempDir()
			c := New(up, WithTempDir(dir))
			ch, err := c.Select(context.Background(), tt.file)
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ch != nil {
				t.Error("expected no result channel")
			}
			if up.callCount() != 0 {
				t.Errorf("upload calls: got %d, want 0", up.callCount())
			}
			if previewCount(t, dir) != 0 {
				t.Error("preview created for rejected file")
			}
			st := c.State()
			if st.Selected != nil || st.Uploading || st.Err == nil {
				t.Errorf("state: got %+v", st)
			}
		})
	}
}

func TestSelect_UploadSucceeds(t *testing.T) {
	up := &fakeUploader{gate: make(chan struct{})}
	dir := t.TempDir()
	c := New(up, WithTempDir(dir))

	ch, err := c.Select(context.Background(), memFile("cat.png", "image/png", pngBytes(t, 4, 3)))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	st := c.State()
	if !st.Uploading || st.Preview == nil {
		t.Fatalf("state while uploading: %+v", st)
	}
	if st.Preview.Width != 4 || st.Preview.Height != 3 || st.Preview.Format != "png" {
		t.Errorf("preview: got %+v", st.Preview)
	}
	if _, err := os.Stat(st.Preview.Path); err != nil {
		t.Errorf("preview file missing: %v", err)
	}

	close(up.gate)
	res := <-ch
	if res.Err != nil || res.Superseded {
		t.Fatalf("result: got %+v", res)
	}
	if c.Uploading() {
		t.Error("still uploading")
	}
	if c.RemoteURL() != "https://cdn.example/cat.png" {
		t.Errorf("RemoteURL: got %q", c.RemoteURL())
	}

	c.Close()
	if previewCount(t, dir) != 0 {
		t.Error("Close did not release the preview")
	}
}

func TestSelect_UploadFailureDiscardsSelection(t *testing.T) {
	up := &fakeUploader{err: errors.New("Image upload failed")}
	dir := t.TempDir()
	c := New(up, WithTempDir(dir))

	ch, err := c.Select(context.Background(), memFile("cat.png", "image/png", pngBytes(t, 1, 1)))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	res := <-ch
	if res.Err == nil {
		t.Fatal("expected upload error")
	}
	st := c.State()
	if st.Selected != nil || st.Preview != nil || st.RemoteURL != "" || st.Uploading {
		t.Errorf("state after failure: %+v", st)
	}
	if st.Err == nil {
		t.Error("error not recorded")
	}
	if previewCount(t, dir) != 0 {
		t.Error("preview not released after failure")
	}
}

func TestSelect_NewSelectionSupersedes(t *testing.T) {
	up := &fakeUploader{gate: make(chan struct{})}
	dir := t.TempDir()
	c := New(up, WithTempDir(dir))
	ctx := context.Background()

	first, err := c.Select(ctx, memFile("a.png", "image/png", pngBytes(t, 1, 1)))
	if err != nil {
		t.Fatalf("first Select failed: %v", err)
	}
	firstPreview := c.State().Preview.Path

	second, err := c.Select(ctx, memFile("b.png", "image/png", pngBytes(t, 2, 2)))
	if err != nil {
		t.Fatalf("second Select failed: %v", err)
	}
	if _, err := os.Stat(firstPreview); !os.IsNotExist(err) {
		t.Errorf("superseded preview not released: %v", err)
	}
	if previewCount(t, dir) != 1 {
		t.Errorf("previews on disk: got %d, want 1", previewCount(t, dir))
	}

	close(up.gate)
	r1, r2 := <-first, <-second
	if !r1.Superseded {
		t.Errorf("first result: got %+v, want superseded", r1)
	}
	if r2.Superseded || r2.Err != nil {
		t.Errorf("second result: got %+v", r2)
	}
	if c.RemoteURL() != "https://cdn.example/b.png" {
		t.Errorf("RemoteURL: got %q", c.RemoteURL())
	}
	if up.callCount() != 2 {
		t.Errorf("in-flight upload was not left running: calls=%d", up.callCount())
	}
}

func TestSelect_InvalidAfterValidDiscardsPrior(t *testing.T) {
	up := &fakeUploader{}
	dir := t.TempDir()
	c := New(up, WithTempDir(dir))
	ch, err := c.Select(context.Background(), memFile("a.png", "image/png", pngBytes(t, 1, 1)))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	<-ch

	if _, err := c.Select(context.Background(), memFile("a.gif", "image/gif", []byte("GIF89a"))); err == nil {
		t.Fatal("expected validation error")
	}
	st := c.State()
	if st.Selected != nil || st.RemoteURL != "" {
		t.Errorf("prior selection kept: %+v", st)
	}
	if previewCount(t, dir) != 0 {
		t.Error("prior preview not released")
	}
}

func TestSelect_AfterCloseFails(t *testing.T) {
	c := New(&fakeUploader{}, WithTempDir(t.TempDir()))
	c.Close()
	if _, err := c.Select(context.Background(), memFile("a.png", "image/png", pngBytes(t, 1, 1))); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestFileFromPath_SniffsType(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "photo.bin")
	if err := os.WriteFile(p, pngBytes(t, 2, 2), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f, err := FileFromPath(p)
	if err != nil {
		t.Fatalf("FileFromPath failed: %v", err)
	}
	if f.ContentType != "image/png" || f.Name != "photo.bin" || f.Size == 0 {
		t.Errorf("file: got %+v", f)
	}
	if err := Validate(f); err != nil {
		t.Errorf("Validate: %v", err)
	}

	if _, err := FileFromPath(dir); err == nil {
		t.Error("expected error for directory")
	}
}
