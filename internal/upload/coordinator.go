// Package upload validates and uploads the image attached to a todo. One
// Coordinator serves one form: it tracks the current selection, a local
// preview copy and the in-flight upload.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
)

// MaxImageSize is the largest accepted image, 5 MiB.
const MaxImageSize = 5 << 20

// AllowedTypes is the content-type allow-set. The file picker offers
// exactly AllowedExtensions, so both agree.
var AllowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// AllowedExtensions are the file name suffixes offered for selection.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png"}

// ErrClosed is returned by Select after Close.
var ErrClosed = errors.New("upload: coordinator closed")

// Uploader stores an image remotely and returns its URL.
type Uploader interface {
	UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

// File is a candidate image.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// State is a snapshot of the coordinator.
type State struct {
	Selected  *File
	Preview   *Preview
	RemoteURL string
	Uploading bool
	Err       error
}

// Result reports the outcome of one upload. Superseded is set when a newer
// selection replaced this one before it finished; its URL is then unused.
type Result struct {
	URL        string
	Err        error
	Superseded bool
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	up     Uploader
	tmpDir string
	log    *slog.Logger

	mu        sync.Mutex
	gen       uint64
	selected  *File
	preview   *Preview
	remoteURL string
	uploading bool
	err       error
	closed    bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTempDir sets where preview copies are written. Empty means the OS
// temp dir.
func WithTempDir(dir string) Option { return func(c *Coordinator) { c.tmpDir = dir } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns an idle coordinator.
func New(up Uploader, opts ...Option) *Coordinator {
	c := &Coordinator{up: up, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Validate checks type and size against the allow-set.
func Validate(f File) error {
	ct := normalizeType(f.ContentType)
	if !AllowedTypes[ct] {
		if ct == "" {
			ct = "unknown"
		}
		return model.Invalid("image", fmt.Sprintf("unsupported file type %s: only JPEG and PNG images are allowed", ct))
	}
	if f.Size <= 0 {
		return model.Invalid("image", "file is empty")
	}
	if f.Size > MaxImageSize {
		return model.Invalid("image", fmt.Sprintf("file is %.1f MB; the limit is %d MB", float64(f.Size)/(1<<20), MaxImageSize>>20))
	}
	return nil
}

func normalizeType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// Select validates f, replaces the current preview with one for f and
// starts uploading it. An invalid file discards the previous selection and
// returns a *model.ValidationError without touching the network. The
// returned channel yields exactly one Result.
func (c *Coordinator) Select(ctx context.Context, f File) (<-chan Result, error) {
	if err := Validate(f); err != nil {
		c.reject(err)
		return nil, err
	}
	p, err := newPreview(c.tmpDir, f)
	if err != nil {
		c.reject(err)
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.Release()
		return nil, ErrClosed
	}
	c.gen++
	gen := c.gen
	old := c.preview
	sel := f
	c.selected = &sel
	c.preview = p
	c.remoteURL = ""
	c.uploading = true
	c.err = nil
	c.mu.Unlock()
	old.Release()

	c.log.Debug("upload started", "file", f.Name, "size", f.Size, "type", f.ContentType)
	ch := make(chan Result, 1)
	go func() {
		url, err := c.send(ctx, f)
		ch <- c.finish(gen, url, err)
		close(ch)
	}()
	return ch, nil
}

func (c *Coordinator) send(ctx context.Context, f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	return c.up.UploadImage(ctx, f.Name, normalizeType(f.ContentType), rc)
}

func (c *Coordinator) finish(gen uint64, url string, err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("upload superseded", "url", url, "err", err)
		return Result{URL: url, Err: err, Superseded: true}
	}
	c.uploading = false
	if err != nil {
		c.log.Warn("upload failed", "err", err)
		c.discardLocked()
		c.err = err
		return Result{Err: err}
	}
	c.remoteURL = url
	c.log.Info("upload finished", "url", url)
	return Result{URL: url}
}

func (c *Coordinator) reject(err error) {
	c.mu.Lock()
	c.gen++
	c.uploading = false
	c.discardLocked()
	c.err = err
	c.mu.Unlock()
}

// discardLocked drops selection, preview and URL. c.mu must be held.
func (c *Coordinator) discardLocked() {
	c.preview.Release()
	c.preview = nil
	c.selected = nil
	c.remoteURL = ""
}

// State returns a snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{RemoteURL: c.remoteURL, Uploading: c.uploading, Err: c.err}
	if c.selected != nil {
		f := *c.selected
		st.Selected = &f
	}
	if c.preview != nil {
		p := *c.preview
		p.once = nil // snapshots cannot release the live preview
		st.Preview = &p
	}
	return st
}

// RemoteURL is the uploaded image URL, empty until an upload succeeded.
func (c *Coordinator) RemoteURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteURL
}

// Uploading reports whether the current selection is still uploading.
func (c *Coordinator) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

// Clear returns to the pre-selection state. An in-flight upload is not
// cancelled; its result is ignored.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.gen++
	c.uploading = false
	c.err = nil
	c.discardLocked()
	c.mu.Unlock()
}

// Close ends the coordinator's scope and releases the preview.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.uploading = false
	c.discardLocked()
	c.mu.Unlock()
}
