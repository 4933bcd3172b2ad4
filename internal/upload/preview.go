package upload

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Preview is a local temporary copy of the selected file. It must be
// released once superseded or when its coordinator closes.
type Preview struct {
	Path   string
	Width  int
	Height int
	Format string

	once *sync.Once
}

func newPreview(dir string, f File) (*Preview, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	tmp, err := os.CreateTemp(dir, "tada-preview-*"+strings.ToLower(filepath.Ext(f.Name)))
	if err != nil {
		return nil, fmt.Errorf("create preview: %w", err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("copy preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("close preview: %w", err)
	}

	p := &Preview{Path: tmp.Name(), once: &sync.Once{}}
	if fh, err := os.Open(p.Path); err == nil {
		if cfg, format, err := image.DecodeConfig(fh); err == nil {
			p.Width, p.Height, p.Format = cfg.Width, cfg.Height, format
		}
		_ = fh.Close()
	}
	return p, nil
}

// Release deletes the preview copy. Safe on nil and when called twice.
func (p *Preview) Release() {
	if p == nil || p.once == nil {
		return
	}
	p.once.Do(func() { _ = os.Remove(p.Path) })
}

// String describes the preview for display.
func (p *Preview) String() string {
	if p == nil {
		return ""
	}
	if p.Width > 0 {
		return fmt.Sprintf("%s %dx%d", p.Format, p.Width, p.Height)
	}
	return filepath.Base(p.Path)
}

// FileFromPath describes the file at path, sniffing its content type from
// the first bytes and falling back to the extension.
func FileFromPath(path string) (File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat: %w", err)
	}
	if fi.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open: %w", err)
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(fh, head)
	_ = fh.Close()

	ct := http.DetectContentType(head[:n])
	if ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
			ct = byExt
		}
	}
	return File{
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        fi.Size(),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}
