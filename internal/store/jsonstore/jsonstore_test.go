package jsonstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRemove(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "data.json")
	in := map[string]string{"token": "abc"}
	if err := Write(p, in, 0o600); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("perm: got %o, want 600", fi.Mode().Perm())
	}

	var out map[string]string
	if err := Read(p, &out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if out["token"] != "abc" {
		t.Errorf("token: got %q", out["token"])
	}

	if err := Remove(p); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := Remove(p); err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if err := Read(p, &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read after remove: got %v, want ErrNotFound", err)
	}
}
