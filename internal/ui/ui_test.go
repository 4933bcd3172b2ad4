package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Makepad-fr/tada/internal/model"
)

func TestProgressBar(t *testing.T) {
	got := ProgressBar(1, 4, 8)
	if !strings.HasPrefix(got, "██░░░░░░") || !strings.HasSuffix(got, " 25%") {
		t.Errorf("ProgressBar: got %q", got)
	}
	if got := ProgressBar(0, 0, 1); !strings.HasSuffix(got, "  0%") {
		t.Errorf("empty ProgressBar: got %q", got)
	}
}

func TestFPanelAlignsMultibyteRunes(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")
	var buf bytes.Buffer
	FPanel(&buf, []string{"ab", "é x"})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines: got %d", len(lines))
	}
	for _, ln := range lines {
		if visibleWidth(ln) != 7 {
			t.Errorf("line %q width %d, want 7", ln, visibleWidth(ln))
		}
	}
}

func TestThemeGlyphs(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")
	th := Current()
	if th.Glyph(model.StatusDone) != "[x]" || th.Glyph(model.StatusInProgress) != "[~]" || th.Glyph(model.StatusPending) != "[ ]" {
		t.Errorf("mono glyphs: %+v", th)
	}
	if got := StatusBadge(model.StatusDone); got != "[x] Done" {
		t.Errorf("StatusBadge: got %q", got)
	}
}

func TestOKAndFailWriters(t *testing.T) {
	var out, errb bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &out, &errb
	defer func() { Stdout, Stderr = oldOut, oldErr }()
	SetColorForcing(false, true)
	defer SetColorForcing(false, false)

	OK("saved")
	Fail("nope")
	if out.String() != "✔ saved\n" || errb.String() != "✖ nope\n" {
		t.Errorf("got %q / %q", out.String(), errb.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo world", 5); got != "héll…" {
		t.Errorf("Truncate: got %q", got)
	}
	if got := Truncate("ok", 5); got != "ok" {
		t.Errorf("Truncate: got %q", got)
	}
}
