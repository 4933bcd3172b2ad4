package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/term"
)

var (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"

	fgGray   = "\033[90m"
	fgGreen  = "\033[32m"
	fgYellow = "\033[33m"
	fgBlue   = "\033[34m"
	fgCyan   = "\033[36m"
	fgRed    = "\033[31m"

	symCheck = "✔"
	symCross = "✖"
)

var (
	forceColor   bool
	disableColor bool

	// Stdout and Stderr are where OK, Fail and Panel write.
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// SetColorForcing overrides terminal detection.
func SetColorForcing(force, disable bool) {
	forceColor = force
	disableColor = disable
}

func isTTY() bool {
	f, ok := Stdout.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// C wraps s in color when the output is a terminal.
func C(color, s string) string {
	switch {
	case disableColor, color == "":
		return s
	case forceColor, isTTY():
		return color + s + reset
	}
	return s
}

// Dim renders s faint.
func Dim(s string) string { return C(dim, s) }

func notice(w io.Writer, color, sym, msg string) {
	fmt.Fprintln(w, C(color, sym+" "+msg))
}

// OK reports success on Stdout.
func OK(msg string) { notice(Stdout, current.Success, symCheck, msg) }

// Fail reports an error on Stderr.
func Fail(msg string) { notice(Stderr, current.Error, symCross, msg) }

// Warn prints a non-fatal notice to Stderr.
func Warn(msg string) { notice(Stderr, current.Pending, "!", msg) }
