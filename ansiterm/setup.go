package ansiterm

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Interactive is true when stdin, stdout, and stderr are all attached to a
// terminal. The dashboard is only meaningful in that case; callers should
// fall back to plain log lines otherwise.
var Interactive bool

// Detect populates Interactive and Colorless from the process environment.
// Mirrors the teacher's pretty.Setup(): NO_COLOR and a missing/dumb TERM
// both disable color, independently of whether the stream is a TTY.
func Detect() {
	stdin := isatty.IsTerminal(os.Stdin.Fd())
	stdout := isatty.IsTerminal(os.Stdout.Fd())
	stderr := isatty.IsTerminal(os.Stderr.Fd())
	Interactive = stdin && stdout && stderr

	if os.Getenv("NO_COLOR") != "" {
		Colorless = true
	}
	if t := os.Getenv("TERM"); t == "" || t == "dumb" {
		Colorless = true
	}
}

// Size returns the current terminal width and height, falling back to
// 80x24 when detection fails (redirected output, unsupported platform...).
func Size() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}
