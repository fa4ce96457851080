package ansiterm

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic color categories. The dashboard deliberately supports exactly
// three: normal (no styling), warning, and error — spec Non-goals rule out
// any richer color theming.
var (
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Colorless disables all SGR output, e.g. when NO_COLOR is set.
var Colorless bool

// AsWarning renders s in the warning color.
func AsWarning(s string) string {
	if Colorless {
		return s
	}
	return warningStyle.Render(s)
}

// AsError renders s in the (highlighted failure) error color.
func AsError(s string) string {
	if Colorless {
		return s
	}
	return errorStyle.Render(s)
}

// AsNoWrap wraps s in the escapes that disable then restore terminal
// auto-wrap, so a single long rendered line cannot wrap and throw off the
// frame's line count.
func AsNoWrap(s string) string {
	return noWrapOn() + s + noWrapOff()
}

// ContainsAnsi reports whether s already carries ANSI escape codes, so the
// log-event queue can pass pre-baked messages through unmodified instead of
// double-wrapping them.
func ContainsAnsi(s string) bool {
	return strings.Contains(s, "\x1b[")
}
