package common

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale controls the locale used to format elapsed-time output.
// Defaults to American English, matching the teacher's default product
// locale; config.Config can override it at startup.
var Locale = language.AmericanEnglish

// NowMillis returns the current wall-clock time in epoch milliseconds, the
// unit every Event timestamp in this system is carried in.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// FormatElapsed renders a millisecond duration as "M:SS" (or "H:MM:SS" once
// it reaches an hour), with the numeric portion run through the active
// locale's digit grouping and separators.
func FormatElapsed(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	p := message.NewPrinter(Locale)
	if hours > 0 {
		return p.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return p.Sprintf("%d:%02d", minutes, seconds)
}

// FormatSeconds renders a millisecond duration as a one-decimal seconds
// value, e.g. "12.3s" — the frame composer's phase-line elapsed format,
// distinct from FormatElapsed's "M:SS" used for per-worker status lines.
func FormatSeconds(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	p := message.NewPrinter(Locale)
	return p.Sprintf("%.1fs", float64(ms)/1000)
}

// Stopwatch starts a named elapsed-time measurement, in the teacher's
// idiom: a value you hold onto and later call Report() on.
func Stopwatch(name string) *stopwatch {
	return &stopwatch{name: name, start: time.Now()}
}

type stopwatch struct {
	name  string
	start time.Time
}

// Report returns the elapsed time since the stopwatch was created.
func (s *stopwatch) Report() time.Duration {
	return time.Since(s.start)
}

func (s *stopwatch) String() string {
	return fmt.Sprintf("%s: %s", s.name, s.Report())
}
