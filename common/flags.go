package common

import "runtime"

// Flags controlling log verbosity and output shaping. These mirror the
// teacher's package-level var + getter convention (see strategies.go):
// a plain exported var for the setting itself, and for booleans that are
// read far more often than written, a getter so callers never have to
// take a lock to read a bool.
var (
	debugFlag bool
	traceFlag bool
	silent    bool

	// LogHides lists substrings that, when present in a would-be log line,
	// suppress it entirely. Used to scrub noisy or sensitive fragments
	// (tokens, temp paths) before they ever reach stderr.
	LogHides []string

	// LogLinenumbers prefixes each emitted log line with a running line
	// counter instead of a timestamp, for diffable test fixtures.
	LogLinenumbers bool
)

// SetDebug toggles debug-level logging.
func SetDebug(on bool) { debugFlag = on }

// DebugFlag reports whether debug-level logging is enabled.
func DebugFlag() bool { return debugFlag }

// SetTrace toggles trace-level logging, which also implies debug-level
// timestamps in the logger loop.
func SetTrace(on bool) { traceFlag = on }

// TraceFlag reports whether trace-level logging is enabled.
func TraceFlag() bool { return traceFlag }

// SetSilent suppresses all Log() output, and with it Error(), which logs
// through Log.
func SetSilent(on bool) { silent = on }

// Silent reports whether ordinary Log() output is suppressed.
func Silent() bool { return silent }

// OptimalWorkerCount returns the worker pool size the dispatcher and any
// background fan-out should default to: one worker per logical CPU, with
// a floor of 2 so single-core environments still get concurrency.
func OptimalWorkerCount() int {
	count := runtime.NumCPU()
	if count < 2 {
		return 2
	}
	return count
}
