package common

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	logsource = make(logwriters)

	// logInterceptor lets the dashboard route log output into its own
	// frame-rendered log queue instead of a raw stderr write, which would
	// corrupt the in-place frame without ever tripping its dirty-stream
	// latch. When set and returns true, the log message is considered
	// handled and is not printed.
	logInterceptor func(message string) bool
	logMu          sync.RWMutex
)

// SetLogInterceptor sets a function that intercepts log messages. The
// interceptor receives the formatted log message and returns true if
// handled (preventing normal output); false allows normal logging.
// console.New wires this to drain into the dashboard's own log queue.
func SetLogInterceptor(interceptor func(message string) bool) {
	logMu.Lock()
	logInterceptor = interceptor
	logMu.Unlock()
}

// ClearLogInterceptor removes the current log interceptor.
func ClearLogInterceptor() {
	logMu.Lock()
	logInterceptor = nil
	logMu.Unlock()
}

func interceptLog(message string) bool {
	logMu.RLock()
	interceptor := logInterceptor
	logMu.RUnlock()

	if interceptor != nil {
		return interceptor(message)
	}
	return false
}

type logwriter func() (*os.File, string)
type logwriters chan logwriter

func loggerLoop(writers logwriters) {
	var stamp string
	line := uint64(0)
	for {
		line += 1
		todo, ok := <-writers
		if !ok {
			continue
		}
		out, message := todo()

		if TraceFlag() {
			stamp = time.Now().Format("02.150405.000 ")
		} else if LogLinenumbers {
			stamp = fmt.Sprintf("%3d ", line)
		} else {
			stamp = ""
		}
		fmt.Fprintf(out, "%s%s\n", stamp, message)
		out.Sync()
	}
}

func init() {
	go loggerLoop(logsource)
}

// AcceptableOutput reports whether message survives LogHides scrubbing.
func AcceptableOutput(message string) bool {
	for _, fragment := range LogHides {
		if strings.Contains(message, fragment) {
			return false
		}
	}
	return true
}

func printout(out *os.File, message string) {
	if !AcceptableOutput(message) {
		return
	}
	if interceptLog(message) {
		return
	}
	logsource <- func() (*os.File, string) {
		return out, message
	}
}

// Error logs err under context — the level dispatch's recovered-panic
// handling and console's contract-violation handler both log at.
func Error(context string, err error) {
	if err != nil {
		Log("Error [%s]: %v", context, err)
	}
}

func Log(format string, details ...interface{}) {
	if !Silent() {
		prefix := ""
		if DebugFlag() || TraceFlag() {
			prefix = "[N] "
		}
		printout(os.Stderr, fmt.Sprintf(prefix+format, details...))
	}
}
