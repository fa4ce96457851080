// Package testreport accumulates per-test results and the formatted report
// fragments printed as a single block on TestRunFinished. Of every
// structure in this system, only this package's two builders need mutual
// exclusion on the write path — everything else is atomics or a
// concurrent map.
package testreport

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/buildwatch/buildconsole/activity"
	"github.com/buildwatch/buildconsole/common"
	"github.com/buildwatch/buildconsole/counters"
	"github.com/buildwatch/buildconsole/events"
	"github.com/buildwatch/buildconsole/logqueue"
)

// ContractViolationError reports a producer precondition failure — e.g. a
// duplicate TestRunStarted — that must not be masked.
type ContractViolationError struct {
	Context string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("contract violation: %s", e.Context)
}

// Options carries the two test-report settings spec.md §6 names that
// Aggregator, not the frame composer, is responsible for consulting.
type Options struct {
	// Verbosity is "quiet" (PASS results dropped from the final report,
	// only FAIL/SKIP kept) or "" / "normal" / anything else (every result
	// kept), mirroring the original's TestResultSummaryVerbosity knob.
	Verbosity string

	// LogPath, when non-empty, receives a copy of the full report text
	// written on OnTestRunFinished, the same text the dashboard prints to
	// stdout — the original's testLogPath.
	LogPath string
}

// Aggregator owns the test-run lifecycle: start/finish CAS guards, the two
// mutex-guarded builders, and the pass/fail/skip counters via Counters.
type Aggregator struct {
	started  atomic.Pointer[events.TestRunStarted]
	finished atomic.Pointer[events.TestRunFinished]

	reportMu    sync.Mutex
	reportLines []string

	statusMu       sync.Mutex
	statusMessages []events.TestStatusMessageFinishedPayload

	summarySlot *activity.Map
	statusSlot  *activity.Map
	counters    *counters.Counters
	logs        *logqueue.Queue
	opts        Options
}

// New returns an aggregator wired to the shared activity slots, counters,
// and log queue it feeds on test events.
func New(summarySlot, statusSlot *activity.Map, c *counters.Counters, logs *logqueue.Queue, opts Options) *Aggregator {
	return &Aggregator{summarySlot: summarySlot, statusSlot: statusSlot, counters: c, logs: logs, opts: opts}
}

// OnTestRunStarted CAS-stores the start event; any second start is a fatal
// contract violation, whether or not a finish arrived in between — an
// Aggregator accepts exactly one test run.
func (a *Aggregator) OnTestRunStarted(evt events.TestRunStarted) error {
	if !a.started.CompareAndSwap(nil, &evt) {
		return &ContractViolationError{Context: "duplicate TestRunStarted"}
	}
	a.reportMu.Lock()
	a.reportLines = append(a.reportLines, fmt.Sprintf("TEST RUN STARTED (%d selectors)", len(evt.TestSelectors)))
	a.reportMu.Unlock()
	return nil
}

// OnTestSummaryStarted updates the worker's test-summary activity slot.
func (a *Aggregator) OnTestSummaryStarted(workerID int, payload events.TestSummaryStartedPayload) {
	a.summarySlot.Start(workerID, activity.LeafEvent{Description: payload.TestName})
}

// OnTestSummaryFinished clears the worker's test-summary slot, folds the
// result into the pass/fail/skip counters, and on FAIL enqueues a
// synthesized error log line.
func (a *Aggregator) OnTestSummaryFinished(workerID int, payload events.TestSummaryFinishedPayload) {
	a.summarySlot.Finish(workerID)
	a.counters.RecordTestResult(payload.Status)

	if payload.Status == events.TestFail {
		a.logs.Enqueue(logqueue.ConsoleEvent{
			Level:   events.LevelError,
			Message: fmt.Sprintf("FAILURE %s %s: %s", payload.TestCaseName, payload.TestName, payload.Message),
		})
	}
}

// OnTestStatusMessageStarted updates the worker's status-message slot.
func (a *Aggregator) OnTestStatusMessageStarted(workerID int, payload events.TestStatusMessageStartedPayload) {
	a.statusSlot.Start(workerID, activity.LeafEvent{Description: payload.Message})
}

// OnTestStatusMessageFinished clears the slot and appends the message to
// the guarded status-message buffer, which is folded into the run-complete
// summary on TestRunFinished.
func (a *Aggregator) OnTestStatusMessageFinished(workerID int, payload events.TestStatusMessageFinishedPayload) {
	a.statusSlot.Finish(workerID)
	a.statusMu.Lock()
	a.statusMessages = append(a.statusMessages, payload)
	a.statusMu.Unlock()
}

// OnTestRunFinished CAS-stores the finish event, formats every result and
// every collected status message into the guarded report builder, and
// returns the full text so the caller can force a render and then print it
// to stdout as a single block under the stdout lock. A "quiet" Verbosity
// drops PASS results from the text; a non-empty LogPath also gets a copy of
// it written to disk — the only I/O this package performs itself.
func (a *Aggregator) OnTestRunFinished(evt events.TestRunFinished) (string, error) {
	if !a.finished.CompareAndSwap(nil, &evt) {
		return "", &ContractViolationError{Context: "duplicate TestRunFinished"}
	}

	quiet := a.opts.Verbosity == "quiet"

	a.reportMu.Lock()
	for _, result := range evt.Results {
		if quiet && result.Status == events.TestPass {
			continue
		}
		a.reportLines = append(a.reportLines, formatResult(result))
	}
	a.reportMu.Unlock()

	a.statusMu.Lock()
	messages := append([]events.TestStatusMessageFinishedPayload(nil), a.statusMessages...)
	a.statusMu.Unlock()

	a.reportMu.Lock()
	a.reportLines = append(a.reportLines, "TEST RUN FINISHED")
	for _, m := range messages {
		a.reportLines = append(a.reportLines, m.Message)
	}
	text := joinLines(a.reportLines)
	a.reportMu.Unlock()

	if a.opts.LogPath != "" {
		if err := os.WriteFile(a.opts.LogPath, []byte(text), 0o644); err != nil {
			common.Error(fmt.Sprintf("writing test log to %s", a.opts.LogPath), err)
		}
	}

	return text, nil
}

func formatResult(r events.TestCaseResult) string {
	return fmt.Sprintf("%s %s %s: %s (%dms)", r.Status, r.TestCaseName, r.TestName, r.Message, r.DurationMs)
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// HasStarted reports whether a TestRunStarted has been observed.
func (a *Aggregator) HasStarted() bool {
	return a.started.Load() != nil
}

// HasFinished reports whether a TestRunFinished has been observed.
func (a *Aggregator) HasFinished() bool {
	return a.finished.Load() != nil
}
