package testreport_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/buildwatch/buildconsole/activity"
	"github.com/buildwatch/buildconsole/counters"
	"github.com/buildwatch/buildconsole/events"
	"github.com/buildwatch/buildconsole/logqueue"
	"github.com/buildwatch/buildconsole/testreport"
)

func newAggregator() *testreport.Aggregator {
	return testreport.New(activity.New(), activity.New(), counters.New(), logqueue.New(), testreport.Options{})
}

func TestDuplicateTestRunStartedIsContractViolation(t *testing.T) {
	a := newAggregator()
	if err := a.OnTestRunStarted(events.TestRunStarted{}); err != nil {
		t.Fatalf("first OnTestRunStarted: %v", err)
	}
	if err := a.OnTestRunStarted(events.TestRunStarted{}); err == nil {
		t.Error("a second TestRunStarted must return a contract violation error")
	}
}

func TestFailureEnqueuesSynthesizedErrorLine(t *testing.T) {
	c := counters.New()
	logs := logqueue.New()
	a := testreport.New(activity.New(), activity.New(), c, logs, testreport.Options{})

	a.OnTestSummaryFinished(1, events.TestSummaryFinishedPayload{
		TestCaseName: "X",
		TestName:     "y",
		Status:       events.TestFail,
		Message:      "boom",
	})

	if c.TestFail.Load() != 1 {
		t.Errorf("TestFail = %d, want 1", c.TestFail.Load())
	}
	lines := logs.Drain()
	if len(lines) != 1 {
		t.Fatalf("expected exactly one synthesized log line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "FAILURE") || !strings.Contains(lines[0], "boom") {
		t.Errorf("synthesized line = %q, want it to mention FAILURE and boom", lines[0])
	}
}

func TestTestRunFinishedFormatsReportAndStatusMessages(t *testing.T) {
	a := newAggregator()
	a.OnTestRunStarted(events.TestRunStarted{})
	a.OnTestStatusMessageFinished(1, events.TestStatusMessageFinishedPayload{Message: "setting up fixtures"})

	text, err := a.OnTestRunFinished(events.TestRunFinished{
		Results: []events.TestCaseResult{
			{TestCaseName: "X", TestName: "y", Status: events.TestPass, DurationMs: 12},
		},
	})
	if err != nil {
		t.Fatalf("OnTestRunFinished: %v", err)
	}
	if !strings.Contains(text, "setting up fixtures") {
		t.Error("report text must include collected status messages")
	}
	if !strings.Contains(text, "PASS") {
		t.Error("report text must include the formatted test result")
	}
}

func TestDuplicateTestRunFinishedIsContractViolation(t *testing.T) {
	a := newAggregator()
	if _, err := a.OnTestRunFinished(events.TestRunFinished{}); err != nil {
		t.Fatalf("first OnTestRunFinished: %v", err)
	}
	if _, err := a.OnTestRunFinished(events.TestRunFinished{}); err == nil {
		t.Error("a second TestRunFinished must return a contract violation error")
	}
}

func TestQuietVerbosityDropsPassResultsFromReport(t *testing.T) {
	a := testreport.New(activity.New(), activity.New(), counters.New(), logqueue.New(), testreport.Options{Verbosity: "quiet"})

	text, err := a.OnTestRunFinished(events.TestRunFinished{
		Results: []events.TestCaseResult{
			{TestCaseName: "X", TestName: "passing", Status: events.TestPass},
			{TestCaseName: "X", TestName: "failing", Status: events.TestFail, Message: "boom"},
		},
	})
	if err != nil {
		t.Fatalf("OnTestRunFinished: %v", err)
	}
	if strings.Contains(text, "passing") {
		t.Errorf("report text = %q, quiet verbosity must drop PASS results", text)
	}
	if !strings.Contains(text, "failing") {
		t.Errorf("report text = %q, must still contain the FAIL result", text)
	}
}

func TestLogPathReceivesACopyOfTheReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	a := testreport.New(activity.New(), activity.New(), counters.New(), logqueue.New(), testreport.Options{LogPath: path})

	text, err := a.OnTestRunFinished(events.TestRunFinished{
		Results: []events.TestCaseResult{{TestCaseName: "X", TestName: "y", Status: events.TestPass}},
	})
	if err != nil {
		t.Fatalf("OnTestRunFinished: %v", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log path: %v", err)
	}
	if string(written) != text {
		t.Errorf("file contents = %q, want exactly the returned report text %q", written, text)
	}
}
