package frame

import (
	"strings"
	"testing"
	"time"

	"github.com/buildwatch/buildconsole/activity"
	"github.com/buildwatch/buildconsole/counters"
	"github.com/buildwatch/buildconsole/dispatch"
	"github.com/buildwatch/buildconsole/events"
	"github.com/buildwatch/buildconsole/logqueue"
	"github.com/buildwatch/buildconsole/netstats"
	"github.com/buildwatch/buildconsole/pairtrack"
	"github.com/buildwatch/buildconsole/testreport"
)

func newTestComposer(t *testing.T) (*dispatch.Dispatcher, *Composer) {
	t.Helper()
	buildSteps := activity.New()
	summarySlot := activity.New()
	statusSlot := activity.New()
	c := counters.New()
	net := netstats.New(time.Second)
	logs := logqueue.New()
	tests := testreport.New(summarySlot, statusSlot, c, logs, testreport.Options{})

	d := dispatch.New(dispatch.Config{
		ParsePairs:       pairtrack.New(),
		ActionGraphPairs: pairtrack.New(),
		ProjectGenPairs:  pairtrack.New(),
		InstallPairs:     pairtrack.New(),
		CommandPairs:     pairtrack.New(),
		BuildSteps:       buildSteps,
		TestSummarySlot:  summarySlot,
		TestStatusSlot:   statusSlot,
		Counters:         c,
		Net:              net,
		Logs:             logs,
		Tests:            tests,
		FatalHandler:     func(err error) { t.Fatalf("fatal: %v", err) },
	})
	t.Cleanup(net.StopScheduler)

	composer := NewComposer(Config{Dispatcher: d, Limits: ThreadLineLimits{Default: 10}})
	return d, composer
}

// Scenario 1: empty build. No events at all, first tick emits zero lines.
func TestScenarioEmptyBuild(t *testing.T) {
	_, composer := newTestComposer(t)
	lines := composer.Compose(0)
	if len(lines) != 0 {
		t.Fatalf("Compose with no events = %v, want empty", lines)
	}
}

// Scenario 2: parse-then-build. Per spec.md §8, at t=2500 the PROCESSING
// line reads "1.0s" and the BUILDING line's elapsed reads "1.0s". The
// scenario's literal jobs-summary text ("0 UPDATED") contradicts spec.md
// §4.E's own fold formula (a plain HIT still increments rules_updated,
// only LOCAL_KEY_UNCHANGED_HIT does not) — so this test leaves the UPDATED
// count unchecked; the formula itself is tested against
// counters.FoldCacheResult in the counters package.
func TestScenarioParseThenBuild(t *testing.T) {
	d, composer := newTestComposer(t)

	d.Dispatch(events.Event{TimestampMs: 0, Kind: events.KindParseStarted, Key: "p"})
	d.Dispatch(events.Event{TimestampMs: 1000, Kind: events.KindParseFinished, Key: "p"})
	d.Dispatch(events.Event{TimestampMs: 1000, Kind: events.KindBuildStarted, Payload: events.BuildStartedPayload{RuleCount: 10}})
	for i := 0; i < 10; i++ {
		d.Dispatch(events.Event{
			TimestampMs: 2000,
			Kind:        events.KindRuleFinished,
			Payload:     events.RuleFinishedPayload{Status: events.RuleSuccess, CacheType: events.CacheHit},
		})
	}
	d.Dispatch(events.Event{TimestampMs: 2000, Kind: events.KindBuildFinished})

	lines := composer.Compose(2500)

	var processingLine, buildingLine string
	for _, l := range lines {
		if strings.Contains(l, "PROCESSING BUCK FILES") {
			processingLine = l
		}
		if strings.Contains(l, "BUILDING...") {
			buildingLine = l
		}
	}
	if !strings.Contains(processingLine, "1.0s") {
		t.Errorf("processing line = %q, want elapsed 1.0s", processingLine)
	}
	if !strings.Contains(buildingLine, "1.0s") {
		t.Errorf("building line = %q, want elapsed 1.0s", buildingLine)
	}
	if !strings.Contains(buildingLine, "10/10 JOBS") {
		t.Errorf("building line = %q, want 10/10 JOBS", buildingLine)
	}
	if !strings.Contains(buildingLine, "0 [0.0%] CACHE MISS") {
		t.Errorf("building line = %q, want 0 cache misses", buildingLine)
	}
}

// Scenario 3: cache percentages.
func TestScenarioCachePercentages(t *testing.T) {
	d, composer := newTestComposer(t)

	d.Dispatch(events.Event{TimestampMs: 0, Kind: events.KindParseStarted, Key: "p"})
	d.Dispatch(events.Event{TimestampMs: 100, Kind: events.KindParseFinished, Key: "p"})
	d.Dispatch(events.Event{TimestampMs: 100, Kind: events.KindBuildStarted, Payload: events.BuildStartedPayload{RuleCount: 4}})

	finishes := []events.CacheResultType{
		events.CacheMiss, events.CacheError, events.CacheHit, events.CacheLocalKeyUnchangedHit,
	}
	for _, ct := range finishes {
		d.Dispatch(events.Event{
			TimestampMs: 200,
			Kind:        events.KindRuleFinished,
			Payload:     events.RuleFinishedPayload{Status: events.RuleSuccess, CacheType: ct},
		})
	}

	lines := composer.Compose(300)
	var buildingLine string
	for _, l := range lines {
		if strings.Contains(l, "BUILDING...") {
			buildingLine = l
		}
	}
	want := "4/4 JOBS, 3 UPDATED, 1 [25.0%] CACHE MISS, 1 [33.3%] CACHE ERRORS"
	if !strings.Contains(buildingLine, want) {
		t.Errorf("building line = %q, want to contain %q", buildingLine, want)
	}
}

// Scenario 4: thread compression. 6 active build workers, a limit of 3
// produces 2 full lines plus one " |=> 4 MORE THREADS:" line.
func TestScenarioThreadCompression(t *testing.T) {
	d, composer := newTestComposer(t)
	composer.cfg.Limits.Default = 3

	d.Dispatch(events.Event{TimestampMs: 0, Kind: events.KindBuildStarted, Payload: events.BuildStartedPayload{RuleCount: 6}})
	for i := 0; i < 6; i++ {
		d.Dispatch(events.Event{
			TimestampMs: 0, WorkerID: i, Kind: events.KindStepStarted,
			Payload: events.StepStartedPayload{ShortDescription: "BUILDING //x"},
		})
	}

	lines := composer.Compose(1000)
	var compressionLine string
	fullLines := 0
	for _, l := range lines {
		if strings.Contains(l, "MORE THREADS:") {
			compressionLine = l
		} else if strings.HasPrefix(l, "  ") {
			fullLines++
		}
	}
	if fullLines != 2 {
		t.Errorf("full status lines = %d, want 2", fullLines)
	}
	if !strings.Contains(compressionLine, "4 MORE THREADS:") {
		t.Errorf("compression line = %q, want '4 MORE THREADS:'", compressionLine)
	}
}

// Scenario 6: test failure log raises max_lines restriction via the
// AnyErrorsPrinted latch, and testreport synthesizes the error log line.
func TestScenarioTestFailureTightensThreadLimit(t *testing.T) {
	d, composer := newTestComposer(t)
	composer.cfg.Limits = ThreadLineLimits{Default: 10, Warning: 10, Error: 2}

	d.Dispatch(events.Event{TimestampMs: 0, Kind: events.KindTestRunStarted, Payload: events.TestRunStarted{}})
	d.Dispatch(events.Event{
		TimestampMs: 0,
		Kind:        events.KindTestSummaryFinished,
		Payload: events.TestSummaryFinishedPayload{
			TestCaseName: "X", TestName: "y", Status: events.TestFail, Message: "boom",
		},
	})

	logLines := composer.Logs().Drain()
	found := false
	for _, l := range logLines {
		if strings.Contains(l, "FAILURE X y: boom") {
			found = true
		}
	}
	if !found {
		t.Errorf("log lines = %v, want a FAILURE X y: boom line", logLines)
	}
	if !d.Logs().AnyErrorsPrinted() {
		t.Fatalf("AnyErrorsPrinted() = false, want true after draining a FAIL-derived log line")
	}
	if got := composer.maxThreadLines(); got != 2 {
		t.Errorf("maxThreadLines() = %d, want 2 once any_errors_printed is set", got)
	}
}
