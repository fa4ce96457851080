package dispatch_test

import (
	"testing"

	"github.com/buildwatch/buildconsole/activity"
	"github.com/buildwatch/buildconsole/ansiterm"
	"github.com/buildwatch/buildconsole/counters"
	"github.com/buildwatch/buildconsole/dispatch"
	"github.com/buildwatch/buildconsole/events"
	"github.com/buildwatch/buildconsole/logqueue"
	"github.com/buildwatch/buildconsole/netstats"
	"github.com/buildwatch/buildconsole/pairtrack"
	"github.com/buildwatch/buildconsole/testreport"
)

func newTestDispatcher(t *testing.T) (*dispatch.Dispatcher, *counters.Counters) {
	t.Helper()
	c := counters.New()
	summarySlot := activity.New()
	statusSlot := activity.New()
	cfg := dispatch.Config{
		ParsePairs:       pairtrack.New(),
		ActionGraphPairs: pairtrack.New(),
		ProjectGenPairs:  pairtrack.New(),
		InstallPairs:     pairtrack.New(),
		CommandPairs:     pairtrack.New(),
		BuildSteps:       activity.New(),
		TestSummarySlot:  summarySlot,
		TestStatusSlot:   statusSlot,
		Counters:         c,
		Net:              netstats.New(1000 * 1000 * 1000),
		Logs:             logqueue.New(),
		Tests:            testreport.New(summarySlot, statusSlot, c, logqueue.New(), testreport.Options{}),
		StdoutWriter:     ansiterm.New(discard{}),
	}
	return dispatch.New(cfg), c
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestCachePercentagesScenario(t *testing.T) {
	d, c := newTestDispatcher(t)

	d.Dispatch(events.Event{Kind: events.KindBuildStarted, TimestampMs: 0, Payload: events.BuildStartedPayload{RuleCount: 4}})

	folds := []events.CacheResultType{events.CacheMiss, events.CacheError, events.CacheHit, events.CacheLocalKeyUnchangedHit}
	for _, f := range folds {
		d.Dispatch(events.Event{Kind: events.KindRuleFinished, TimestampMs: 1000, Payload: events.RuleFinishedPayload{Status: events.RuleSuccess, CacheType: f}})
	}

	if c.RulesCompleted.Load() != 4 {
		t.Errorf("RulesCompleted = %d, want 4", c.RulesCompleted.Load())
	}
	if c.RulesUpdated.Load() != 3 {
		t.Errorf("RulesUpdated = %d, want 3", c.RulesUpdated.Load())
	}
	if c.CacheMiss.Load() != 1 || c.CacheError.Load() != 1 {
		t.Errorf("CacheMiss=%d CacheError=%d, want 1 and 1", c.CacheMiss.Load(), c.CacheError.Load())
	}
}

func TestDuplicateTestRunStartedIsFatal(t *testing.T) {
	var caught error

	cfg := dispatch.Config{
		ParsePairs:       pairtrack.New(),
		ActionGraphPairs: pairtrack.New(),
		ProjectGenPairs:  pairtrack.New(),
		InstallPairs:     pairtrack.New(),
		CommandPairs:     pairtrack.New(),
		BuildSteps:       activity.New(),
		TestSummarySlot:  activity.New(),
		TestStatusSlot:   activity.New(),
		Counters:         counters.New(),
		Net:              netstats.New(1000 * 1000 * 1000),
		Logs:             logqueue.New(),
		Tests:            testreport.New(activity.New(), activity.New(), counters.New(), logqueue.New(), testreport.Options{}),
		FatalHandler:     func(err error) { caught = err },
	}
	d := dispatch.New(cfg)

	d.Dispatch(events.Event{Kind: events.KindTestRunStarted, Payload: events.TestRunStarted{}})
	d.Dispatch(events.Event{Kind: events.KindTestRunStarted, Payload: events.TestRunStarted{}})

	if caught == nil {
		t.Fatal("expected the duplicate TestRunStarted to be reported as a contract violation")
	}
}

func TestClosedDispatcherDropsEvents(t *testing.T) {
	d, c := newTestDispatcher(t)
	d.Close()

	d.Dispatch(events.Event{Kind: events.KindRuleFinished, Payload: events.RuleFinishedPayload{Status: events.RuleSuccess, CacheType: events.CacheMiss}})

	if c.RulesCompleted.Load() != 0 {
		t.Error("a closed dispatcher must drop events silently")
	}
}

func TestUnknownKindIsIgnored(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Dispatch(events.Event{Kind: events.Kind(999)})
}

func TestStepStartedThenFinishedClearsActivity(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Dispatch(events.Event{Kind: events.KindStepStarted, WorkerID: 1, TimestampMs: 0, Payload: events.StepStartedPayload{ShortDescription: "//foo:bar"}})
	if _, ok := d.BuildSteps().Get(1); !ok {
		t.Fatal("expected worker 1 to have an active step")
	}
	d.Dispatch(events.Event{Kind: events.KindStepFinished, WorkerID: 1, TimestampMs: 10})
	if _, ok := d.BuildSteps().Get(1); ok {
		t.Error("expected worker 1's step to be cleared after finish")
	}
}
