// Package dispatch is the single receive surface for incoming events
// (spec component M): Dispatch is a type switch over events.Kind that
// delegates each event to the aggregate component that owns the field it
// updates, and is safe to call concurrently from any ingestion thread.
//
// Dispatch never calls into the renderer directly, except the one
// cross-thread call spec.md §4.M and §4.I call out by name: forcing a
// render on TestRunFinished, wired through Config.ForceRender so this
// package never needs to import the frame driver.
package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/buildwatch/buildconsole/activity"
	"github.com/buildwatch/buildconsole/ansiterm"
	"github.com/buildwatch/buildconsole/common"
	"github.com/buildwatch/buildconsole/counters"
	"github.com/buildwatch/buildconsole/events"
	"github.com/buildwatch/buildconsole/logqueue"
	"github.com/buildwatch/buildconsole/netstats"
	"github.com/buildwatch/buildconsole/pairtrack"
	"github.com/buildwatch/buildconsole/progressest"
	"github.com/buildwatch/buildconsole/testreport"
)

// Config wires a Dispatcher to the aggregate components it owns no state
// of its own for; every field but FatalHandler, ForceRender, StdoutWriter
// and Estimator is required.
type Config struct {
	ParsePairs       *pairtrack.Tracker
	ActionGraphPairs *pairtrack.Tracker
	ProjectGenPairs  *pairtrack.Tracker
	InstallPairs     *pairtrack.Tracker
	CommandPairs     *pairtrack.Tracker

	BuildSteps      *activity.Map
	TestSummarySlot *activity.Map
	TestStatusSlot  *activity.Map

	Counters *counters.Counters
	Net      *netstats.Keeper
	Logs     *logqueue.Queue
	Tests    *testreport.Aggregator

	// StdoutWriter receives the final test report on TestRunFinished,
	// written the way the frame driver writes frames (WriteFrame), so
	// printing it never trips the stdout dirty latch.
	StdoutWriter *ansiterm.Writer

	// ForceRender is called once, synchronously, after TestRunFinished is
	// folded in — the render driver's RenderNow, wired by the console
	// facade after both are constructed.
	ForceRender func()

	// FatalHandler receives explicit contract violations (a duplicate
	// TestRunStarted, for instance). Defaults to panic, which is the
	// correct behavior for a programming bug in the event producer that
	// must not be silently masked.
	FatalHandler func(error)

	// Estimator supplies the optional fractional-progress collaborator
	// the frame composer consults; defaults to progressest.NullEstimator.
	Estimator progressest.Estimator
}

// Dispatcher routes events.Event values to the component that owns the
// field each updates, and holds the handful of scalar build-lifecycle
// fields (rule count, distributed flag, dist-build status snapshot) that
// no single component in C–I is responsible for.
type Dispatcher struct {
	cfg Config

	closed atomic.Bool

	buildStarted   atomic.Bool
	buildFinished  atomic.Bool
	buildStartMs   atomic.Int64
	buildEndMs     atomic.Int64
	ruleCount      atomic.Int64
	ruleCountKnown atomic.Bool
	distributed    atomic.Bool

	distBuildIDMu sync.Mutex
	distBuildID   string
	buildID       string

	distStatus atomic.Pointer[events.DistBuildStatusPayload]
}

// New returns a Dispatcher wired to cfg. Estimator and FatalHandler get
// defaults when left zero.
func New(cfg Config) *Dispatcher {
	if cfg.Estimator == nil {
		cfg.Estimator = progressest.NullEstimator{}
	}
	return &Dispatcher{cfg: cfg}
}

// Close makes every subsequent Dispatch a silent no-op, per spec.md §7's
// "event arrival after shutdown: dropped silently."
func (d *Dispatcher) Close() { d.closed.Store(true) }

// Closed reports whether Close has been called.
func (d *Dispatcher) Closed() bool { return d.closed.Load() }

// Dispatch routes one event. A panic inside a handler is recovered and
// logged rather than crashing the calling ingestion goroutine — mirroring
// anywork's process/catcher discipline — except for contract violations
// reported as errors (duplicate TestRunStarted), which are routed to
// FatalHandler instead of being swallowed.
func (d *Dispatcher) Dispatch(evt events.Event) {
	if d.closed.Load() {
		return
	}
	defer d.catcher(evt)
	d.route(evt)
}

func (d *Dispatcher) catcher(evt events.Event) {
	if r := recover(); r != nil {
		if cv, ok := r.(*testreport.ContractViolationError); ok {
			panic(cv)
		}
		common.Error(fmt.Sprintf("dispatch %s", evt.Kind), fmt.Errorf("recovered panic: %v", r))
	}
}

func (d *Dispatcher) fatal(err error) {
	handler := d.cfg.FatalHandler
	if handler == nil {
		handler = func(e error) { panic(e) }
	}
	handler(err)
}

func (d *Dispatcher) route(evt events.Event) {
	switch evt.Kind {
	case events.KindParseStarted:
		d.cfg.ParsePairs.OnStart(evt.Key, evt.TimestampMs)
	case events.KindParseFinished:
		d.cfg.ParsePairs.OnFinish(evt.Key, evt.TimestampMs)

	case events.KindActionGraphStarted:
		d.cfg.ActionGraphPairs.OnStart(evt.Key, evt.TimestampMs)
	case events.KindActionGraphFinished:
		d.cfg.ActionGraphPairs.OnFinish(evt.Key, evt.TimestampMs)

	case events.KindProjectGenerationStarted:
		d.cfg.ProjectGenPairs.OnStart(evt.Key, evt.TimestampMs)
	case events.KindProjectGenerationFinished:
		d.cfg.ProjectGenPairs.OnFinish(evt.Key, evt.TimestampMs)

	case events.KindInstallStarted:
		d.cfg.InstallPairs.OnStart(evt.Key, evt.TimestampMs)
	case events.KindInstallFinished:
		d.cfg.InstallPairs.OnFinish(evt.Key, evt.TimestampMs)

	case events.KindCommandStarted:
		d.cfg.CommandPairs.OnStart(evt.Key, evt.TimestampMs)
	case events.KindCommandFinished:
		d.cfg.CommandPairs.OnFinish(evt.Key, evt.TimestampMs)

	case events.KindBuildStarted:
		payload := evt.Payload.(events.BuildStartedPayload)
		d.buildStarted.Store(true)
		d.buildStartMs.Store(evt.TimestampMs)
		d.ruleCount.Store(int64(payload.RuleCount))
		d.ruleCountKnown.Store(true)
		d.distributed.Store(payload.Distributed)
		d.distBuildIDMu.Lock()
		d.buildID = payload.BuildID
		if payload.Distributed {
			d.distBuildID = payload.DistBuildID
		}
		d.distBuildIDMu.Unlock()
	case events.KindBuildFinished:
		d.buildFinished.Store(true)
		d.buildEndMs.Store(evt.TimestampMs)

	case events.KindRuleCountUpdated:
		payload := evt.Payload.(events.RuleCountUpdatedPayload)
		d.ruleCount.Store(int64(payload.RuleCount))
		d.ruleCountKnown.Store(true)

	case events.KindRuleStarted:
		// Rule starts do not, by themselves, set a worker's visible
		// activity — only the step events nested inside a rule's
		// execution do (spec.md §3's WorkerActivity tracks leaf events,
		// not the containing rule).
	case events.KindRuleFinished:
		payload := evt.Payload.(events.RuleFinishedPayload)
		d.cfg.Counters.RecordRuleFinished(payload.Status, payload.CacheType)

	case events.KindStepStarted:
		payload := evt.Payload.(events.StepStartedPayload)
		d.cfg.BuildSteps.Start(evt.WorkerID, activity.LeafEvent{Description: payload.ShortDescription, SinceMs: evt.TimestampMs})
	case events.KindStepFinished:
		d.cfg.BuildSteps.Finish(evt.WorkerID)

	case events.KindCompressionStarted:
		d.cfg.BuildSteps.Start(evt.WorkerID, activity.LeafEvent{Description: "COMPRESSING", SinceMs: evt.TimestampMs})
	case events.KindCompressionFinished:
		d.cfg.BuildSteps.Finish(evt.WorkerID)

	case events.KindCacheUploadScheduled:
		d.cfg.Counters.HTTPUploadsScheduled.Add(1)
	case events.KindCacheUploadStarted:
		d.cfg.Counters.HTTPUploadsStarted.Add(1)
	case events.KindCacheUploadFinished:
		payload := evt.Payload.(events.CacheUploadPayload)
		if payload.Succeeded {
			d.cfg.Counters.HTTPUploadsDone.Add(1)
		} else {
			d.cfg.Counters.HTTPUploadsFailed.Add(1)
		}

	case events.KindHTTPArtifactCacheEvent:
		d.cfg.Net.OnArtifactReceived()
	case events.KindNetworkBytesReceived:
		payload := evt.Payload.(events.NetworkBytesReceivedPayload)
		d.cfg.Net.OnBytesReceived(payload.Bytes)

	case events.KindConsoleLog:
		payload := evt.Payload.(events.ConsoleLogPayload)
		d.cfg.Logs.Enqueue(logqueue.ConsoleEvent{
			Level:        payload.Level,
			Message:      payload.Message,
			AnsiPrebaked: payload.AnsiPrebaked,
		})

	case events.KindDistBuildStatus:
		payload := evt.Payload.(events.DistBuildStatusPayload)
		d.distStatus.Store(&payload)

	case events.KindTestRunStarted:
		payload := evt.Payload.(events.TestRunStarted)
		if err := d.cfg.Tests.OnTestRunStarted(payload); err != nil {
			d.fatal(err)
		}
	case events.KindTestRunFinished:
		payload := evt.Payload.(events.TestRunFinished)
		text, err := d.cfg.Tests.OnTestRunFinished(payload)
		if err != nil {
			d.fatal(err)
			return
		}
		if d.cfg.ForceRender != nil {
			d.cfg.ForceRender()
		}
		if d.cfg.StdoutWriter != nil {
			d.cfg.StdoutWriter.WriteFrame(text + "\n")
		}
	case events.KindTestSummaryStarted:
		payload := evt.Payload.(events.TestSummaryStartedPayload)
		d.cfg.Tests.OnTestSummaryStarted(evt.WorkerID, payload)
	case events.KindTestSummaryFinished:
		payload := evt.Payload.(events.TestSummaryFinishedPayload)
		d.cfg.Tests.OnTestSummaryFinished(evt.WorkerID, payload)
	case events.KindTestStatusMessageStarted:
		payload := evt.Payload.(events.TestStatusMessageStartedPayload)
		d.cfg.Tests.OnTestStatusMessageStarted(evt.WorkerID, payload)
	case events.KindTestStatusMessageFinished:
		payload := evt.Payload.(events.TestStatusMessageFinishedPayload)
		d.cfg.Tests.OnTestStatusMessageFinished(evt.WorkerID, payload)

	default:
		// Any event kind not enumerated in spec.md §6 is ignored.
	}
}

// -- read accessors the frame composer consults every tick --

func (d *Dispatcher) BuildStarted() bool  { return d.buildStarted.Load() }
func (d *Dispatcher) BuildFinished() bool { return d.buildFinished.Load() }

// BuildStartMs returns the build's start time and whether it has started.
func (d *Dispatcher) BuildStartMs() (int64, bool) {
	return d.buildStartMs.Load(), d.buildStarted.Load()
}

// BuildEndMs returns the build's end time and whether it has finished.
func (d *Dispatcher) BuildEndMs() (int64, bool) {
	return d.buildEndMs.Load(), d.buildFinished.Load()
}

// RuleCount returns the last-known total rule count and whether one has
// ever been reported.
func (d *Dispatcher) RuleCount() (int, bool) {
	return int(d.ruleCount.Load()), d.ruleCountKnown.Load()
}

func (d *Dispatcher) Distributed() bool { return d.distributed.Load() }

func (d *Dispatcher) DistBuildID() string {
	d.distBuildIDMu.Lock()
	defer d.distBuildIDMu.Unlock()
	return d.distBuildID
}

// BuildID returns the current build's trace-URL identifier, if any.
func (d *Dispatcher) BuildID() string {
	d.distBuildIDMu.Lock()
	defer d.distBuildIDMu.Unlock()
	return d.buildID
}

// DistStatus returns the latest DistBuildStatus snapshot, if any has
// arrived — later snapshots always fully replace earlier ones.
func (d *Dispatcher) DistStatus() (events.DistBuildStatusPayload, bool) {
	p := d.distStatus.Load()
	if p == nil {
		return events.DistBuildStatusPayload{}, false
	}
	return *p, true
}

func (d *Dispatcher) ParsePairs() *pairtrack.Tracker       { return d.cfg.ParsePairs }
func (d *Dispatcher) ActionGraphPairs() *pairtrack.Tracker { return d.cfg.ActionGraphPairs }
func (d *Dispatcher) ProjectGenPairs() *pairtrack.Tracker  { return d.cfg.ProjectGenPairs }
func (d *Dispatcher) InstallPairs() *pairtrack.Tracker     { return d.cfg.InstallPairs }
func (d *Dispatcher) CommandPairs() *pairtrack.Tracker     { return d.cfg.CommandPairs }

func (d *Dispatcher) BuildSteps() *activity.Map      { return d.cfg.BuildSteps }
func (d *Dispatcher) TestSummarySlot() *activity.Map { return d.cfg.TestSummarySlot }
func (d *Dispatcher) TestStatusSlot() *activity.Map  { return d.cfg.TestStatusSlot }

func (d *Dispatcher) Counters() *counters.Counters      { return d.cfg.Counters }
func (d *Dispatcher) Net() *netstats.Keeper             { return d.cfg.Net }
func (d *Dispatcher) Logs() *logqueue.Queue              { return d.cfg.Logs }
func (d *Dispatcher) Tests() *testreport.Aggregator      { return d.cfg.Tests }
func (d *Dispatcher) Estimator() progressest.Estimator   { return d.cfg.Estimator }
