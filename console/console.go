// Package console is the public facade wiring the dispatcher, the frame
// composer and driver, and configuration together into one engine an
// external event producer can hand events to.
package console

import (
	"os"
	"sync"
	"time"

	"github.com/buildwatch/buildconsole/activity"
	"github.com/buildwatch/buildconsole/ansiterm"
	"github.com/buildwatch/buildconsole/common"
	"github.com/buildwatch/buildconsole/config"
	"github.com/buildwatch/buildconsole/counters"
	"github.com/buildwatch/buildconsole/dispatch"
	"github.com/buildwatch/buildconsole/events"
	"github.com/buildwatch/buildconsole/frame"
	"github.com/buildwatch/buildconsole/logqueue"
	"github.com/buildwatch/buildconsole/netstats"
	"github.com/buildwatch/buildconsole/pairtrack"
	"github.com/buildwatch/buildconsole/progressest"
	"github.com/buildwatch/buildconsole/testreport"
)

// PortProvider re-exports frame.PortProvider under the name spec.md §6
// calls it at the engine's public boundary; declared in frame to avoid an
// import cycle (console must import frame to wire the driver, so frame
// cannot import console back).
type PortProvider = frame.PortProvider

// Engine owns the full construct → dispatch-stream → close lifecycle spec.md
// §9 describes: one Dispatcher, one Composer, one Driver, started together
// and torn down together.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	driver     *frame.Driver
	net        *netstats.Keeper

	closeOnce sync.Once
}

// Options configures an Engine beyond what config.Config carries: the
// streams it observes and draws to, and the optional trace-URL provider.
type Options struct {
	Config       config.Config
	Stdout       *ansiterm.Writer
	Stderr       *ansiterm.Writer
	PortProvider PortProvider
	Estimator    progressest.Estimator
}

// New constructs every aggregate component, wires them into a Dispatcher
// and a Composer/Driver pair, but does not start rendering — call Start for
// that.
func New(opts Options) *Engine {
	if opts.Stdout == nil {
		opts.Stdout = ansiterm.New(os.Stdout)
	}
	if opts.Stderr == nil {
		opts.Stderr = ansiterm.New(os.Stderr)
	}

	buildSteps := activity.New()
	testSummarySlot := activity.New()
	testStatusSlot := activity.New()

	c := counters.New()
	net := netstats.New(5 * time.Second)
	logs := logqueue.New()
	tests := testreport.New(testSummarySlot, testStatusSlot, c, logs, testreport.Options{
		Verbosity: opts.Config.TestResultVerbosity,
		LogPath:   opts.Config.TestLogPath,
	})

	common.Locale = opts.Config.ParseLocale()

	// Route the ambient logger's output through the dashboard's own log
	// queue instead of letting it land on the real stderr: a raw write there
	// would corrupt the in-place frame without ever tripping the dirty
	// latch, since it never passes through the Writer wrapping Stderr.
	common.SetLogInterceptor(func(message string) bool {
		logs.Enqueue(logqueue.ConsoleEvent{Level: events.LevelError, Message: message})
		return true
	})

	// driverSlot breaks the construction cycle: the dispatcher's
	// ForceRender callback must call the driver's RenderNow, but the driver
	// is not built until after the dispatcher and composer exist.
	var driverSlot *frame.Driver

	d := dispatch.New(dispatch.Config{
		ParsePairs:       pairtrack.New(),
		ActionGraphPairs: pairtrack.New(),
		ProjectGenPairs:  pairtrack.New(),
		InstallPairs:     pairtrack.New(),
		CommandPairs:     pairtrack.New(),

		BuildSteps:      buildSteps,
		TestSummarySlot: testSummarySlot,
		TestStatusSlot:  testStatusSlot,

		Counters: c,
		Net:      net,
		Logs:     logs,
		Tests:    tests,

		StdoutWriter: opts.Stdout,
		Estimator:    opts.Estimator,
		ForceRender: func() {
			if driverSlot != nil {
				driverSlot.RenderNow()
			}
		},
		FatalHandler: func(err error) {
			common.Error("dashboard contract violation", err)
		},
	})

	composer := frame.NewComposer(frame.Config{
		Dispatcher: d,
		Limits: frame.ThreadLineLimits{
			Default: opts.Config.DefaultThreadLineLimit,
			Warning: opts.Config.ThreadLineLimitOnWarning,
			Error:   opts.Config.ThreadLineLimitOnError,
		},
		AlwaysSortByTime: opts.Config.AlwaysSortThreadsByTime,
		PortProvider:     opts.PortProvider,
		TimeZone:         opts.Config.ParseTimeZone(),
	})

	driver := frame.NewDriver(frame.DriverConfig{
		Composer: composer,
		Stdout:   opts.Stdout,
		Stderr:   opts.Stderr,
		Interval: opts.Config.RenderInterval(),
	})
	driverSlot = driver

	return &Engine{dispatcher: d, driver: driver, net: net}
}

// Start begins the render scheduler. Dispatch may be called before or after
// Start; events arriving before the first tick are simply reflected in it.
func (e *Engine) Start() {
	e.driver.Start()
}

// Dispatch hands one event to the dispatcher.
func (e *Engine) Dispatch(evt events.Event) {
	e.dispatcher.Dispatch(evt)
}

// Close stops the render scheduler (performing one final render unless a
// dirty stream already stopped rendering), stops the network-stats rolling
// window, and makes the
// dispatcher drop all further events. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.driver.Close()
		e.net.StopScheduler()
		e.dispatcher.Close()
		common.ClearLogInterceptor()
	})
}
