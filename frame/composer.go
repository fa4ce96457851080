// Package frame implements the frame composer and frame driver (spec
// components K and L): Compose produces the ordered, gated list of lines
// for one tick, and Driver periodically clears the previous frame and
// writes the new one, coordinating shutdown with the rest of the engine.
package frame

import (
	"fmt"
	"time"

	"github.com/buildwatch/buildconsole/ansiterm"
	"github.com/buildwatch/buildconsole/common"
	"github.com/buildwatch/buildconsole/dispatch"
	"github.com/buildwatch/buildconsole/logqueue"
	"github.com/buildwatch/buildconsole/netstats"
	"github.com/buildwatch/buildconsole/pairtrack"
	"github.com/buildwatch/buildconsole/threadrender"
)

// ThreadLineLimits bounds how many per-worker status lines the build and
// test thread-state blocks may render before compressing overflow — the
// default limit, further tightened once a warning or error has printed.
type ThreadLineLimits struct {
	Default int
	Warning int
	Error   int
}

// PortProvider is satisfied by an optional embedded HTTP server: when
// present and bound, the BUILDING line grows a "Details:" trace-URL
// suffix. The engine never starts or owns that server itself.
type PortProvider interface {
	Port() (int, bool)
}

// Config wires a Composer to the dispatcher it reads state from and the
// handful of settings §6 of the spec calls configuration.
type Config struct {
	Dispatcher       *dispatch.Dispatcher
	Limits           ThreadLineLimits
	AlwaysSortByTime bool
	PortProvider     PortProvider // optional
	TimeZone         *time.Location
}

// Composer produces the ordered line list for one tick. It holds no state
// of its own between ticks — every line is derived fresh from the
// dispatcher's current snapshot.
type Composer struct {
	cfg Config
}

// Logs returns the dispatcher's log queue, so the frame driver can drain it
// once per tick without importing dispatch itself.
func (c *Composer) Logs() *logqueue.Queue { return c.cfg.Dispatcher.Logs() }

// NewComposer returns a Composer reading from cfg.Dispatcher. TimeZone
// defaults to time.Local when unset.
func NewComposer(cfg Config) *Composer {
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.Local
	}
	if cfg.Limits.Default <= 0 {
		cfg.Limits.Default = 10
	}
	if cfg.Limits.Warning <= 0 {
		cfg.Limits.Warning = cfg.Limits.Default
	}
	if cfg.Limits.Error <= 0 {
		cfg.Limits.Error = cfg.Limits.Warning
	}
	return &Composer{cfg: cfg}
}

// maxThreadLines implements spec.md §4.L's thread-line cap: the default,
// tightened to the warning limit once any warning has printed, tightened
// further to the error limit once any error has printed.
func (c *Composer) maxThreadLines() int {
	d := c.cfg.Dispatcher
	max := c.cfg.Limits.Default
	if d.Logs().AnyWarningsPrinted() && c.cfg.Limits.Warning < max {
		max = c.cfg.Limits.Warning
	}
	if d.Logs().AnyErrorsPrinted() && c.cfg.Limits.Error < max {
		max = c.cfg.Limits.Error
	}
	if max <= 0 {
		max = 1
	}
	return max
}

// Compose produces the ordered line list for a tick at nowMs. Every block
// is gated exactly as spec.md §4.K orders them; an elided block simply
// contributes no lines.
func (c *Composer) Compose(nowMs int64) []string {
	d := c.cfg.Dispatcher
	var lines []string

	lines = append(lines, c.distBuildDebugBlock(d)...)

	processingStarted := d.BuildStarted()
	parseResult := pairtrack.Elapsed(d.ParsePairs(), nowMs)
	processingResult := pairtrack.MergeElapsed(nowMs, d.ParsePairs(), d.ActionGraphPairs())

	// Nothing at all has happened yet (no parse ever observed, no build
	// started): the phase line has nothing to say and is omitted entirely,
	// rather than showing a perpetual zero-elapsed placeholder.
	hasPhaseActivity := d.ParsePairs().HasAny() || d.ActionGraphPairs().HasAny() || processingStarted
	if hasPhaseActivity {
		if !processingStarted {
			pct, hasPct := d.Estimator().ProcessingBuckFilesProgress()
			lines = append(lines, renderPhaseLine("PARSING BUCK FILES", parseResult, pct, hasPct))
		} else {
			pct, hasPct := d.Estimator().ProcessingBuckFilesProgress()
			lines = append(lines, renderPhaseLine("PROCESSING BUCK FILES", processingResult, pct, hasPct))
		}
	}

	if d.ProjectGenPairs().HasAny() {
		pgResult := pairtrack.Elapsed(d.ProjectGenPairs(), nowMs)
		pct, hasPct := d.Estimator().GeneratingProjectFilesProgress()
		lines = append(lines, renderPhaseLine("GENERATING PROJECT FILES", pgResult, pct, hasPct))
	}

	processingComplete := processingStarted && !processingResult.IsRunning
	if !processingComplete {
		return lines
	}

	lines = append(lines, c.networkStatsLine(d, nowMs))

	if d.Distributed() {
		if l, ok := c.distBuildStatusLine(d); ok {
			lines = append(lines, l)
		}
	}

	lines = append(lines, c.buildingLine(d, nowMs))
	if d.BuildStarted() && !d.BuildFinished() {
		maxLines := c.maxThreadLines()
		br := threadrender.NewBuildRenderer(d.BuildSteps(), nowMs)
		lines = append(lines, threadrender.RenderLines(br, maxLines, c.cfg.AlwaysSortByTime)...)
	}

	if d.Tests().HasStarted() {
		lines = append(lines, c.testingLine(d))
		if !d.Tests().HasFinished() {
			maxLines := c.maxThreadLines()
			tr := threadrender.NewTestRenderer(d.BuildSteps(), d.TestSummarySlot(), d.TestStatusSlot(), nowMs)
			lines = append(lines, threadrender.RenderLines(tr, maxLines, c.cfg.AlwaysSortByTime)...)
		}
	}

	if d.InstallPairs().HasAny() {
		installResult := pairtrack.Elapsed(d.InstallPairs(), nowMs)
		lines = append(lines, renderPhaseLine("INSTALLING", installResult, 0, false))
	}

	if l, ok := c.httpUploadLine(d); ok {
		lines = append(lines, l)
	}

	return lines
}

// distBuildDebugBlock renders item 1 of spec.md §4.K: a warning-colored
// header followed by the dist-build log book, only while a distributed
// build is underway. Emitting it sets any_warnings_printed, per spec.
func (c *Composer) distBuildDebugBlock(d *dispatch.Dispatcher) []string {
	if !d.BuildStarted() || !d.Distributed() {
		return nil
	}
	status, ok := d.DistStatus()
	if !ok || len(status.LogBook) == 0 {
		return nil
	}
	d.Logs().MarkWarning()
	lines := make([]string, 0, len(status.LogBook)+1)
	lines = append(lines, ansiterm.AsWarning("Distributed build debug info:"))
	for _, entry := range status.LogBook {
		ts := time.UnixMilli(entry.TimestampMs).In(c.cfg.TimeZone).Format("[2006-01-02 15:04:05.000]")
		lines = append(lines, fmt.Sprintf("%s %s", ts, entry.Name))
	}
	return lines
}

func (c *Composer) distBuildStatusLine(d *dispatch.Dispatcher) (string, bool) {
	status, ok := d.DistStatus()
	if !ok {
		return "", false
	}
	line := fmt.Sprintf("[±] DISTBUILD STATUS: %s", status.State)
	if status.Message != "" {
		line += " - " + status.Message
	}
	return line, true
}

func (c *Composer) networkStatsLine(d *dispatch.Dispatcher, nowMs int64) string {
	icon := "+"
	if d.BuildFinished() {
		icon = "-"
	}
	net := d.Net()
	speed := netstats.FormatSize(net.InstantSpeed()) + "/s"
	total := netstats.FormatSize(float64(net.TotalBytes()))
	return fmt.Sprintf("[%s] DOWNLOADING... (%s, TOTAL: %s, %d Artifacts)", icon, speed, total, net.ArtifactCount())
}

// buildingLine implements item 5's "Building line": elapsed time is the
// build's own wall-clock span minus whatever portion of parse/action-graph
// activity overlapped it, so concurrent lazy parsing during an early build
// is not double-counted as build time.
func (c *Composer) buildingLine(d *dispatch.Dispatcher, nowMs int64) string {
	icon := "±"
	if d.BuildFinished() {
		icon = "-"
	}
	buildStart, started := d.BuildStartMs()
	if !started {
		return fmt.Sprintf("[%s] BUILDING...", icon)
	}
	end := nowMs
	if endMs, finished := d.BuildEndMs(); finished {
		end = endMs
	}
	offset := pairtrack.OverlapMs(buildStart, end, d.ParsePairs(), d.ActionGraphPairs())
	elapsed := (end - buildStart) - offset
	if elapsed < 0 {
		elapsed = 0
	}

	line := fmt.Sprintf("[%s] BUILDING...%s", icon, common.FormatSeconds(elapsed))
	if pct, ok := d.Estimator().ApproximateBuildProgress(); ok {
		line += fmt.Sprintf(" [%.1f%%]", pct*100)
	}

	var suffixParts []string
	if summary, ok := c.jobsSummary(d); ok {
		suffixParts = append(suffixParts, summary)
	}
	if c.cfg.PortProvider != nil {
		if port, ok := c.cfg.PortProvider.Port(); ok {
			buildID := d.BuildID()
			if buildID != "" {
				suffixParts = append(suffixParts, fmt.Sprintf("Details: http://localhost:%d/trace/%s", port, buildID))
			}
		}
	}
	if len(suffixParts) > 0 {
		line += " (" + joinComma(suffixParts) + ")"
	}
	return line
}

// jobsSummary implements the "N/M JOBS, K UPDATED, X [p%] CACHE MISS[, Y
// [q%] CACHE ERRORS]" format. Percentages are normalized against the
// total rule count, not the completed count, so a cache hit (which
// short-circuits a whole subtree) does not bias the miss rate upward as
// the build progresses — the percentage only ever improves monotonically.
func (c *Composer) jobsSummary(d *dispatch.Dispatcher) (string, bool) {
	ruleCount, known := d.RuleCount()
	if !known {
		return "", false
	}
	counters := d.Counters()
	completed := counters.RulesCompleted.Load()
	updated := counters.RulesUpdated.Load()
	miss := counters.CacheMiss.Load()
	cacheErr := counters.CacheError.Load()

	var missPct float64
	if ruleCount > 0 {
		missPct = 100 * float64(miss) / float64(ruleCount)
	}
	summary := fmt.Sprintf("%d/%d JOBS, %d UPDATED, %d [%.1f%%] CACHE MISS", completed, ruleCount, updated, miss, missPct)

	if cacheErr > 0 {
		var errPct float64
		if updated > 0 {
			errPct = 100 * float64(cacheErr) / float64(updated)
		}
		summary += fmt.Sprintf(", %d [%.1f%%] CACHE ERRORS", cacheErr, errPct)
	}
	return summary, true
}

func (c *Composer) testingLine(d *dispatch.Dispatcher) string {
	icon := "±"
	counters := d.Counters()
	return fmt.Sprintf("[%s] TESTING...(%d PASS/%d SKIP/%d FAIL)", icon,
		counters.TestPass.Load(), counters.TestSkip.Load(), counters.TestFail.Load())
}

func (c *Composer) httpUploadLine(d *dispatch.Dispatcher) (string, bool) {
	counters := d.Counters()
	scheduled := counters.HTTPUploadsScheduled.Load()
	if scheduled == 0 {
		return "", false
	}
	started := counters.HTTPUploadsStarted.Load()
	done := counters.HTTPUploadsDone.Load()
	failed := counters.HTTPUploadsFailed.Load()
	uploading := started - done - failed
	if uploading < 0 {
		uploading = 0
	}
	pending := scheduled - started
	if pending < 0 {
		pending = 0
	}
	line := fmt.Sprintf("HTTP CACHE UPLOAD: (%d COMPLETE/%d FAILED/%d UPLOADING/%d PENDING)", done, failed, uploading, pending)
	return line, true
}

// renderPhaseLine renders one of the simple "[+]/[-] LABEL...<elapsed>
// [pct]" lines shared by PARSING, PROCESSING, GENERATING PROJECT FILES,
// and INSTALLING.
func renderPhaseLine(label string, result pairtrack.ElapsedResult, pct float64, hasPct bool) string {
	icon := "+"
	elapsed := result.CompletedMs
	if result.IsRunning {
		elapsed = result.RunningMs
	} else {
		icon = "-"
	}
	line := fmt.Sprintf("[%s] %s...%s", icon, label, common.FormatSeconds(elapsed))
	if hasPct {
		line += fmt.Sprintf(" [%.1f%%]", pct*100)
	}
	return line
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
