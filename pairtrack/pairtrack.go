// Package pairtrack pairs start/finish events by correlation key and sums
// non-overlapping intervals, replacing the teacher's per-field progress
// tracking (progresscore.ProgressTracker) with the two-timestamp pair model
// the dashboard's phase lines need (parse, action-graph, install, command,
// project-generation).
package pairtrack

import (
	"sort"
	"sync"

	"github.com/buildwatch/buildconsole/events"
)

// Pair is one tracked phase span. Finished means complete — both a start
// and a finish have been observed, in either arrival order — at which
// point the pair is immutable; OnFinish on an already-complete pair is a
// no-op, matching AbstractConsoleEventBusListener's tolerance for
// duplicate finishes. hasStart/hasEnd track which half has arrived so far,
// independently of StartMs/EndMs's zero value, which is itself a valid
// timestamp.
type Pair struct {
	StartMs  int64
	EndMs    int64
	Finished bool

	hasStart bool
	hasEnd   bool
}

// Tracker wraps a mutex-guarded map rather than sync.Map: frame composition
// iterates every pair once per tick and needs a stable, complete snapshot
// far more than it needs lock-free writes, which a plain map under a mutex
// gives more cheaply than sync.Map's API allows.
type Tracker struct {
	mu    sync.Mutex
	pairs map[events.EventKey]Pair
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{pairs: make(map[events.EventKey]Pair)}
}

// OnStart records a phase start. If a finish for this key already arrived
// (out-of-order delivery), the pair completes now, using the finish's
// already-recorded end time.
func (t *Tracker) OnStart(key events.EventKey, atMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.pairs[key]
	if ok && existing.Finished {
		return
	}
	existing.StartMs = atMs
	existing.hasStart = true
	if existing.hasEnd {
		existing.Finished = true
	}
	t.pairs[key] = existing
}

// OnFinish records a phase finish. If the start has not yet arrived, the
// pair is left incomplete (hasEnd set, Finished not) until OnStart fills in
// the real start time and completes it — mirrors parseStarted/
// parseFinished's either-order tolerance without ever treating a missing
// start as if it happened at time zero.
func (t *Tracker) OnFinish(key events.EventKey, atMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.pairs[key]
	if ok && existing.Finished {
		return
	}
	existing.EndMs = atMs
	existing.hasEnd = true
	if existing.hasStart {
		existing.Finished = true
	}
	t.pairs[key] = existing
}

// Snapshot returns a stable copy of every tracked pair.
func (t *Tracker) Snapshot() []Pair {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Pair, 0, len(t.pairs))
	for _, p := range t.pairs {
		out = append(out, p)
	}
	return out
}

// ElapsedResult replaces the UNFINISHED_EVENT_PAIR=-1 sentinel with an
// explicit tagged result: Running carries the in-flight duration, Finished
// its absence.
type ElapsedResult struct {
	CompletedMs int64
	RunningMs   int64
	IsRunning   bool
}

// Elapsed computes the flattened, de-overlapped sum of every complete pair
// plus, if any pair is still ongoing, the duration since the earliest
// ongoing start. Per the corrected intent of the original Java (which
// assigns latestTimestamp = pair.getStartTime() inside the ongoing guard —
// a bug, since "currently running" should span from the first unfinished
// phase, not the most recently observed one), this uses the *earliest*
// ongoing start.
func Elapsed(t *Tracker, nowMs int64) ElapsedResult {
	return elapsedOfPairs(t.Snapshot(), nowMs)
}

// mergeCompleted sums the measure of the union of every complete pair's
// interval, merging overlaps so parallel phases are never double-counted.
func mergeCompleted(pairs []Pair) int64 {
	intervals := make([][2]int64, 0, len(pairs))
	for _, p := range pairs {
		if !p.Finished || p.EndMs <= p.StartMs {
			continue
		}
		intervals = append(intervals, [2]int64{p.StartMs, p.EndMs})
	}
	if len(intervals) == 0 {
		return 0
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i][0] < intervals[j][0] })

	var total int64
	curStart, curEnd := intervals[0][0], intervals[0][1]
	for _, iv := range intervals[1:] {
		if iv[0] > curEnd {
			total += curEnd - curStart
			curStart, curEnd = iv[0], iv[1]
			continue
		}
		if iv[1] > curEnd {
			curEnd = iv[1]
		}
	}
	total += curEnd - curStart
	return total
}

// elapsedOfPairs is the shared core of Elapsed and MergeElapsed: the
// flattened, de-overlapped completed measure plus the earliest ongoing
// start, if any.
func elapsedOfPairs(pairs []Pair, nowMs int64) ElapsedResult {
	completed := mergeCompleted(pairs)

	var (
		hasOngoing    bool
		earliestStart int64
	)
	for _, p := range pairs {
		if p.Finished || !p.hasStart {
			continue
		}
		if !hasOngoing || p.StartMs < earliestStart {
			earliestStart = p.StartMs
			hasOngoing = true
		}
	}

	result := ElapsedResult{CompletedMs: completed}
	if hasOngoing {
		result.IsRunning = true
		result.RunningMs = nowMs - earliestStart
	}
	return result
}

// MergeElapsed computes Elapsed across the union of every tracker's pairs
// as if they belonged to one tracker — the frame composer's "aggregated
// parse + action-graph pairs" processing line is exactly this: the two
// phases' pairs merged before de-overlapping, so time spent on an
// overlapping parse and action-graph span is still counted once.
func MergeElapsed(nowMs int64, trackers ...*Tracker) ElapsedResult {
	var pairs []Pair
	for _, t := range trackers {
		pairs = append(pairs, t.Snapshot()...)
	}
	return elapsedOfPairs(pairs, nowMs)
}

// HasAny reports whether the tracker has observed any pair at all
// (started, finished, or both) — the frame composer uses this to decide
// whether a phase has begun yet.
func (t *Tracker) HasAny() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pairs) > 0
}

// Between returns the sub-collection of pairs strictly bounded by
// [start,end], substituting proxy pairs for any pair straddling the
// boundary. Both ends are clamped symmetrically — max(start, p.StartMs),
// min(end, p.EndMs) — which resolves the asymmetry in the original Java's
// between filter (it proxied straddling complete pairs on both sides but
// clamped ongoing pairs only on the start). Ongoing pairs are proxied to
// (max(start, p.StartMs), end).
func Between(t *Tracker, start, end int64) []Pair {
	pairs := t.Snapshot()
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Finished {
			if p.EndMs < start || p.StartMs > end {
				continue
			}
			out = append(out, Pair{
				StartMs:  maxInt64(start, p.StartMs),
				EndMs:    minInt64(end, p.EndMs),
				Finished: true,
			})
			continue
		}
		if !p.hasStart || p.StartMs > end {
			continue
		}
		out = append(out, Pair{
			StartMs:  maxInt64(start, p.StartMs),
			EndMs:    end,
			Finished: false,
		})
	}
	return out
}

// OverlapMs sums the de-overlapped measure of every tracker's pairs that
// falls inside [start,end] — the BUILDING line's offsetMs: the portion of
// concurrent parse/action-graph activity that happened during the build
// window and so must not be double-counted as build time. Ongoing pairs
// are treated as running through end, matching Between's proxy.
func OverlapMs(start, end int64, trackers ...*Tracker) int64 {
	var clamped []Pair
	for _, t := range trackers {
		for _, p := range Between(t, start, end) {
			p.Finished = true
			clamped = append(clamped, p)
		}
	}
	return mergeCompleted(clamped)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
