// Package threadrender renders one status line per active worker for the
// frame composer's build and test thread-state blocks, and compresses
// overflow into a single summary line once the active worker count exceeds
// the configured cap — component J of the dashboard engine.
package threadrender

import (
	"fmt"
	"sort"
	"strings"

	"github.com/buildwatch/buildconsole/activity"
	"github.com/buildwatch/buildconsole/common"
)

// indent prefixes every full worker status line.
const indent = "  "

// shortStatusWidth bounds how much of a worker's description survives into
// the compressed overflow line's short token.
const shortStatusWidth = 16

// Renderer is the interface the composer drives to produce one block of
// thread-state lines: it never asks for more than a worker's count, sort
// order, and both line renderings, so BuildRenderer and TestRenderer can
// stay blind to the compression policy in RenderLines.
type Renderer interface {
	ThreadCount() int
	SortedWorkerIDs(byTime bool) []int64
	RenderStatusLine(id int64) string
	RenderShortStatus(id int64) string
}

// workerSnapshot is the elapsed time and description threadrender needs per
// worker, independent of which activity slot(s) it came from.
type workerSnapshot struct {
	id          int64
	elapsedMs   int64
	description string
}

func sortSnapshots(snaps []workerSnapshot, byTime bool) []workerSnapshot {
	out := append([]workerSnapshot(nil), snaps...)
	if byTime {
		sort.Slice(out, func(i, j int) bool { return out[i].elapsedMs > out[j].elapsedMs })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	}
	return out
}

func shortToken(description string) string {
	fields := strings.Fields(description)
	if len(fields) == 0 {
		return ""
	}
	token := fields[0]
	if len(token) > shortStatusWidth {
		token = token[:shortStatusWidth]
	}
	return token
}

// BuildRenderer renders the build thread-state block: one line per worker
// currently running a step, with no test-specific slots consulted.
type BuildRenderer struct {
	nowMs int64
	snaps map[int64]workerSnapshot
}

// NewBuildRenderer snapshots steps as of nowMs.
func NewBuildRenderer(steps *activity.Map, nowMs int64) *BuildRenderer {
	snaps := make(map[int64]workerSnapshot)
	for id, leaf := range steps.Snapshot() {
		snaps[int64(id)] = workerSnapshot{id: int64(id), elapsedMs: nowMs - leaf.SinceMs, description: leaf.Description}
	}
	return &BuildRenderer{nowMs: nowMs, snaps: snaps}
}

func (r *BuildRenderer) ThreadCount() int { return len(r.snaps) }

func (r *BuildRenderer) SortedWorkerIDs(byTime bool) []int64 {
	list := make([]workerSnapshot, 0, len(r.snaps))
	for _, s := range r.snaps {
		list = append(list, s)
	}
	list = sortSnapshots(list, byTime)
	ids := make([]int64, len(list))
	for i, s := range list {
		ids[i] = s.id
	}
	return ids
}

func (r *BuildRenderer) RenderStatusLine(id int64) string {
	s := r.snaps[id]
	return indent + common.FormatElapsed(s.elapsedMs) + " " + s.description
}

func (r *BuildRenderer) RenderShortStatus(id int64) string {
	return shortToken(r.snaps[id].description)
}

// TestRenderer renders the test thread-state block: a worker's description
// composes its test-summary slot (outer activity) with its status-message
// slot (appended detail) and falls back to its step slot when no test
// summary is active, mirroring the original's layered per-worker test
// description.
type TestRenderer struct {
	snaps map[int64]workerSnapshot
}

// NewTestRenderer snapshots all three activity slots as of nowMs.
func NewTestRenderer(steps, summary, statusMsg *activity.Map, nowMs int64) *TestRenderer {
	snaps := make(map[int64]workerSnapshot)

	mergeInto := func(m *activity.Map, describe func(activity.LeafEvent, *workerSnapshot)) {
		for id, leaf := range m.Snapshot() {
			wid := int64(id)
			s, ok := snaps[wid]
			if !ok {
				s = workerSnapshot{id: wid, elapsedMs: nowMs - leaf.SinceMs}
			} else if e := nowMs - leaf.SinceMs; e > s.elapsedMs {
				s.elapsedMs = e
			}
			describe(leaf, &s)
			snaps[wid] = s
		}
	}

	// Step first, so a summary (if present) overrides the description; the
	// elapsed time anchors to whichever slot fired first for that worker.
	mergeInto(steps, func(leaf activity.LeafEvent, s *workerSnapshot) {
		s.description = leaf.Description
	})
	mergeInto(summary, func(leaf activity.LeafEvent, s *workerSnapshot) {
		s.description = leaf.Description
	})
	mergeInto(statusMsg, func(leaf activity.LeafEvent, s *workerSnapshot) {
		if s.description != "" {
			s.description = s.description + " - " + leaf.Description
		} else {
			s.description = leaf.Description
		}
	})

	return &TestRenderer{snaps: snaps}
}

func (r *TestRenderer) ThreadCount() int { return len(r.snaps) }

func (r *TestRenderer) SortedWorkerIDs(byTime bool) []int64 {
	list := make([]workerSnapshot, 0, len(r.snaps))
	for _, s := range r.snaps {
		list = append(list, s)
	}
	list = sortSnapshots(list, byTime)
	ids := make([]int64, len(list))
	for i, s := range list {
		ids[i] = s.id
	}
	return ids
}

func (r *TestRenderer) RenderStatusLine(id int64) string {
	s := r.snaps[id]
	return indent + common.FormatElapsed(s.elapsedMs) + " " + s.description
}

func (r *TestRenderer) RenderShortStatus(id int64) string {
	return shortToken(r.snaps[id].description)
}

// RenderLines implements the compression policy shared by every thread-
// state block: full status lines up to maxLines-1, then one compressed
// line naming however many workers remain, each reduced to its short
// token. Sorting falls back to descending accumulated time whenever
// alwaysSortByTime is set or compression is in effect; otherwise workers
// are listed in ascending id order.
func RenderLines(r Renderer, maxLines int, alwaysSortByTime bool) []string {
	threadCount := r.ThreadCount()
	if threadCount == 0 {
		return nil
	}
	if maxLines <= 0 {
		maxLines = 1
	}

	compressing := threadCount > maxLines
	ids := r.SortedWorkerIDs(alwaysSortByTime || compressing)

	if !compressing {
		lines := make([]string, 0, len(ids))
		for _, id := range ids {
			lines = append(lines, r.RenderStatusLine(id))
		}
		return lines
	}

	fullCount := maxLines - 1
	if fullCount < 0 {
		fullCount = 0
	}

	lines := make([]string, 0, maxLines)
	for _, id := range ids[:fullCount] {
		lines = append(lines, r.RenderStatusLine(id))
	}

	rest := ids[fullCount:]
	var header string
	if maxLines == 1 {
		header = fmt.Sprintf(" |=> %d THREADS:", len(rest))
	} else {
		header = fmt.Sprintf(" |=> %d MORE THREADS:", len(rest))
	}
	tokens := make([]string, 0, len(rest))
	for _, id := range rest {
		tokens = append(tokens, r.RenderShortStatus(id))
	}
	lines = append(lines, header+" "+strings.Join(tokens, " "))
	return lines
}
