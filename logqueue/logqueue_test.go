package logqueue_test

import (
	"testing"

	"github.com/buildwatch/buildconsole/events"
	"github.com/buildwatch/buildconsole/logqueue"
)

func TestDrainReturnsNoLinesWhenEmpty(t *testing.T) {
	q := logqueue.New()
	if lines := q.Drain(); lines != nil {
		t.Errorf("Drain() on empty queue = %v, want nil", lines)
	}
}

func TestDrainSetsErrorLatchPermanently(t *testing.T) {
	q := logqueue.New()
	q.Enqueue(logqueue.ConsoleEvent{Level: events.LevelError, Message: "boom"})
	q.Drain()

	if !q.AnyErrorsPrinted() {
		t.Error("AnyErrorsPrinted must be true after draining an ERROR event")
	}
	q.Drain()
	if !q.AnyErrorsPrinted() {
		t.Error("AnyErrorsPrinted must stay true (monotonic latch) even after an empty drain")
	}
}

func TestDrainSplitsMultilineMessages(t *testing.T) {
	q := logqueue.New()
	q.Enqueue(logqueue.ConsoleEvent{Level: events.LevelInfo, Message: "line one\nline two", AnsiPrebaked: true})

	lines := q.Drain()
	if len(lines) != 2 {
		t.Fatalf("Drain() returned %d lines, want 2", len(lines))
	}
	if lines[0] != "line one" || lines[1] != "line two" {
		t.Errorf("lines = %v", lines)
	}
}

func TestDrainPassesThroughAnsiPrebakedUnmodified(t *testing.T) {
	q := logqueue.New()
	q.Enqueue(logqueue.ConsoleEvent{Level: events.LevelWarn, Message: "\x1b[33malready colored\x1b[0m", AnsiPrebaked: true})

	lines := q.Drain()
	if lines[0] != "\x1b[33malready colored\x1b[0m" {
		t.Errorf("prebaked message was modified: %q", lines[0])
	}
}
