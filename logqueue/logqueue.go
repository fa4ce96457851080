// Package logqueue is the unbounded MPSC queue of deferred log lines the
// frame driver drains once per tick. It is the pragmatic Go rendering of a
// lock-free queue: a mutex-guarded slice swapped out wholesale on drain,
// the same shape as the teacher's logbuf.LogBuffer (mutex-guarded slice,
// notify callback) but unbounded rather than a fixed-capacity ring.
package logqueue

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/buildwatch/buildconsole/ansiterm"
	"github.com/buildwatch/buildconsole/events"
)

// ConsoleEvent is one log line awaiting the next frame.
type ConsoleEvent struct {
	Level        events.ConsoleLogLevel
	Message      string
	AnsiPrebaked bool
}

// Queue holds pending ConsoleEvents and the warning/error latches their
// draining flips. The latches are monotonic: once true, AnyWarningsPrinted
// and AnyErrorsPrinted never go back to false for the life of the queue.
type Queue struct {
	mu      sync.Mutex
	pending []ConsoleEvent

	anyWarnings atomic.Bool
	anyErrors   atomic.Bool
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue never blocks: it takes the mutex only long enough to append.
func (q *Queue) Enqueue(evt ConsoleEvent) {
	q.mu.Lock()
	q.pending = append(q.pending, evt)
	q.mu.Unlock()
}

// AnyWarningsPrinted reports whether a WARN-level event has ever been
// drained.
func (q *Queue) AnyWarningsPrinted() bool { return q.anyWarnings.Load() }

// AnyErrorsPrinted reports whether an ERROR-level event has ever been
// drained.
func (q *Queue) AnyErrorsPrinted() bool { return q.anyErrors.Load() }

// MarkWarning flips the warning latch directly, for frame blocks (the
// dist-build debug header) that are warning-colored without going through
// the queue themselves.
func (q *Queue) MarkWarning() { q.anyWarnings.Store(true) }

// MarkError flips the error latch directly, for frame blocks that are
// error-colored without going through the queue themselves.
func (q *Queue) MarkError() { q.anyErrors.Store(true) }

// Drain swaps out the backing slice under the lock and formats every
// pending event into rendered lines: ANSI-prebaked messages pass through
// unmodified, WARN is wrapped in the warning color, ERROR in the
// highlighted-failure color, INFO as-is. Each message is split on "\n" so
// the returned line count matches what gets rendered exactly.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	var lines []string
	for _, evt := range batch {
		switch evt.Level {
		case events.LevelWarn:
			q.anyWarnings.Store(true)
		case events.LevelError:
			q.anyErrors.Store(true)
		}

		rendered := evt.Message
		if !evt.AnsiPrebaked {
			switch evt.Level {
			case events.LevelWarn:
				rendered = ansiterm.AsWarning(rendered)
			case events.LevelError:
				rendered = ansiterm.AsError(rendered)
			}
		}
		lines = append(lines, strings.Split(rendered, "\n")...)
	}
	return lines
}
