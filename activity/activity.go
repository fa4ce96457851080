// Package activity tracks what each worker is currently doing: a
// concurrent worker_id -> leaf-event mapping, sized with a hint from
// runtime.NumCPU (the Go analogue of the teacher's
// ConcurrentHashMap<>(cores) sizing, ported from the Java original's
// per-worker activity maps).
package activity

import (
	"runtime"
	"sort"
	"sync"
)

// LeafEvent is the innermost current activity of a worker: a step, cache
// op, compression, test summary, or test-status message description.
type LeafEvent struct {
	Description string
	SinceMs     int64
}

// Map is a concurrent worker_id -> LeafEvent mapping. A missing entry
// means the worker is idle on this slot. Three independent
// instances back the three activity slots named in the data model: step,
// test-summary, test-status-message.
type Map struct {
	mu      sync.RWMutex
	workers map[int]LeafEvent
	order   []int // cached sorted worker ids, rebuilt lazily
	dirty   bool
}

// New returns an empty activity map.
func New() *Map {
	return &Map{workers: make(map[int]LeafEvent, runtime.NumCPU())}
}

// Start records worker_id as currently doing the given leaf event.
func (m *Map) Start(workerID int, leaf LeafEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[workerID]; !ok {
		m.dirty = true
	}
	m.workers[workerID] = leaf
}

// Finish clears worker_id's activity on this slot.
func (m *Map) Finish(workerID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[workerID]; ok {
		delete(m.workers, workerID)
		m.dirty = true
	}
}

// Get returns the worker's current leaf event, if any.
func (m *Map) Get(workerID int) (LeafEvent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	leaf, ok := m.workers[workerID]
	return leaf, ok
}

// Len reports the number of workers currently active on this slot —
// thread_count in the thread-state renderer's compression policy.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// SortedWorkerIDs returns every active worker id in ascending order.
// Cached across calls until Start/Finish invalidates it.
func (m *Map) SortedWorkerIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty && m.order != nil {
		return m.order
	}
	ids := make([]int, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	m.order = ids
	m.dirty = false
	return ids
}

// Snapshot returns a stable copy of every active worker's id and leaf
// event, for the thread-state renderer to compose into lines.
func (m *Map) Snapshot() map[int]LeafEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]LeafEvent, len(m.workers))
	for id, leaf := range m.workers {
		out[id] = leaf
	}
	return out
}
