// Package anywork is a small fire-and-forget work pool, adapted from the
// teacher's global worker pool into an instantiable one: the synthetic
// event generator in cmd/buildconsole uses it to fan a demo build out
// across several goroutines the same way a real event bus delivers from
// arbitrary ingestion threads. dispatch.Dispatcher's panic-to-contract-
// violation wrapping is grounded on this package's catcher/process pair.
package anywork

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/buildwatch/buildconsole/common"
)

// Work is one unit of fire-and-forget work submitted to a Pool.
type Work func()

// Pool runs submitted Work across a fixed number of goroutines, recovering
// panics into a failure count rather than crashing the process — the same
// discipline dispatch.Dispatcher applies to event handlers.
type Pool struct {
	queue    chan Work
	wg       sync.WaitGroup
	failures chan string
	failwg   sync.WaitGroup
	count    int
}

// New starts a Pool sized to workers, or common.OptimalWorkerCount() when
// workers <= 0.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = common.OptimalWorkerCount()
	}
	p := &Pool{
		queue:    make(chan Work, 10000),
		failures: make(chan string, 100),
		count:    workers,
	}
	for i := 0; i < workers; i++ {
		go p.member()
	}
	p.failwg.Add(1)
	go p.watchFailures()
	return p
}

func (p *Pool) member() {
	for work := range p.queue {
		p.process(work)
		p.wg.Done()
	}
}

func (p *Pool) process(work Work) {
	defer p.catcher()
	work()
}

func (p *Pool) catcher() {
	if r := recover(); r != nil {
		p.failures <- fmt.Sprintf("recovered panic in anywork.Pool: %v", r)
	}
}

func (p *Pool) watchFailures() {
	defer p.failwg.Done()
	for fail := range p.failures {
		fmt.Fprintln(os.Stderr, fail)
	}
}

// Submit enqueues work for execution on any idle worker. Never blocks once
// the queue has room; the queue is sized generously so bursts of synthetic
// events never backpressure the demo generator.
func (p *Pool) Submit(work Work) {
	if work == nil {
		return
	}
	p.wg.Add(1)
	p.queue <- work
}

// Wait blocks until every submitted unit of work has completed, yielding
// the scheduler first so short-lived work gets a fair shot at running
// before the wait begins.
func (p *Pool) Wait() {
	runtime.Gosched()
	p.wg.Wait()
}

// Close stops accepting new work, closes the failure channel, and waits for
// pending failure reports to be printed. It does not itself wait for
// in-flight work (Wait does that). Close is not idempotent: a second call
// panics on the already-closed channels.
func (p *Pool) Close() {
	close(p.queue)
	close(p.failures)
	p.failwg.Wait()
}
