// Package counters holds the atomic scalar counts the frame composer reads
// every tick: rule outcomes, cache results, test results, and HTTP cache
// upload states. Ordering across counters is relaxed — they are
// display-only, incremented from dispatcher threads and read from the
// single render thread.
package counters

import (
	"sync/atomic"

	"github.com/buildwatch/buildconsole/events"
)

// Counters is safe for concurrent increment and read without further
// locking; every field is a plain atomic integer.
type Counters struct {
	RulesCompleted atomic.Int64
	RulesUpdated   atomic.Int64
	CacheMiss      atomic.Int64
	CacheError     atomic.Int64

	TestPass atomic.Int64
	TestFail atomic.Int64
	TestSkip atomic.Int64

	HTTPUploadsScheduled atomic.Int64
	HTTPUploadsStarted   atomic.Int64
	HTTPUploadsDone      atomic.Int64
	HTTPUploadsFailed    atomic.Int64
}

// New returns a zeroed Counters.
func New() *Counters {
	return &Counters{}
}

// FoldCacheResult folds one rule-finish event with status=SUCCESS into the
// cache counters, grounded on
// SuperConsoleEventBusListener.buildRuleFinished's exact fold:
//
//	MISS                     -> cache_miss++
//	ERROR                    -> cache_error++
//	HIT | IGNORED | LOCAL_KEY_UNCHANGED_HIT -> no miss/error
//	anything but LOCAL_KEY_UNCHANGED_HIT    -> rules_updated++
//
// Callers are expected to have already checked status == SUCCESS and to
// call RulesCompleted.Add(1) themselves; this only folds the cache portion.
func (c *Counters) FoldCacheResult(cacheType events.CacheResultType) {
	switch cacheType {
	case events.CacheMiss:
		c.CacheMiss.Add(1)
	case events.CacheError:
		c.CacheError.Add(1)
	}
	if cacheType != events.CacheLocalKeyUnchangedHit {
		c.RulesUpdated.Add(1)
	}
}

// RecordRuleFinished applies the full rule-finish fold: always counts the
// completion, then folds cache results only on success.
func (c *Counters) RecordRuleFinished(status events.RuleStatus, cacheType events.CacheResultType) {
	c.RulesCompleted.Add(1)
	if status == events.RuleSuccess {
		c.FoldCacheResult(cacheType)
	}
}

// RecordTestResult increments the matching pass/fail/skip counter.
func (c *Counters) RecordTestResult(status events.TestStatusType) {
	switch status {
	case events.TestPass:
		c.TestPass.Add(1)
	case events.TestFail:
		c.TestFail.Add(1)
	case events.TestSkip:
		c.TestSkip.Add(1)
	}
}
