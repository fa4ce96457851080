package counters_test

import (
	"testing"

	"github.com/buildwatch/buildconsole/counters"
	"github.com/buildwatch/buildconsole/events"
)

func TestFoldCacheResultMiss(t *testing.T) {
	c := counters.New()
	c.FoldCacheResult(events.CacheMiss)
	if c.CacheMiss.Load() != 1 {
		t.Errorf("CacheMiss = %d, want 1", c.CacheMiss.Load())
	}
	if c.RulesUpdated.Load() != 1 {
		t.Errorf("RulesUpdated = %d, want 1 (a miss always updates)", c.RulesUpdated.Load())
	}
}

func TestFoldCacheResultLocalKeyUnchangedHitDoesNotUpdate(t *testing.T) {
	c := counters.New()
	c.FoldCacheResult(events.CacheLocalKeyUnchangedHit)
	if c.RulesUpdated.Load() != 0 {
		t.Errorf("RulesUpdated = %d, want 0 for a local-key-unchanged hit", c.RulesUpdated.Load())
	}
	if c.CacheMiss.Load() != 0 || c.CacheError.Load() != 0 {
		t.Error("a local-key-unchanged hit must not count as miss or error")
	}
}

func TestFoldCacheResultHitDoesNotCountAsMissOrError(t *testing.T) {
	c := counters.New()
	c.FoldCacheResult(events.CacheHit)
	if c.CacheMiss.Load() != 0 || c.CacheError.Load() != 0 {
		t.Error("a plain hit must not count as miss or error")
	}
	if c.RulesUpdated.Load() != 1 {
		t.Errorf("RulesUpdated = %d, want 1 (a hit still updates, just isn't a miss/error)", c.RulesUpdated.Load())
	}
}

func TestRecordRuleFinishedOnlyFoldsOnSuccess(t *testing.T) {
	c := counters.New()
	c.RecordRuleFinished(events.RuleFail, events.CacheMiss)
	if c.RulesCompleted.Load() != 1 {
		t.Errorf("RulesCompleted = %d, want 1", c.RulesCompleted.Load())
	}
	if c.CacheMiss.Load() != 0 {
		t.Error("a failed rule must not fold into cache counters")
	}
}

func TestCachePercentagesScenario(t *testing.T) {
	c := counters.New()
	c.RecordRuleFinished(events.RuleSuccess, events.CacheMiss)
	c.RecordRuleFinished(events.RuleSuccess, events.CacheError)
	c.RecordRuleFinished(events.RuleSuccess, events.CacheHit)
	c.RecordRuleFinished(events.RuleSuccess, events.CacheLocalKeyUnchangedHit)

	if c.RulesCompleted.Load() != 4 {
		t.Errorf("RulesCompleted = %d, want 4", c.RulesCompleted.Load())
	}
	if c.RulesUpdated.Load() != 3 {
		t.Errorf("RulesUpdated = %d, want 3", c.RulesUpdated.Load())
	}
	if c.CacheMiss.Load() != 1 || c.CacheError.Load() != 1 {
		t.Errorf("CacheMiss=%d CacheError=%d, want 1 and 1", c.CacheMiss.Load(), c.CacheError.Load())
	}
}
