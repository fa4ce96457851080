package events

// CacheResultType is the outcome of a rule's cache lookup, used by
// counters.FoldCacheResult to fold rule-finish events into the cache
// counters.
type CacheResultType int

const (
	CacheMiss CacheResultType = iota
	CacheError
	CacheHit
	CacheIgnored
	CacheLocalKeyUnchangedHit
)

func (t CacheResultType) String() string {
	switch t {
	case CacheMiss:
		return "MISS"
	case CacheError:
		return "ERROR"
	case CacheHit:
		return "HIT"
	case CacheIgnored:
		return "IGNORED"
	case CacheLocalKeyUnchangedHit:
		return "LOCAL_KEY_UNCHANGED_HIT"
	default:
		return "UNKNOWN"
	}
}

// RuleStatus is a rule's completion status.
type RuleStatus int

const (
	RuleSuccess RuleStatus = iota
	RuleFail
	RuleCanceled
)

// TestStatusType mirrors the handful of outcomes a test case can report.
type TestStatusType int

const (
	TestPass TestStatusType = iota
	TestFail
	TestSkip
)

func (t TestStatusType) String() string {
	switch t {
	case TestPass:
		return "PASS"
	case TestFail:
		return "FAILURE"
	case TestSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// DistBuildState is the coarse lifecycle state of a distributed build, as
// reported by its coordinator.
type DistBuildState int

const (
	DistBuildInit DistBuildState = iota
	DistBuildQueued
	DistBuildBuilding
	DistBuildFinishedSuccessfully
	DistBuildFailed
)

func (s DistBuildState) String() string {
	switch s {
	case DistBuildInit:
		return "INIT"
	case DistBuildQueued:
		return "QUEUED"
	case DistBuildBuilding:
		return "BUILDING"
	case DistBuildFinishedSuccessfully:
		return "FINISHED_SUCCESSFULLY"
	case DistBuildFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -- phase start/finish payloads (parse, action-graph, install, compression,
// command, project-generation all share this shape) --

type PhaseStarted struct{}

type PhaseFinished struct{}

// BuildStartedPayload carries the rule count once known, needed for the
// jobs-summary percentage math.
type BuildStartedPayload struct {
	RuleCount   int
	Distributed bool
	DistBuildID string

	// BuildID names the build for the optional "Details:
	// http://localhost:<port>/trace/<buildId>" suffix on the BUILDING
	// line; distinct from DistBuildID since a non-distributed build can
	// still have a trace URL if an embedded webserver is wired in.
	BuildID string
}

type BuildFinishedPayload struct {
	Success bool
}

// RuleCountUpdatedPayload revises the denominator of the jobs-summary
// percentage mid-build, once unskippable rules have been recomputed — the
// original's BuildEvent.UnskippedRuleCountUpdated, dropped from spec.md's
// distillation but still load-bearing: a build that learns a skip late
// would otherwise keep reporting against a stale rule count.
type RuleCountUpdatedPayload struct {
	RuleCount int
}

type RuleStartedPayload struct {
	RuleName string
}

type RuleFinishedPayload struct {
	Status    RuleStatus
	CacheType CacheResultType
}

type StepStartedPayload struct {
	ShortDescription string
}

type StepFinishedPayload struct{}

// CacheUploadPayload describes one artifact's progress through the HTTP
// artifact cache upload pipeline (scheduled/started/finished share it).
type CacheUploadPayload struct {
	Succeeded bool
}

type TestRunStarted struct {
	TestSelectors []string
}

type TestRunFinished struct {
	Results []TestCaseResult
}

// TestCaseResult is one finished test case, formatted into the final
// report by testreport.Aggregator.
type TestCaseResult struct {
	TestCaseName string
	TestName     string
	Status       TestStatusType
	Message      string
	DurationMs   int64
}

type TestSummaryStartedPayload struct {
	TestName string
}

type TestSummaryFinishedPayload struct {
	TestCaseName string
	TestName     string
	Status       TestStatusType
	Message      string
}

type TestStatusMessageStartedPayload struct {
	Message string
}

type TestStatusMessageFinishedPayload struct {
	Message string
}

type NetworkBytesReceivedPayload struct {
	Bytes int64
}

// HTTPArtifactCacheEventPayload reports one artifact finishing its round
// trip through the HTTP artifact cache, incrementing NetworkStats'
// artifact_count independently of the raw byte counters fed by
// NetworkBytesReceivedPayload.
type HTTPArtifactCacheEventPayload struct{}

// ConsoleLogLevel mirrors the three levels the log-event queue supports.
type ConsoleLogLevel int

const (
	LevelInfo ConsoleLogLevel = iota
	LevelWarn
	LevelError
)

type ConsoleLogPayload struct {
	Level        ConsoleLogLevel
	Message      string
	AnsiPrebaked bool
}

// DistBuildStatusPayload is a full-replace snapshot: the latest received
// instance always supersedes the prior one, per spec.
type DistBuildStatusPayload struct {
	State     DistBuildState
	EtaMs     int64
	Message   string
	LogBook   []DistBuildLogEntry
}

// DistBuildLogEntry is one line of the distributed-build debug block,
// timestamped at the coordinator.
type DistBuildLogEntry struct {
	TimestampMs int64
	Name        string
}
