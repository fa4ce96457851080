package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/buildwatch/buildconsole/ansiterm"
	"github.com/buildwatch/buildconsole/anywork"
	"github.com/buildwatch/buildconsole/common"
	"github.com/buildwatch/buildconsole/config"
	"github.com/buildwatch/buildconsole/console"
	"github.com/buildwatch/buildconsole/events"
)

var (
	runWorkers     int
	runRuleCount   int
	runTestCount   int
	runDistributed bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic build/test session against the dashboard, for demo and manual testing.",
	Long: `run drives the dashboard engine with a generated event stream that
exercises every phase a real orchestrator would produce: parsing, the
action graph, a parallel build with cache hits/misses, an optional
distributed-build status feed, network downloads, and a test run — with
no real build system attached.`,
	RunE: runDemo,
}

func init() {
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", common.OptimalWorkerCount(), "Number of concurrent synthetic build workers.")
	runCmd.Flags().IntVarP(&runRuleCount, "rules", "r", 40, "Number of synthetic rules to build.")
	runCmd.Flags().IntVarP(&runTestCount, "tests", "t", 12, "Number of synthetic test cases to run.")
	runCmd.Flags().BoolVarP(&runDistributed, "distributed", "d", false, "Simulate a distributed build status feed.")
	rootCmd.AddCommand(runCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ansiterm.Detect()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	engine := console.New(console.Options{Config: cfg})
	engine.Start()
	defer engine.Close()

	emit := func(kind events.Kind, workerID int, key events.EventKey, payload interface{}) {
		engine.Dispatch(events.Event{
			TimestampMs: common.NowMillis(),
			WorkerID:    workerID,
			Key:         key,
			Kind:        kind,
			Payload:     payload,
		})
	}

	parseKey := events.EventKey(uuid.NewString())
	emit(events.KindParseStarted, 0, parseKey, events.PhaseStarted{})
	time.Sleep(300 * time.Millisecond)
	emit(events.KindParseFinished, 0, parseKey, events.PhaseFinished{})

	actionGraphKey := events.EventKey(uuid.NewString())
	emit(events.KindActionGraphStarted, 0, actionGraphKey, events.PhaseStarted{})
	emit(events.KindActionGraphFinished, 0, actionGraphKey, events.PhaseFinished{})

	buildID := uuid.NewString()
	emit(events.KindBuildStarted, 0, "", events.BuildStartedPayload{
		RuleCount:   runRuleCount,
		Distributed: runDistributed,
		DistBuildID: buildID,
		BuildID:     buildID,
	})

	if runDistributed {
		emit(events.KindDistBuildStatus, 0, "", events.DistBuildStatusPayload{State: events.DistBuildQueued})
	}

	pool := anywork.New(runWorkers)
	for i := 0; i < runRuleCount; i++ {
		ruleIndex := i
		pool.Submit(func() {
			runSyntheticRule(emit, ruleIndex)
		})
	}
	pool.Wait()
	pool.Close()

	if runDistributed {
		emit(events.KindDistBuildStatus, 0, "", events.DistBuildStatusPayload{
			State: events.DistBuildFinishedSuccessfully,
			LogBook: []events.DistBuildLogEntry{
				{TimestampMs: common.NowMillis(), Name: "coordinator finished"},
			},
		})
	}

	emit(events.KindBuildFinished, 0, "", events.BuildFinishedPayload{Success: true})

	runSyntheticTests(emit)

	return nil
}

func runSyntheticRule(emit func(events.Kind, int, events.EventKey, interface{}), index int) {
	workerID := index % runWorkers
	ruleKey := events.EventKey(fmt.Sprintf("rule-%d", index))

	emit(events.KindRuleStarted, workerID, ruleKey, events.RuleStartedPayload{RuleName: fmt.Sprintf("//demo:rule%d", index)})
	emit(events.KindStepStarted, workerID, ruleKey, events.StepStartedPayload{ShortDescription: fmt.Sprintf("BUILDING //demo:rule%d", index)})

	delay := time.Duration(50+rand.Intn(400)) * time.Millisecond
	time.Sleep(delay)

	emit(events.KindNetworkBytesReceived, workerID, "", events.NetworkBytesReceivedPayload{Bytes: int64(1024 + rand.Intn(1<<20))})
	emit(events.KindHTTPArtifactCacheEvent, workerID, "", events.HTTPArtifactCacheEventPayload{})

	emit(events.KindStepFinished, workerID, ruleKey, events.StepFinishedPayload{})
	emit(events.KindRuleFinished, workerID, ruleKey, events.RuleFinishedPayload{
		Status:    events.RuleSuccess,
		CacheType: randomCacheResult(),
	})
}

func randomCacheResult() events.CacheResultType {
	switch rand.Intn(4) {
	case 0:
		return events.CacheMiss
	case 1:
		return events.CacheHit
	case 2:
		return events.CacheLocalKeyUnchangedHit
	default:
		return events.CacheIgnored
	}
}

func runSyntheticTests(emit func(events.Kind, int, events.EventKey, interface{})) {
	emit(events.KindTestRunStarted, 0, "", events.TestRunStarted{TestSelectors: []string{"//demo:all"}})

	results := make([]events.TestCaseResult, 0, runTestCount)
	for i := 0; i < runTestCount; i++ {
		workerID := i % runWorkers
		caseName := fmt.Sprintf("DemoTest%d", i)
		emit(events.KindTestSummaryStarted, workerID, "", events.TestSummaryStartedPayload{TestName: caseName})
		time.Sleep(time.Duration(20+rand.Intn(150)) * time.Millisecond)

		status := events.TestPass
		switch rand.Intn(10) {
		case 0:
			status = events.TestFail
		case 1:
			status = events.TestSkip
		}

		emit(events.KindTestSummaryFinished, workerID, "", events.TestSummaryFinishedPayload{
			TestCaseName: "demo_suite",
			TestName:     caseName,
			Status:       status,
		})
		results = append(results, events.TestCaseResult{
			TestCaseName: "demo_suite",
			TestName:     caseName,
			Status:       status,
			DurationMs:   int64(20 + rand.Intn(150)),
		})
	}

	emit(events.KindTestRunFinished, 0, "", events.TestRunFinished{Results: results})
}
