// Package progressest supplies the optional fractional-progress
// collaborator the frame composer consults for the parse, project-gen, and
// build phase lines. The engine always has a working estimator: a
// NullEstimator when no collaborator is wired in. DistBuildEstimator computes
// distributed-build progress only when a caller supplies it as the
// estimator; the engine does not construct one for distributed builds.
package progressest

import "github.com/buildwatch/buildconsole/events"

// Estimator supplies fractional progress in [0,1] for the three phases the
// frame composer can optionally annotate with a percentage.
type Estimator interface {
	ApproximateBuildProgress() (float64, bool)
	ProcessingBuckFilesProgress() (float64, bool)
	GeneratingProjectFilesProgress() (float64, bool)
}

// NullEstimator always reports "no estimate available" — the default when
// no progress collaborator has been wired in.
type NullEstimator struct{}

func (NullEstimator) ApproximateBuildProgress() (float64, bool)        { return 0, false }
func (NullEstimator) ProcessingBuckFilesProgress() (float64, bool)     { return 0, false }
func (NullEstimator) GeneratingProjectFilesProgress() (float64, bool)  { return 0, false }

// DistBuildEstimator computes build progress locally from the latest
// DistBuildStatus snapshot as elapsed/(elapsed+eta); parse and project-gen
// progress are not derivable from dist-build status, so those two report
// "no estimate" the same as NullEstimator.
type DistBuildEstimator struct {
	Latest    func() (events.DistBuildStatusPayload, bool)
	StartedAt func() (int64, bool)
	NowMs     func() int64
}

func (e DistBuildEstimator) ApproximateBuildProgress() (float64, bool) {
	status, ok := e.Latest()
	if !ok || status.EtaMs <= 0 {
		return 0, false
	}
	startedAt, ok := e.StartedAt()
	if !ok {
		return 0, false
	}
	elapsed := float64(e.NowMs() - startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	denom := elapsed + float64(status.EtaMs)
	if denom <= 0 {
		return 0, false
	}
	return elapsed / denom, true
}

func (DistBuildEstimator) ProcessingBuckFilesProgress() (float64, bool)    { return 0, false }
func (DistBuildEstimator) GeneratingProjectFilesProgress() (float64, bool) { return 0, false }
