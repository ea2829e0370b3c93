package tasks

import (
	"time"

	"github.com/desertthunder/segx/internal/models"
)

// Timing and heuristic constants for the poll loop.
const (
	PollInterval    = 1000 * time.Millisecond
	CompletionPause = 1000 * time.Millisecond

	InitialProgress = 10
	ProgressStep    = 2
	ProgressCeiling = 90
)

// maxRunningProgress is the highest aggregate the heuristic reports while a job is still running.
const maxRunningProgress = ProgressCeiling - ProgressStep

// Estimate returns the synthetic estimate after cycle running status responses.
//
// Cycle 0 is the value set at submission. The aggregate grows by [ProgressStep] per cycle and never reaches [ProgressCeiling].
// Phases fill in order so their mean is exactly the aggregate.
func Estimate(cycle int) models.ProcessingEstimate {
	if cycle < 0 {
		cycle = 0
	}

	aggregate := maxRunningProgress
	if cycle < (maxRunningProgress-InitialProgress)/ProgressStep {
		aggregate = InitialProgress + ProgressStep*cycle
	}

	var est models.ProcessingEstimate
	remaining := aggregate * len(est.Phases)
	for i := range est.Phases {
		v := min(remaining, 100)
		est.Phases[i] = v
		remaining -= v
	}
	return est
}

// CompleteEstimate is the estimate at terminal success: every phase at 100.
func CompleteEstimate() models.ProcessingEstimate {
	return models.ProcessingEstimate{Phases: [5]int{100, 100, 100, 100, 100}}
}
