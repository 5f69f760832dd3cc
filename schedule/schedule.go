// Package schedule decides, per sampling step, whether search-augmented
// collection is eligible and whether it actually runs. Eligibility is a
// window over sampling steps; within the window a collection frequency gates
// the steps that pay the cost of running search.
package schedule

import (
	"fmt"
	"math"
)

// Schedule is the search scheduling policy. The zero value is a disabled
// schedule: never eligible, never active.
type Schedule struct {
	enabled     bool
	startStep   int
	endStep     int
	collectFreq int
}

// New builds a schedule whose window is [round(startFrac×numIterations),
// round(endFrac×numIterations)) and whose frequency gate fires every
// collectFreq eligible steps.
func New(enabled bool, startFrac, endFrac float64, numIterations, collectFreq int) (Schedule, error) {
	if startFrac < 0 || startFrac > 1 {
		return Schedule{}, fmt.Errorf("schedule: start fraction %v outside [0, 1]", startFrac)
	}
	if endFrac < 0 || endFrac > 1 {
		return Schedule{}, fmt.Errorf("schedule: end fraction %v outside [0, 1]", endFrac)
	}
	if startFrac >= endFrac {
		return Schedule{}, fmt.Errorf("schedule: start fraction %v is not below end fraction %v", startFrac, endFrac)
	}
	if numIterations <= 0 {
		return Schedule{}, fmt.Errorf("schedule: non-positive iteration count %d", numIterations)
	}
	if collectFreq < 1 {
		return Schedule{}, fmt.Errorf("schedule: collection frequency %d below 1", collectFreq)
	}
	return Schedule{
		enabled:     enabled,
		startStep:   int(math.Round(startFrac * float64(numIterations))),
		endStep:     int(math.Round(endFrac * float64(numIterations))),
		collectFreq: collectFreq,
	}, nil
}

// Enabled reports whether search collection is enabled at all.
func (s Schedule) Enabled() bool {
	return s.enabled
}

// StartStep returns the first eligible sampling step.
func (s Schedule) StartStep() int {
	return s.startStep
}

// EndStep returns the first sampling step past the eligibility window.
func (s Schedule) EndStep() int {
	return s.endStep
}

// Eligible reports whether the sampling step falls inside the search
// training window. Eligibility alone decides which dataset receives data
// and triggers the one-time statistics hand-off; it does not by itself run
// search rollouts.
func (s Schedule) Eligible(step int) bool {
	return s.enabled && step >= s.startStep && step < s.endStep
}

// ActiveAt reports whether search rollouts actually run on this sampling
// step: eligible and on-phase with the collection frequency.
func (s Schedule) ActiveAt(step int) bool {
	return s.Eligible(step) && (step-s.startStep)%s.collectFreq == 0
}
