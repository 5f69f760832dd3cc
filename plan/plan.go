// Package plan derives search-rollout spans from a primary rollout's episode
// record: each completed episode becomes one segment, a trailing incomplete
// episode becomes a remainder segment, and segments are further split into
// fixed-unit sub-spans from which individual search rollouts launch.
package plan

import (
	"errors"
	"fmt"
)

// ErrSegmentMismatch reports planned segments that do not cover the step
// budget exactly. It indicates broken episode bookkeeping in the primary
// rollout; search rollouts must not launch on top of it.
var ErrSegmentMismatch = errors.New("plan: segments do not sum to the step budget")

// Segments computes the ordered segment lengths for a primary rollout.
// dones is the per-step terminal flags, episodeLengths the lengths of
// episodes completed within the rollout, and maxSteps the step budget.
func Segments(dones []bool, episodeLengths []int, maxSteps int) ([]int, error) {
	if len(dones) == 0 {
		return nil, errors.New("plan: empty rollout")
	}
	if maxSteps <= 0 {
		return nil, fmt.Errorf("plan: non-positive step budget %d", maxSteps)
	}
	completed := 0
	for i, length := range episodeLengths {
		if length <= 0 {
			return nil, fmt.Errorf("plan: episode %d has non-positive length %d", i, length)
		}
		completed += length
	}
	if completed > maxSteps {
		return nil, fmt.Errorf("plan: episode lengths sum to %d, exceeding the %d-step budget", completed, maxSteps)
	}

	if dones[len(dones)-1] {
		// Every timestep belongs to a completed episode.
		segments := make([]int, len(episodeLengths))
		copy(segments, episodeLengths)
		return segments, nil
	}
	if len(episodeLengths) > 0 {
		// Completed episodes plus one incomplete tail.
		segments := make([]int, len(episodeLengths), len(episodeLengths)+1)
		copy(segments, episodeLengths)
		return append(segments, maxSteps-completed), nil
	}
	// The rollout never finished an episode.
	return []int{maxSteps}, nil
}

// VerifySegments fails fast when segments do not cover maxSteps exactly.
func VerifySegments(segments []int, maxSteps int) error {
	total := 0
	for _, segment := range segments {
		total += segment
	}
	if total != maxSteps {
		return fmt.Errorf("%w: got %d, want %d", ErrSegmentMismatch, total, maxSteps)
	}
	return nil
}

// SubSpans splits a segment of the given length into ceil(length/unit)
// spans of unit timesteps, with the final span taking the remainder. An
// exact multiple leaves the final span at the full unit length.
func SubSpans(length, unit int) ([]int, error) {
	if length <= 0 {
		return nil, fmt.Errorf("plan: non-positive segment length %d", length)
	}
	if unit <= 0 {
		return nil, fmt.Errorf("plan: non-positive sub-span unit %d", unit)
	}
	count := (length + unit - 1) / unit
	spans := make([]int, count)
	for i := 0; i < count-1; i++ {
		spans[i] = unit
	}
	spans[count-1] = length - (count-1)*unit
	return spans, nil
}
