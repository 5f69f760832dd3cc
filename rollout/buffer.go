package rollout

import (
	"errors"
	"fmt"
)

// Buffer holds one rollout's trajectory data. Every per-step attribute has
// one entry per timestep; PerEpisodeRewards and PerEpisodeLengths have one
// entry per episode completed inside the rollout.
//
// Means and Logstds carry the policy distribution parameters and are only
// filled by search-augmented rollouts; plain rollouts leave them empty.
type Buffer struct {
	States         [][]float64
	Actions        [][]float64
	Values         []float64
	NegLogprobs    []float64
	Means          [][]float64
	Logstds        [][]float64
	PerStepRewards []float64
	Returns        []float64
	Dones          []bool

	PerEpisodeRewards []float64
	PerEpisodeLengths []int
}

var ErrRaggedBuffer = errors.New("rollout: per-step attributes have unequal lengths")

// Reset clears all attributes.
func (b *Buffer) Reset() {
	*b = Buffer{}
}

// Len returns the number of timesteps in the buffer.
func (b *Buffer) Len() int {
	return len(b.Actions)
}

// Episodes returns the number of episodes completed inside the buffer.
func (b *Buffer) Episodes() int {
	return len(b.PerEpisodeLengths)
}

// Validate checks the buffer's internal consistency: equal per-step lengths,
// per-episode bookkeeping, and the invariant that the episode lengths sum to
// the timestep count exactly when the final timestep is terminal.
func (b *Buffer) Validate() error {
	n := len(b.Actions)
	perStep := []struct {
		name string
		got  int
	}{
		{"states", len(b.States)},
		{"values", len(b.Values)},
		{"neg_logprobs", len(b.NegLogprobs)},
		{"per_step_rewards", len(b.PerStepRewards)},
		{"returns", len(b.Returns)},
		{"dones", len(b.Dones)},
	}
	for _, attr := range perStep {
		if attr.got != n {
			return fmt.Errorf("%w: %s has %d entries, actions has %d",
				ErrRaggedBuffer, attr.name, attr.got, n)
		}
	}
	if len(b.Means) != 0 && len(b.Means) != n {
		return fmt.Errorf("%w: means has %d entries, actions has %d",
			ErrRaggedBuffer, len(b.Means), n)
	}
	if len(b.Logstds) != len(b.Means) {
		return fmt.Errorf("%w: logstds has %d entries, means has %d",
			ErrRaggedBuffer, len(b.Logstds), len(b.Means))
	}

	if len(b.PerEpisodeRewards) != len(b.PerEpisodeLengths) {
		return fmt.Errorf("rollout: %d episode rewards for %d episode lengths",
			len(b.PerEpisodeRewards), len(b.PerEpisodeLengths))
	}
	total := 0
	for i, length := range b.PerEpisodeLengths {
		if length <= 0 {
			return fmt.Errorf("rollout: episode %d has non-positive length %d", i, length)
		}
		total += length
	}
	if total > n {
		return fmt.Errorf("rollout: episode lengths sum to %d but the buffer has %d timesteps", total, n)
	}
	if n > 0 {
		if b.Dones[n-1] && total != n {
			return fmt.Errorf("rollout: final timestep is terminal but episode lengths sum to %d of %d timesteps", total, n)
		}
		if !b.Dones[n-1] && total == n && total > 0 {
			return fmt.Errorf("rollout: episode lengths cover all %d timesteps but the final timestep is not terminal", n)
		}
	}
	return nil
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		States:            cloneMatrix(b.States),
		Actions:           cloneMatrix(b.Actions),
		Values:            cloneSlice(b.Values),
		NegLogprobs:       cloneSlice(b.NegLogprobs),
		Means:             cloneMatrix(b.Means),
		Logstds:           cloneMatrix(b.Logstds),
		PerStepRewards:    cloneSlice(b.PerStepRewards),
		Returns:           cloneSlice(b.Returns),
		Dones:             cloneSlice(b.Dones),
		PerEpisodeRewards: cloneSlice(b.PerEpisodeRewards),
		PerEpisodeLengths: cloneSlice(b.PerEpisodeLengths),
	}
}

func cloneSlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	dst := make([]T, len(src))
	copy(dst, src)
	return dst
}

func cloneMatrix[T any](src [][]T) [][]T {
	if src == nil {
		return nil
	}
	dst := make([][]T, len(src))
	for i, row := range src {
		dst[i] = cloneSlice(row)
	}
	return dst
}
