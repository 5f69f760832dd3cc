// Package rollouttest provides rollout.Source implementations for tests:
// a scripted source that replays canned trajectories and records every call,
// and generators for synthetic trajectory buffers.
package rollouttest

import (
	"context"
	"errors"
	"fmt"

	"polish/rollout"
)

// ScriptedSource replays pre-built trajectory buffers and records the calls
// made against it, so tests can assert on ordering, offsets and horizons.
type ScriptedSource struct {
	obsStats *rollout.RunningStats
	retStats *rollout.RunningStats

	buffer    rollout.Buffer
	envStates []rollout.EnvState

	// Trajectory and TrajectoryEnvStates script RunTrajectory.
	Trajectory          *rollout.Buffer
	TrajectoryEnvStates []rollout.EnvState

	// SearchFn scripts RunSearchTrajectory; it receives the state/action
	// pair from the last InitializeFrom call and the requested horizon.
	SearchFn func(state rollout.EnvState, action []float64, horizon int) *rollout.Buffer

	// RunErr and SearchErr, when set, fail the corresponding run call.
	RunErr    error
	SearchErr error

	Resets           int
	EstimatorUpdates int
	TestModes        []bool
	StatsRebinds     int
	InitStates       []rollout.EnvState
	InitActions      [][]float64
	Horizons         []int
}

var _ rollout.Source = (*ScriptedSource)(nil)

// NewScriptedSource returns a scripted source tracking obsDim-dimensional
// observation statistics and scalar return statistics.
func NewScriptedSource(obsDim int) *ScriptedSource {
	return &ScriptedSource{
		obsStats: rollout.NewRunningStats(obsDim),
		retStats: rollout.NewRunningStats(1),
	}
}

func (s *ScriptedSource) Reset(ctx context.Context) error {
	s.Resets++
	return nil
}

func (s *ScriptedSource) UpdateEstimator(testMode bool) error {
	s.EstimatorUpdates++
	s.TestModes = append(s.TestModes, testMode)
	return nil
}

func (s *ScriptedSource) InitializeEpisodeData() {
	s.buffer.Reset()
}

func (s *ScriptedSource) RunTrajectory(ctx context.Context, maxSteps int) error {
	if s.RunErr != nil {
		return s.RunErr
	}
	if s.Trajectory == nil {
		return errors.New("rollouttest: no scripted trajectory")
	}
	s.buffer = *s.Trajectory.Clone()
	s.envStates = append([]rollout.EnvState(nil), s.TrajectoryEnvStates...)
	return nil
}

func (s *ScriptedSource) RunSearchTrajectory(ctx context.Context, maxHorizon int) error {
	if s.SearchErr != nil {
		return s.SearchErr
	}
	if s.SearchFn == nil {
		return errors.New("rollouttest: no scripted search trajectory")
	}
	if len(s.InitStates) == 0 {
		return errors.New("rollouttest: search trajectory run before InitializeFrom")
	}
	s.Horizons = append(s.Horizons, maxHorizon)
	state := s.InitStates[len(s.InitStates)-1]
	action := s.InitActions[len(s.InitActions)-1]
	s.buffer = *s.SearchFn(state, action, maxHorizon).Clone()
	return nil
}

func (s *ScriptedSource) InitializeFrom(state rollout.EnvState, action []float64) error {
	s.InitStates = append(s.InitStates, state)
	s.InitActions = append(s.InitActions, append([]float64(nil), action...))
	return nil
}

func (s *ScriptedSource) Buffer() *rollout.Buffer {
	return &s.buffer
}

func (s *ScriptedSource) EnvStates() []rollout.EnvState {
	return s.envStates
}

func (s *ScriptedSource) ObsStats() *rollout.RunningStats {
	return s.obsStats
}

func (s *ScriptedSource) ReturnStats() *rollout.RunningStats {
	return s.retStats
}

func (s *ScriptedSource) SetStats(obs, ret *rollout.RunningStats) {
	s.obsStats = obs
	s.retStats = ret
	s.StatsRebinds++
}

// MarkedBuffer builds a valid buffer of steps timesteps whose every value
// derives from mark, so concatenation order is visible in assertions. The
// buffer ends mid-episode with no completed episodes.
func MarkedBuffer(steps, obsDim, actDim int, mark float64) *rollout.Buffer {
	buf := &rollout.Buffer{}
	for t := 0; t < steps; t++ {
		obs := make([]float64, obsDim)
		act := make([]float64, actDim)
		for d := range obs {
			obs[d] = mark + float64(t) + float64(d)/10
		}
		for d := range act {
			act[d] = -(mark + float64(t)) - float64(d)/10
		}
		buf.States = append(buf.States, obs)
		buf.Actions = append(buf.Actions, act)
		buf.Values = append(buf.Values, mark+float64(t)+0.1)
		buf.NegLogprobs = append(buf.NegLogprobs, mark+float64(t)+0.2)
		buf.PerStepRewards = append(buf.PerStepRewards, mark+float64(t)+0.3)
		buf.Returns = append(buf.Returns, mark+float64(t)+0.4)
		buf.Means = append(buf.Means, append([]float64(nil), act...))
		buf.Logstds = append(buf.Logstds, make([]float64, actDim))
		buf.Dones = append(buf.Dones, false)
	}
	return buf
}

// EpisodicBuffer builds a valid buffer whose episodes have the given
// lengths; if tail > 0 an incomplete episode of tail timesteps follows the
// completed ones. Values are filled from mark like MarkedBuffer.
func EpisodicBuffer(obsDim, actDim int, episodeLengths []int, tail int, mark float64) (*rollout.Buffer, error) {
	steps := tail
	for _, l := range episodeLengths {
		if l <= 0 {
			return nil, fmt.Errorf("rollouttest: non-positive episode length %d", l)
		}
		steps += l
	}
	buf := MarkedBuffer(steps, obsDim, actDim, mark)
	offset := 0
	for _, l := range episodeLengths {
		offset += l
		buf.Dones[offset-1] = true
		buf.PerEpisodeLengths = append(buf.PerEpisodeLengths, l)
		buf.PerEpisodeRewards = append(buf.PerEpisodeRewards, mark+float64(l))
	}
	return buf, nil
}

// IndexEnvStates returns n opaque env states carrying their own index,
// parallel to a buffer of n timesteps.
func IndexEnvStates(n int) []rollout.EnvState {
	states := make([]rollout.EnvState, n)
	for i := range states {
		states[i] = i
	}
	return states
}
