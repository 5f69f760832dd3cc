package collect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"polish/collect"
	"polish/metrics"
	"polish/rollout"
	"polish/rollout/rollouttest"
)

// newSources builds a primary source scripted with a 10-step trajectory
// (episodes of 4 and 3, incomplete tail of 3) and a search source whose
// rollouts are marked by the branch offset, so merge order is assertable.
func newSources(t *testing.T) (*rollouttest.ScriptedSource, *rollouttest.ScriptedSource) {
	t.Helper()

	primary := rollouttest.NewScriptedSource(2)
	trajectory, err := rollouttest.EpisodicBuffer(2, 1, []int{4, 3}, 3, 0)
	require.NoError(t, err)
	primary.Trajectory = trajectory
	primary.TrajectoryEnvStates = rollouttest.IndexEnvStates(10)

	search := rollouttest.NewScriptedSource(2)
	search.SearchFn = func(state rollout.EnvState, action []float64, horizon int) *rollout.Buffer {
		offset := state.(int)
		return rollouttest.MarkedBuffer(horizon, 2, 1, float64(offset)*100)
	}
	return primary, search
}

func searchWindow(numIterations int) collect.Option {
	return collect.WithSearchWindow(0, 1, numIterations)
}

func TestNewCoordinator(t *testing.T) {
	t.Run("requires both sources", func(t *testing.T) {
		primary, _ := newSources(t)
		_, err := collect.NewCoordinator(primary, nil)
		require.Error(t, err)
	})

	t.Run("rejects a segment unit below one", func(t *testing.T) {
		primary, search := newSources(t)
		_, err := collect.NewCoordinator(primary, search, collect.WithSegmentUnit(0))
		require.Error(t, err)
	})

	t.Run("rejects an inverted search window", func(t *testing.T) {
		primary, search := newSources(t)
		_, err := collect.NewCoordinator(primary, search,
			collect.WithSearchWindow(0.9, 0.1, 100))
		require.Error(t, err)
	})

	t.Run("restores normalization statistics from a checkpoint", func(t *testing.T) {
		dir := t.TempDir()
		ckpt := &rollout.NormCheckpoint{
			Obs: rollout.StatsRecord{Mean: []float64{1, 2}, Var: []float64{3, 4}, Count: 50},
			Ret: rollout.StatsRecord{Mean: []float64{5}, Var: []float64{6}, Count: 25},
		}
		require.NoError(t, ckpt.Save(dir))

		primary, search := newSources(t)
		_, err := collect.NewCoordinator(primary, search,
			collect.WithCheckpointDir(dir), collect.WithRMSRestore(true))
		require.NoError(t, err)

		require.Equal(t, []float64{1, 2}, primary.ObsStats().Mean)
		require.Equal(t, 25.0, primary.ReturnStats().Count)
	})

	t.Run("statistics restore without a checkpoint dir fails", func(t *testing.T) {
		primary, search := newSources(t)
		_, err := collect.NewCoordinator(primary, search, collect.WithRMSRestore(true))
		require.Error(t, err)
	})
}

func TestPlayPolicyOnly(t *testing.T) {
	t.Run("mirrors the primary rollout into both datasets", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search) // search disabled
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)

		require.False(t, c.SearchMode())
		require.Equal(t, 1, c.SamplingStep())
		require.Equal(t, 10, c.Dataset().Len())
		require.Equal(t, 10, c.PolicyData().Len())
		require.Equal(t, primary.Trajectory.States, c.Dataset().States)
		require.Equal(t, primary.Trajectory.States, c.PolicyData().States)
		require.Equal(t, 1, primary.Resets)
		require.Equal(t, 1, primary.EstimatorUpdates)
		require.Zero(t, search.EstimatorUpdates, "Search source stays idle on policy steps")
		require.Zero(t, search.StatsRebinds, "No hand-off outside the eligibility window")
	})

	t.Run("rebuilds the datasets from scratch each step", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search)
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)
		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)

		require.Equal(t, 10, c.Dataset().Len(), "No cross-step accumulation")
		require.Equal(t, 2, c.SamplingStep())
	})
}

func TestPlaySearch(t *testing.T) {
	t.Run("launches one rollout per sub-span at equally spaced offsets", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10),
			collect.WithSegmentUnit(2), collect.WithMetrics(metrics.NewCollector()))
		require.NoError(t, err)

		metric, err := c.Play(context.Background(), 10, false)
		require.NoError(t, err)

		// Segments [4,3,3] with unit 2 -> sub-spans 2,2 | 2,1 | 2,1.
		require.Equal(t, []rollout.EnvState{0, 2, 4, 6, 7, 9}, search.InitStates)
		require.Equal(t, []int{2, 2, 2, 1, 2, 1}, search.Horizons)
		require.Equal(t, 1, search.EstimatorUpdates)

		require.True(t, c.SearchMode())
		require.Equal(t, 10, c.Dataset().Len())
		require.True(t, metric.SearchMode)
		require.Equal(t, 3, metric.Segments)
		require.Equal(t, 6, metric.SearchRollouts)
		require.Equal(t, 10, metric.Timesteps)
	})

	t.Run("concatenates sub-span buffers in temporal order", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10),
			collect.WithSegmentUnit(2))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)

		d := c.Dataset()
		// Each sub-span rollout is marked with offset*100; dataset rows
		// 0,2,4,6,7,9 are the first rows of successive rollouts.
		require.Equal(t, 0.0, d.States[0][0])
		require.Equal(t, 200.0, d.States[2][0])
		require.Equal(t, 400.0, d.States[4][0])
		require.Equal(t, 600.0, d.States[6][0])
		require.Equal(t, 700.0, d.States[7][0])
		require.Equal(t, 900.0, d.States[9][0])
	})

	t.Run("seeds each rollout with the primary action at its offset", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10),
			collect.WithSegmentUnit(2))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)

		require.Len(t, search.InitActions, 6)
		for i, state := range search.InitStates {
			offset := state.(int)
			require.Equal(t, primary.Trajectory.Actions[offset], search.InitActions[i])
		}
	})

	t.Run("policy dataset still mirrors the primary rollout", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)

		require.Equal(t, primary.Trajectory.States, c.PolicyData().States)
	})

	t.Run("hands off statistics exactly once", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)
		_, err = c.Play(context.Background(), 10, false)
		require.NoError(t, err)

		require.Equal(t, 1, search.StatsRebinds, "Guard flips exactly once")
		require.Same(t, primary.ObsStats(), search.ObsStats(),
			"Hand-off shares the handle instead of copying")
		require.Same(t, primary.ReturnStats(), search.ReturnStats())
	})

	t.Run("fails fast when the primary rollout is short of the budget", func(t *testing.T) {
		primary, search := newSources(t)
		short, err := rollouttest.EpisodicBuffer(2, 1, nil, 9, 0)
		require.NoError(t, err)
		primary.Trajectory = short
		primary.TrajectoryEnvStates = rollouttest.IndexEnvStates(9)

		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.Error(t, err)
		require.Zero(t, c.SamplingStep(), "A failed step does not advance the counter")
	})
}

func TestPlayFrequencyGate(t *testing.T) {
	newGated := func(t *testing.T, reuse bool) (*collect.Coordinator, *rollouttest.ScriptedSource, *rollouttest.ScriptedSource) {
		t.Helper()
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10),
			collect.WithCollectFreq(2), collect.WithSegmentUnit(2),
			collect.WithSearchBatchReuse(reuse))
		require.NoError(t, err)
		return c, primary, search
	}

	t.Run("gated-off steps refresh the current-step dataset by default", func(t *testing.T) {
		c, primary, search := newGated(t, false)

		_, err := c.Play(context.Background(), 10, false) // step 0: search
		require.NoError(t, err)
		rolloutsAfterFirst := len(search.Horizons)

		_, err = c.Play(context.Background(), 10, false) // step 1: gated off
		require.NoError(t, err)

		require.False(t, c.SearchMode())
		require.Equal(t, rolloutsAfterFirst, len(search.Horizons),
			"No search rollouts run on a gated-off step")
		require.Equal(t, primary.Trajectory.States, c.Dataset().States,
			"Dataset refreshed from the primary rollout")
		require.Equal(t, primary.Trajectory.States, c.PolicyData().States)
	})

	t.Run("gated-off steps keep the last search batch when reuse is on", func(t *testing.T) {
		c, primary, _ := newGated(t, true)

		_, err := c.Play(context.Background(), 10, false) // step 0: search
		require.NoError(t, err)
		searchStates := append([][]float64(nil), c.Dataset().States...)

		_, err = c.Play(context.Background(), 10, false) // step 1: gated off
		require.NoError(t, err)

		require.Equal(t, searchStates, c.Dataset().States,
			"Dataset still holds step 0's search batch")
		require.Equal(t, primary.Trajectory.States, c.PolicyData().States,
			"Policy dataset refreshes every step regardless")
	})

	t.Run("search resumes on the next on-phase step", func(t *testing.T) {
		c, _, search := newGated(t, false)

		for step := 0; step < 4; step++ {
			_, err := c.Play(context.Background(), 10, false)
			require.NoError(t, err)
		}

		// Steps 0 and 2 are on-phase: 6 sub-span rollouts each.
		require.Equal(t, 12, len(search.Horizons))
	})
}

func TestPlayFailures(t *testing.T) {
	t.Run("primary rollout failure abandons the step", func(t *testing.T) {
		primary, search := newSources(t)
		primary.RunErr = errors.New("simulator crashed")
		c, err := collect.NewCoordinator(primary, search)
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.ErrorContains(t, err, "simulator crashed")
		require.Zero(t, c.SamplingStep())
	})

	t.Run("search rollout failure abandons the step", func(t *testing.T) {
		primary, search := newSources(t)
		search.SearchErr = errors.New("estimator unavailable")
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.ErrorContains(t, err, "estimator unavailable")
		require.Zero(t, c.SamplingStep())
	})

	t.Run("rejects a step budget below one", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search)
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 0, false)
		require.Error(t, err)
	})

	t.Run("inconsistent primary bookkeeping is not silently truncated", func(t *testing.T) {
		primary, search := newSources(t)
		// Claim episodes that cannot fit the trajectory.
		primary.Trajectory.PerEpisodeLengths = []int{4, 8}
		primary.Trajectory.PerEpisodeRewards = []float64{1, 1}

		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, false)
		require.Error(t, err)
	})
}

func TestPlayTestMode(t *testing.T) {
	t.Run("test mode reaches both estimator refreshes", func(t *testing.T) {
		primary, search := newSources(t)
		c, err := collect.NewCoordinator(primary, search,
			collect.WithSearchEnabled(true), searchWindow(10))
		require.NoError(t, err)

		_, err = c.Play(context.Background(), 10, true)
		require.NoError(t, err)

		require.Equal(t, []bool{true}, primary.TestModes)
		require.Equal(t, []bool{true}, search.TestModes)
	})
}
