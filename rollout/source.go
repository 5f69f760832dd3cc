package rollout

import "context"

// EnvState is an opaque simulator snapshot captured at a single timestep.
// Sources must accept back any value they previously exposed via EnvStates.
type EnvState = any

// Source produces trajectories by stepping an environment with actions drawn
// from a policy/value estimator. The coordinator owns two of them: a primary
// source for plain rollouts and a search source for search-augmented
// rollouts branched off the primary trajectory.
type Source interface {
	// Reset reinitializes the underlying simulator to a fresh episode.
	Reset(ctx context.Context) error

	// UpdateEstimator refreshes the estimator snapshot used for action
	// selection. In test mode the source skips training-only refresh work.
	UpdateEstimator(testMode bool) error

	// InitializeEpisodeData clears the source's trajectory buffer.
	InitializeEpisodeData()

	// RunTrajectory runs a plain rollout for up to maxSteps timesteps,
	// filling the buffer and recording episode boundaries.
	RunTrajectory(ctx context.Context, maxSteps int) error

	// RunSearchTrajectory runs a search-augmented rollout for up to
	// maxHorizon timesteps from the state set by InitializeFrom.
	RunSearchTrajectory(ctx context.Context, maxHorizon int) error

	// InitializeFrom seeds the simulator at a previously visited
	// state/action pair so a search rollout can branch off it.
	InitializeFrom(state EnvState, action []float64) error

	// Buffer returns the source's trajectory buffer for the last run.
	Buffer() *Buffer

	// EnvStates returns per-timestep simulator snapshots parallel to
	// Buffer().Actions.
	EnvStates() []EnvState

	// ObsStats and ReturnStats expose the source's running normalization
	// statistics. SetStats rebinds them to shared handles; after a rebind
	// both holders see each other's updates.
	ObsStats() *RunningStats
	ReturnStats() *RunningStats
	SetStats(obs, ret *RunningStats)
}
