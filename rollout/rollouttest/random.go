package rollouttest

import (
	"golang.org/x/exp/rand"

	"polish/rollout"
)

// RandomTrajectory draws a synthetic trajectory of steps timesteps. Episode
// boundaries are sampled with probability doneProb per step; the final
// timestep is left non-terminal so the trajectory always carries an
// incomplete tail, matching a fixed-budget rollout cut mid-episode.
func RandomTrajectory(rng *rand.Rand, steps, obsDim, actDim int, doneProb float64) (*rollout.Buffer, []rollout.EnvState) {
	buf := &rollout.Buffer{}
	episodeLen := 0
	episodeReward := 0.0
	for t := 0; t < steps; t++ {
		obs := make([]float64, obsDim)
		act := make([]float64, actDim)
		for d := range obs {
			obs[d] = rng.NormFloat64()
		}
		for d := range act {
			act[d] = rng.NormFloat64()
		}
		reward := rng.NormFloat64()

		buf.States = append(buf.States, obs)
		buf.Actions = append(buf.Actions, act)
		buf.Values = append(buf.Values, rng.NormFloat64())
		buf.NegLogprobs = append(buf.NegLogprobs, rng.Float64())
		buf.PerStepRewards = append(buf.PerStepRewards, reward)
		buf.Returns = append(buf.Returns, rng.NormFloat64())

		episodeLen++
		episodeReward += reward

		done := t < steps-1 && rng.Float64() < doneProb
		buf.Dones = append(buf.Dones, done)
		if done {
			buf.PerEpisodeLengths = append(buf.PerEpisodeLengths, episodeLen)
			buf.PerEpisodeRewards = append(buf.PerEpisodeRewards, episodeReward)
			episodeLen = 0
			episodeReward = 0
		}
	}
	return buf, IndexEnvStates(steps)
}
