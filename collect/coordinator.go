// Package collect coordinates trajectory collection for a trainer that
// alternates plain policy rollouts with search-augmented rollouts and merges
// both into uniformly typed batches.
package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"polish/metrics"
	"polish/plan"
	"polish/rollout"
	"polish/schedule"
)

type Option func(c *Coordinator)

// WithSegmentUnit sets the sub-span unit length: one search rollout launches
// per unit-length slice of each segment.
func WithSegmentUnit(unit int) Option {
	return func(c *Coordinator) {
		c.segmentUnit = unit
	}
}

// WithSearchEnabled turns search-augmented collection on or off.
func WithSearchEnabled(enabled bool) Option {
	return func(c *Coordinator) {
		c.searchEnabled = enabled
	}
}

// WithSearchWindow sets the eligibility window as fractions of the total
// iteration count.
func WithSearchWindow(startFrac, endFrac float64, numIterations int) Option {
	return func(c *Coordinator) {
		c.startFrac = startFrac
		c.endFrac = endFrac
		c.numIterations = numIterations
	}
}

// WithCollectFreq makes search rollouts run every freq eligible steps
// instead of every eligible step.
func WithCollectFreq(freq int) Option {
	return func(c *Coordinator) {
		c.collectFreq = freq
	}
}

// WithSearchBatchReuse keeps the current-step dataset untouched on eligible
// steps the frequency gate skips, so consumers see the last search batch
// again. The default refreshes it from the primary rollout instead.
func WithSearchBatchReuse(reuse bool) Option {
	return func(c *Coordinator) {
		c.reuseSearchBatch = reuse
	}
}

// WithCheckpointDir sets the directory persisted state is read from.
func WithCheckpointDir(dir string) Option {
	return func(c *Coordinator) {
		c.checkpointDir = dir
	}
}

// WithRMSRestore loads the normalization checkpoint from the checkpoint
// directory at construction and injects it into the primary source.
func WithRMSRestore(restore bool) Option {
	return func(c *Coordinator) {
		c.restoreRMS = restore
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(c *Coordinator) {
		if collector != nil {
			c.metrics = collector
		}
	}
}

// Coordinator runs one sampling step at a time: a primary rollout, an
// optional set of search rollouts branched off it, and the merge of both
// into the current-step and policy datasets. It is not safe for concurrent
// use; parallel collection takes one Coordinator per worker.
type Coordinator struct {
	primary rollout.Source
	search  rollout.Source

	segmentUnit      int
	reuseSearchBatch bool
	checkpointDir    string
	restoreRMS       bool

	searchEnabled bool
	startFrac     float64
	endFrac       float64
	numIterations int
	collectFreq   int
	sched         schedule.Schedule

	samplingStep int
	firstSearch  bool
	searchMode   bool

	dataset Dataset
	policy  PolicyDataset

	metrics metrics.Collector
}

func NewCoordinator(primary, search rollout.Source, options ...Option) (*Coordinator, error) {
	if primary == nil || search == nil {
		return nil, errors.New("collect: both a primary and a search source are required")
	}
	c := &Coordinator{ // Default values
		primary:       primary,
		search:        search,
		segmentUnit:   1,
		startFrac:     0.1,
		endFrac:       0.9,
		numIterations: 1,
		collectFreq:   1,
		firstSearch:   true,
		metrics:       metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(c)
	}

	if c.segmentUnit < 1 {
		return nil, fmt.Errorf("collect: segment unit %d below 1", c.segmentUnit)
	}
	sched, err := schedule.New(c.searchEnabled, c.startFrac, c.endFrac, c.numIterations, c.collectFreq)
	if err != nil {
		return nil, err
	}
	c.sched = sched

	if c.restoreRMS {
		if c.checkpointDir == "" {
			return nil, errors.New("collect: statistics restore requires a checkpoint dir")
		}
		ckpt, err := rollout.LoadNormCheckpoint(c.checkpointDir)
		if err != nil {
			return nil, err
		}
		if err := ckpt.Apply(primary); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SamplingStep returns the number of completed Play calls.
func (c *Coordinator) SamplingStep() int {
	return c.samplingStep
}

// SearchMode reports whether the current-step dataset holds search data.
func (c *Coordinator) SearchMode() bool {
	return c.searchMode
}

// Schedule returns the search scheduling policy in effect.
func (c *Coordinator) Schedule() schedule.Schedule {
	return c.sched
}

// Dataset returns the current-step dataset. It is rebuilt every sampling
// step and owned by the coordinator.
func (c *Coordinator) Dataset() *Dataset {
	return &c.dataset
}

// PolicyData returns the policy dataset, refreshed from the primary rollout
// every sampling step.
func (c *Coordinator) PolicyData() *PolicyDataset {
	return &c.policy
}

// Play runs one sampling step with the given step budget. Collaborator
// failures propagate without retry: the step is abandoned, the sampling
// counter does not advance, and the datasets are left inconsistent; callers
// start a fresh step or stop.
func (c *Coordinator) Play(ctx context.Context, maxSteps int, testMode bool) (metrics.StepMetric, error) {
	if maxSteps < 1 {
		return metrics.StepMetric{}, fmt.Errorf("collect: step budget %d below 1", maxSteps)
	}
	c.metrics.Start(c.samplingStep)
	log.Info().Msgf("sampling step: %d", c.samplingStep)

	if err := c.primary.UpdateEstimator(testMode); err != nil {
		return metrics.StepMetric{}, fmt.Errorf("update primary estimator: %w", err)
	}
	if err := c.primary.Reset(ctx); err != nil {
		return metrics.StepMetric{}, fmt.Errorf("reset primary source: %w", err)
	}
	c.primary.InitializeEpisodeData()
	if err := c.primary.RunTrajectory(ctx, maxSteps); err != nil {
		return metrics.StepMetric{}, fmt.Errorf("run primary trajectory: %w", err)
	}
	primary := c.primary.Buffer()
	if err := primary.Validate(); err != nil {
		return metrics.StepMetric{}, fmt.Errorf("primary rollout: %w", err)
	}

	if !c.sched.Eligible(c.samplingStep) {
		log.Info().Msg("policy sampling")
		c.searchMode = false
		c.dataset.Reset()
		c.policy.Reset()
		if err := c.dataset.CopyPrimary(primary); err != nil {
			return metrics.StepMetric{}, err
		}
		if err := c.policy.CopyPrimary(primary); err != nil {
			return metrics.StepMetric{}, err
		}
	} else {
		if c.firstSearch {
			// Rebind, not copy: from here on both sources update the
			// same statistics handles.
			c.search.SetStats(c.primary.ObsStats(), c.primary.ReturnStats())
			c.firstSearch = false
		}

		if c.sched.ActiveAt(c.samplingStep) {
			log.Info().Msg("search sampling")
			c.searchMode = true
			c.metrics.SetSearchMode(true)
			c.dataset.Reset()
			c.policy.Reset()
			if err := c.runSearchRollouts(ctx, primary, maxSteps, testMode); err != nil {
				return metrics.StepMetric{}, err
			}
			if err := c.policy.CopyPrimary(primary); err != nil {
				return metrics.StepMetric{}, err
			}
		} else {
			// Eligible but gated off by the collection frequency: the
			// policy dataset still refreshes every step.
			c.searchMode = false
			if !c.reuseSearchBatch {
				c.dataset.Reset()
				if err := c.dataset.CopyPrimary(primary); err != nil {
					return metrics.StepMetric{}, err
				}
			}
			c.policy.Reset()
			if err := c.policy.CopyPrimary(primary); err != nil {
				return metrics.StepMetric{}, err
			}
		}
	}

	c.metrics.AddTimesteps(c.dataset.Len())
	metric := c.metrics.Complete()
	c.samplingStep++
	return metric, nil
}

func (c *Coordinator) runSearchRollouts(ctx context.Context, primary *rollout.Buffer, maxSteps int, testMode bool) error {
	if primary.Len() != maxSteps {
		return fmt.Errorf("collect: primary rollout has %d timesteps, want the full %d-step budget",
			primary.Len(), maxSteps)
	}
	envStates := c.primary.EnvStates()
	if len(envStates) != primary.Len() {
		return fmt.Errorf("collect: %d env states for %d timesteps", len(envStates), primary.Len())
	}
	if err := c.search.UpdateEstimator(testMode); err != nil {
		return fmt.Errorf("update search estimator: %w", err)
	}

	segments, err := plan.Segments(primary.Dones, primary.PerEpisodeLengths, maxSteps)
	if err != nil {
		return err
	}
	if err := plan.VerifySegments(segments, maxSteps); err != nil {
		return err
	}
	c.metrics.SetSegments(len(segments))

	base := 0
	for _, segment := range segments {
		spans, err := plan.SubSpans(segment, c.segmentUnit)
		if err != nil {
			return err
		}
		// One search rollout per sub-span, branched off the primary
		// trajectory at equally spaced offsets.
		for i, span := range spans {
			offset := base + i*c.segmentUnit
			if err := c.search.InitializeFrom(envStates[offset], primary.Actions[offset]); err != nil {
				return fmt.Errorf("initialize search source at offset %d: %w", offset, err)
			}
			c.search.InitializeEpisodeData()
			if err := c.search.RunSearchTrajectory(ctx, span); err != nil {
				return fmt.Errorf("run search trajectory at offset %d: %w", offset, err)
			}
			if err := c.dataset.AppendSearch(c.search.Buffer()); err != nil {
				return err
			}
			c.metrics.AddSearchRollout()
		}
		base += segment
	}
	return nil
}
