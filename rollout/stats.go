package rollout

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// countEpsilon seeds Count so the very first batch does not divide by zero.
const countEpsilon = 1e-4

// RunningStats tracks a running mean and variance per dimension across
// batches. Handles are shared by pointer: once the coordinator rebinds the
// search source onto the primary source's handles, updates from either side
// land in the same statistics.
type RunningStats struct {
	Mean  []float64
	Var   []float64
	Count float64
}

// NewRunningStats returns zeroed statistics over dim dimensions with unit
// variance.
func NewRunningStats(dim int) *RunningStats {
	s := &RunningStats{
		Mean:  make([]float64, dim),
		Var:   make([]float64, dim),
		Count: countEpsilon,
	}
	for i := range s.Var {
		s.Var[i] = 1
	}
	return s
}

// Dim returns the number of dimensions tracked.
func (s *RunningStats) Dim() int {
	return len(s.Mean)
}

// Update folds a batch of observations into the running moments using the
// parallel-variance merge, so the result matches a single pass over all data
// seen so far.
func (s *RunningStats) Update(batch [][]float64) error {
	if len(batch) == 0 {
		return errors.New("rollout: empty statistics batch")
	}
	dim := s.Dim()
	column := make([]float64, len(batch))
	for d := 0; d < dim; d++ {
		for i, row := range batch {
			if len(row) != dim {
				return fmt.Errorf("rollout: batch row has %d dimensions, stats track %d", len(row), dim)
			}
			column[i] = row[d]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		s.mergeMoments(d, mean, variance, float64(len(batch)))
	}
	s.Count += float64(len(batch))
	return nil
}

// UpdateScalars folds a batch of scalar values into one-dimensional stats.
func (s *RunningStats) UpdateScalars(batch []float64) error {
	if s.Dim() != 1 {
		return fmt.Errorf("rollout: scalar update on %d-dimensional stats", s.Dim())
	}
	if len(batch) == 0 {
		return errors.New("rollout: empty statistics batch")
	}
	mean, variance := stat.PopMeanVariance(batch, nil)
	s.mergeMoments(0, mean, variance, float64(len(batch)))
	s.Count += float64(len(batch))
	return nil
}

func (s *RunningStats) mergeMoments(d int, batchMean, batchVar, batchCount float64) {
	delta := batchMean - s.Mean[d]
	total := s.Count + batchCount

	s.Mean[d] += delta * batchCount / total
	mA := s.Var[d] * s.Count
	mB := batchVar * batchCount
	m2 := mA + mB + delta*delta*s.Count*batchCount/total
	s.Var[d] = m2 / total
}

// Restore overwrites the statistics with persisted moments.
func (s *RunningStats) Restore(mean, variance []float64, count float64) error {
	if len(mean) != s.Dim() || len(variance) != s.Dim() {
		return fmt.Errorf("rollout: restore with %d/%d dimensions onto %d-dimensional stats",
			len(mean), len(variance), s.Dim())
	}
	if count <= 0 {
		return fmt.Errorf("rollout: restore with non-positive count %v", count)
	}
	copy(s.Mean, mean)
	copy(s.Var, variance)
	s.Count = count
	return nil
}
