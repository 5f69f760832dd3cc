package collect

import (
	"errors"
	"fmt"

	"polish/rollout"
)

// ErrEmptyAppend reports an empty buffer appended onto a non-empty
// accumulation, which means a search rollout produced no timesteps after
// earlier sub-spans already did.
var ErrEmptyAppend = errors.New("collect: empty buffer appended to non-empty dataset")

// Dataset is the current-step training batch. In search mode it is the
// temporal concatenation of the step's search-rollout buffers; otherwise it
// is a copy of the primary rollout. States keep the observation encoding;
// every other numeric attribute is coerced to float32.
//
// The field set is fixed at compile time; merges iterate it explicitly
// rather than through string-keyed dispatch.
type Dataset struct {
	States            [][]float64
	Actions           [][]float32
	Values            []float32
	NegLogprobs       []float32
	Means             [][]float32
	Logstds           [][]float32
	PerEpisodeRewards []float32
	PerEpisodeLengths []float32
	Dones             []bool
	PerStepRewards    []float32
	Returns           []float32
}

// Reset clears the dataset for a new sampling step.
func (d *Dataset) Reset() {
	*d = Dataset{}
}

// Len returns the number of timesteps in the dataset.
func (d *Dataset) Len() int {
	return len(d.Actions)
}

// AppendSearch concatenates one search-rollout buffer onto the dataset.
// Buffers must be appended in temporal order of sub-span execution; the
// first append onto an empty dataset initializes every attribute.
func (d *Dataset) AppendSearch(buf *rollout.Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("append search buffer: %w", err)
	}
	if buf.Len() == 0 && d.Len() > 0 {
		return ErrEmptyAppend
	}
	d.States = append(d.States, cloneRows(buf.States)...)
	d.Actions = append(d.Actions, rowsToF32(buf.Actions)...)
	d.Values = append(d.Values, toF32(buf.Values)...)
	d.NegLogprobs = append(d.NegLogprobs, toF32(buf.NegLogprobs)...)
	d.Means = append(d.Means, rowsToF32(buf.Means)...)
	d.Logstds = append(d.Logstds, rowsToF32(buf.Logstds)...)
	d.PerEpisodeRewards = append(d.PerEpisodeRewards, toF32(buf.PerEpisodeRewards)...)
	d.PerEpisodeLengths = append(d.PerEpisodeLengths, intsToF32(buf.PerEpisodeLengths)...)
	d.Dones = append(d.Dones, buf.Dones...)
	d.PerStepRewards = append(d.PerStepRewards, toF32(buf.PerStepRewards)...)
	d.Returns = append(d.Returns, toF32(buf.Returns)...)
	return nil
}

// CopyPrimary replaces the dataset with a copy of the primary rollout's
// buffer, applying the same per-attribute coercions as the search path.
func (d *Dataset) CopyPrimary(buf *rollout.Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("copy primary buffer: %w", err)
	}
	d.States = cloneRows(buf.States)
	d.Actions = rowsToF32(buf.Actions)
	d.Values = toF32(buf.Values)
	d.NegLogprobs = toF32(buf.NegLogprobs)
	d.Means = rowsToF32(buf.Means)
	d.Logstds = rowsToF32(buf.Logstds)
	d.PerEpisodeRewards = toF32(buf.PerEpisodeRewards)
	d.PerEpisodeLengths = intsToF32(buf.PerEpisodeLengths)
	d.Dones = append([]bool(nil), buf.Dones...)
	d.PerStepRewards = toF32(buf.PerStepRewards)
	d.Returns = toF32(buf.Returns)
	return nil
}

// PolicyDataset mirrors the primary rollout's six policy attributes. It is
// refreshed every sampling step regardless of search mode.
type PolicyDataset struct {
	States         [][]float64
	Actions        [][]float32
	Values         []float32
	NegLogprobs    []float32
	PerStepRewards []float32
	Returns        []float32
}

// Reset clears the dataset for a new sampling step.
func (p *PolicyDataset) Reset() {
	*p = PolicyDataset{}
}

// Len returns the number of timesteps in the dataset.
func (p *PolicyDataset) Len() int {
	return len(p.Actions)
}

// CopyPrimary replaces the dataset with the primary rollout's policy
// attributes.
func (p *PolicyDataset) CopyPrimary(buf *rollout.Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("copy primary buffer: %w", err)
	}
	p.States = cloneRows(buf.States)
	p.Actions = rowsToF32(buf.Actions)
	p.Values = toF32(buf.Values)
	p.NegLogprobs = toF32(buf.NegLogprobs)
	p.PerStepRewards = toF32(buf.PerStepRewards)
	p.Returns = toF32(buf.Returns)
	return nil
}

func toF32(src []float64) []float32 {
	dst := make([]float32, len(src))
	for i, v := range src {
		dst[i] = float32(v)
	}
	return dst
}

func intsToF32(src []int) []float32 {
	dst := make([]float32, len(src))
	for i, v := range src {
		dst[i] = float32(v)
	}
	return dst
}

func rowsToF32(src [][]float64) [][]float32 {
	dst := make([][]float32, len(src))
	for i, row := range src {
		dst[i] = toF32(row)
	}
	return dst
}

func cloneRows(src [][]float64) [][]float64 {
	dst := make([][]float64, len(src))
	for i, row := range src {
		dst[i] = append([]float64(nil), row...)
	}
	return dst
}
