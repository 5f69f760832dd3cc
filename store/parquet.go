// Package store persists collected datasets as parquet files, one row per
// timestep, for downstream trainers and offline analysis.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"polish/collect"
)

// Collection modes stamped on exported rows.
const (
	ModeSearch = "search"
	ModePolicy = "policy"
)

// SampleRow is a single timestep of a collected dataset.
//
// State keeps the environment's observation encoding; the remaining numeric
// columns are the float32 training dtypes. Mode records which collection
// path produced the row.
type SampleRow struct {
	RunID        string    `parquet:"run_id,dict"`
	SamplingStep int32     `parquet:"sampling_step"`
	Mode         string    `parquet:"mode,dict"`
	Step         int32     `parquet:"step"`
	State        []float64 `parquet:"state"`
	Action       []float32 `parquet:"action"`
	Value        float32   `parquet:"value"`
	NegLogprob   float32   `parquet:"neg_logprob"`
	Reward       float32   `parquet:"reward"`
	Return       float32   `parquet:"return"`
	Done         bool      `parquet:"done"`
}

// NewRunID returns a fresh identifier tying a collection run's rows together.
func NewRunID() string {
	return uuid.NewString()
}

// DatasetRows flattens a current-step dataset into sample rows.
func DatasetRows(runID string, samplingStep int, searchMode bool, d *collect.Dataset) []SampleRow {
	mode := ModePolicy
	if searchMode {
		mode = ModeSearch
	}
	rows := make([]SampleRow, 0, d.Len())
	for t := 0; t < d.Len(); t++ {
		rows = append(rows, SampleRow{
			RunID:        runID,
			SamplingStep: int32(samplingStep),
			Mode:         mode,
			Step:         int32(t),
			State:        d.States[t],
			Action:       d.Actions[t],
			Value:        d.Values[t],
			NegLogprob:   d.NegLogprobs[t],
			Reward:       d.PerStepRewards[t],
			Return:       d.Returns[t],
			Done:         d.Dones[t],
		})
	}
	return rows
}

// PolicyRows flattens a policy dataset into sample rows. Policy datasets
// carry no episode boundaries, so Done is always false.
func PolicyRows(runID string, samplingStep int, p *collect.PolicyDataset) []SampleRow {
	rows := make([]SampleRow, 0, p.Len())
	for t := 0; t < p.Len(); t++ {
		rows = append(rows, SampleRow{
			RunID:        runID,
			SamplingStep: int32(samplingStep),
			Mode:         ModePolicy,
			Step:         int32(t),
			State:        p.States[t],
			Action:       p.Actions[t],
			Value:        p.Values[t],
			NegLogprob:   p.NegLogprobs[t],
			Reward:       p.PerStepRewards[t],
			Return:       p.Returns[t],
		})
	}
	return rows
}

// WriteRows writes rows to outPath as zstd-compressed parquet.
func WriteRows(outPath string, rows []SampleRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Write to a temp file and rename atomically.
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "sample_row_v1"),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// ReadRows loads rows back from a parquet file written by WriteRows.
func ReadRows(path string) ([]SampleRow, error) {
	rows, err := parquet.ReadFile[SampleRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
