package rollout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// NormFileName is the checkpoint file holding normalization statistics,
// relative to the checkpoint directory.
const NormFileName = "norm.json"

// StatsRecord is the persisted form of one RunningStats handle.
type StatsRecord struct {
	Mean  []float64 `json:"mean"`
	Var   []float64 `json:"var"`
	Count float64   `json:"count"`
}

// NormCheckpoint is the persisted normalization state for a rollout source:
// observation statistics and return statistics.
type NormCheckpoint struct {
	Obs StatsRecord `json:"obs"`
	Ret StatsRecord `json:"ret"`
}

// LoadNormCheckpoint reads the normalization checkpoint from dir.
func LoadNormCheckpoint(dir string) (*NormCheckpoint, error) {
	path := filepath.Join(dir, NormFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read norm checkpoint: %w", err)
	}
	var ckpt NormCheckpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("decode norm checkpoint %s: %w", path, err)
	}
	return &ckpt, nil
}

// Save writes the checkpoint into dir, creating it if needed.
func (c *NormCheckpoint) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode norm checkpoint: %w", err)
	}
	path := filepath.Join(dir, NormFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write norm checkpoint: %w", err)
	}
	return nil
}

// Apply restores the checkpoint into the source's statistics handles.
func (c *NormCheckpoint) Apply(src Source) error {
	if err := src.ObsStats().Restore(c.Obs.Mean, c.Obs.Var, c.Obs.Count); err != nil {
		return fmt.Errorf("restore observation stats: %w", err)
	}
	if err := src.ReturnStats().Restore(c.Ret.Mean, c.Ret.Var, c.Ret.Count); err != nil {
		return fmt.Errorf("restore return stats: %w", err)
	}
	return nil
}

// SnapshotStats captures a source's current statistics as a checkpoint.
func SnapshotStats(src Source) *NormCheckpoint {
	obs := src.ObsStats()
	ret := src.ReturnStats()
	return &NormCheckpoint{
		Obs: StatsRecord{Mean: cloneSlice(obs.Mean), Var: cloneSlice(obs.Var), Count: obs.Count},
		Ret: StatsRecord{Mean: cloneSlice(ret.Mean), Var: cloneSlice(ret.Var), Count: ret.Count},
	}
}
