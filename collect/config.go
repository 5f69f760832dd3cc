package collect

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the file-backed configuration surface for a Coordinator. Keys
// follow the trainer's option names.
type Config struct {
	LenSegment          int     `yaml:"len_segment" validate:"gte=1"`
	MCTSEnable          bool    `yaml:"mcts_enable"`
	MCTSStartStepFrac   float64 `yaml:"mcts_start_step_frac" validate:"gte=0,lte=1"`
	MCTSEndStepFrac     float64 `yaml:"mcts_end_step_frac" validate:"gte=0,lte=1,gtfield=MCTSStartStepFrac"`
	NumIterations       int     `yaml:"num_iterations" validate:"gte=1"`
	MCTSCollectDataFreq int     `yaml:"mcts_collect_data_freq" validate:"gte=1"`
	CheckpointDir       string  `yaml:"checkpoint_dir"`
	UpdateRMS           bool    `yaml:"update_rms"`
	ReuseSearchBatch    bool    `yaml:"reuse_search_batch"`
}

// DefaultConfig mirrors the trainer's keyword defaults.
func DefaultConfig() Config {
	return Config{
		LenSegment:          1,
		MCTSStartStepFrac:   0.1,
		MCTSEndStepFrac:     0.9,
		NumIterations:       1,
		MCTSCollectDataFreq: 1,
	}
}

// LoadConfig reads and validates a YAML config file. Unset keys take their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on an inconsistent configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("collect: invalid config: %w", err)
	}
	return nil
}

// Options maps the config onto coordinator options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithSegmentUnit(c.LenSegment),
		WithSearchEnabled(c.MCTSEnable),
		WithSearchWindow(c.MCTSStartStepFrac, c.MCTSEndStepFrac, c.NumIterations),
		WithCollectFreq(c.MCTSCollectDataFreq),
		WithSearchBatchReuse(c.ReuseSearchBatch),
	}
	if c.CheckpointDir != "" {
		opts = append(opts, WithCheckpointDir(c.CheckpointDir))
	}
	if c.UpdateRMS {
		opts = append(opts, WithRMSRestore(true))
	}
	return opts
}
