package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// StepRecord ties a step metric to the collection run it belongs to.
type StepRecord struct {
	Run string // run identifier, e.g. store.NewRunID()
	StepMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates a timestamped subfolder under dir for this run's records.
func NewWriter(dir string) (*Writer, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	baseDir := filepath.Join(dir, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the directory records are written into.
func (w *Writer) BaseDir() string {
	return w.baseDir
}

func (w *Writer) WriteStepRecords(records []StepRecord) error {
	path := filepath.Join(w.baseDir, "step_records.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create step records file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{"run", "sampling_step", "search_mode", "segments", "search_rollouts", "timesteps", "duration"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write step records header: %w", err)
	}

	for _, record := range records {
		row := []string{
			record.Run,
			strconv.Itoa(record.SamplingStep),
			strconv.FormatBool(record.SearchMode),
			strconv.Itoa(record.Segments),
			strconv.Itoa(record.SearchRollouts),
			strconv.Itoa(record.Timesteps),
			record.Duration.String(),
		}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write step record row: %w", err)
		}
	}

	return nil
}
