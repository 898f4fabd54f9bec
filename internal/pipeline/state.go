package pipeline

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// State records what the pipeline has seen across runs. It lives next to the
// diagrams as a TOML file so CI runs on fresh checkouts pick up where the
// previous run stopped.
type State struct {
	Version        int       `toml:"version"`
	LastCommit     string    `toml:"last_commit,omitempty"`
	LastRunAt      time.Time `toml:"last_run_at,omitempty"`
	TotalRuns      int       `toml:"total_runs,omitempty"`
	TotalConverted int       `toml:"total_converted,omitempty"`
	TotalFailed    int       `toml:"total_failed,omitempty"`
}

// LoadState reads the state file at path. A missing file yields a fresh state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Version: 1}, nil
		}
		return nil, fmt.Errorf("pipeline: reading state file: %w", err)
	}

	var state State
	if err := toml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("pipeline: parsing state file: %w", err)
	}
	if state.Version == 0 {
		state.Version = 1
	}
	return &state, nil
}

// SaveState writes the state file atomically (write temp + rename).
func SaveState(path string, state *State) error {
	data, err := toml.Marshal(state)
	if err != nil {
		return fmt.Errorf("pipeline: marshaling state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("pipeline: writing temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pipeline: renaming state file: %w", err)
	}
	return nil
}

// RecordRun folds one run's outcome into the cumulative state.
func (s *State) RecordRun(sum *Summary, headSHA string) {
	s.TotalRuns++
	s.TotalConverted += sum.Converted()
	s.TotalFailed += sum.Failed()
	s.LastRunAt = time.Now()
	if headSHA != "" {
		s.LastCommit = headSHA
	}
}
