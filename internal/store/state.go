package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/tickersent/pkg/models"
)

// Run statuses recorded in SyncState.LastStatus.
const (
	StatusNoOp      = "no-op"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

// SyncState records what the last sync run did. It replaces guessing from
// file existence and timestamps.
type SyncState struct {
	LastRunID        string       `yaml:"last_run_id"       json:"last_run_id"`
	LastRunAt        time.Time    `yaml:"last_run_at"       json:"last_run_at"`
	LastSuccessAt    time.Time    `yaml:"last_success_at"   json:"last_success_at"`
	LastStatus       string       `yaml:"last_status"       json:"last_status"`
	LastAdded        int          `yaml:"last_added"        json:"last_added"`
	TotalRows        int          `yaml:"total_rows"        json:"total_rows"`
	AggregateCurrent bool         `yaml:"aggregate_current" json:"aggregate_current"`
	ProcessedKeys    []models.Key `yaml:"processed_keys"    json:"processed_keys,omitempty"`
}

// StateFile loads and saves a SyncState as YAML.
type StateFile struct {
	path string
}

// NewStateFile returns a StateFile at path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the backing file.
func (f *StateFile) Path() string { return f.path }

// Load reads the state. A missing file returns the zero state and ok=false.
func (f *StateFile) Load() (state SyncState, ok bool, err error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SyncState{}, false, nil
		}
		return SyncState{}, false, fmt.Errorf("read sync state: %w", err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return SyncState{}, false, fmt.Errorf("parse sync state %s: %w", f.path, err)
	}
	return state, true, nil
}

// Save atomically replaces the state file.
func (f *StateFile) Save(state SyncState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}
	return WriteFileAtomic(f.path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
