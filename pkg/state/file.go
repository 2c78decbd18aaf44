package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileStore persists the run state as a local JSON file. It backs local
// runs that have no gist configured and keeps tests off the network.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state file. A missing file means a first run and yields
// empty state.
func (f *FileStore) Load(_ context.Context) (*RunState, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", f.path, err)
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", f.path, err)
	}
	st.normalize()
	return &st, nil
}

// Save writes the state file, replacing any previous content.
func (f *FileStore) Save(_ context.Context, st *RunState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.WriteFile(f.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", f.path, err)
	}
	return nil
}
