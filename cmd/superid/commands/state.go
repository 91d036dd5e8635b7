package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"superid/internal/client"
)

const stateFile = "state.json"

// State is what the CLI remembers between runs. It never holds the master
// password or anything derived from it.
type State struct {
	Server string        `json:"server"`
	Email  string        `json:"email,omitempty"`
	UserID string        `json:"user_id,omitempty"`
	Tokens client.Tokens `json:"tokens"`
}

// LoadState reads path, returning an empty state when the file does not exist.
func LoadState(path string) (*State, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	return &s, nil
}

// SaveState writes s to path with owner-only permissions.
func SaveState(path string, s *State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, path)
}
