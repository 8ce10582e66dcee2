package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	domainauth "github.com/target/authflow/internal/domain/auth"
)

// PersistedState is the durable slice of the session. Tokens are deliberately
// absent: only the profile and the authenticated flag survive a restart, and
// the access token must be re-earned through a refresh.
type PersistedState struct {
	User            *domainauth.Profile `json:"user,omitempty"`
	IsAuthenticated bool                `json:"isAuthenticated"`
}

// persistedFile nests the state under a fixed key so the file stays
// extensible without breaking old readers.
type persistedFile struct {
	Auth PersistedState `json:"auth"`
}

// StateFile stores PersistedState as JSON on disk.
type StateFile struct {
	path string
}

// NewStateFile returns a store backed by the given path. The file is created
// on first Save.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load reads the persisted state. A missing file is not an error; it simply
// yields the zero state.
func (f *StateFile) Load() (PersistedState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PersistedState{}, nil
		}
		return PersistedState{}, fmt.Errorf("read state file: %w", err)
	}

	var file persistedFile
	if err := json.Unmarshal(data, &file); err != nil {
		// Corrupt state is treated as absent rather than fatal.
		return PersistedState{}, nil
	}
	return file.Auth, nil
}

// Save writes the persisted state, replacing any previous contents.
func (f *StateFile) Save(state PersistedState) error {
	data, err := json.MarshalIndent(persistedFile{Auth: state}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Clear removes the state file. Removing an absent file is a no-op.
func (f *StateFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
