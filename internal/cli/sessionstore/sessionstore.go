// Package sessionstore persists the authenticated session as a single JSON
// record under the user's config directory. A missing or malformed record
// reads back as "no session" rather than an error.
package sessionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskdeck-dev/taskdeck/internal/cli/gateway"
)

const (
	configDirName   = "taskdeck"
	sessionFileName = "session.json"
)

// Store reads and writes the session record at a fixed path
type Store struct {
	path string
}

// New returns a store rooted at ~/.config/taskdeck/session.json
func New() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return &Store{path: filepath.Join(homeDir, ".config", configDirName, sessionFileName)}, nil
}

// NewAtPath returns a store using an explicit file path
func NewAtPath(path string) *Store {
	return &Store{path: path}
}

// Path returns the record's location on disk
func (s *Store) Path() string {
	return s.path
}

// Save serializes the session to the record file. The file is mode 0600: it
// holds a live credential.
func (s *Store) Save(sess *gateway.Session) error {
	if sess == nil {
		return fmt.Errorf("cannot save a nil session")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads the record. A missing file, unparseable content, or a record
// without the required identity fields all return (nil, nil): the process
// starts anonymous, never broken.
func (s *Store) Load() (*gateway.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess gateway.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, nil
	}
	if sess.Token == "" || sess.Profile.ID == "" || sess.Profile.Email == "" {
		return nil, nil
	}
	return &sess, nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
