package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"table-backup/internal/errors"
)

// RefreshStore is where the long-lived refresh secret lives between runs.
// A literal value (from the environment or config file) wins over the file.
type RefreshStore struct {
	literal string
	path    string
}

// NewRefreshStore creates a store backed by a literal value and/or a file path
func NewRefreshStore(literal, path string) *RefreshStore {
	return &RefreshStore{
		literal: strings.TrimSpace(literal),
		path:    path,
	}
}

// Path returns the file the store reads and writes, if any
func (s *RefreshStore) Path() string {
	return s.path
}

// Persistent reports whether Save writes somewhere Load will read from
func (s *RefreshStore) Persistent() bool {
	return s.literal == "" && s.path != ""
}

// Load returns the refresh secret
func (s *RefreshStore) Load() (string, error) {
	if s.literal != "" {
		return s.literal, nil
	}
	if s.path == "" {
		return "", errors.NewConfigurationError("no refresh token configured", nil).
			WithUserMessage("Set ONEDRIVE_REFRESH_TOKEN or run 'table-backup authorize' with oauth.refresh_token_file set.")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewConfigurationError("refresh token file not found", err).
				WithContext("path", s.path).
				WithUserMessage(fmt.Sprintf("Refresh token file %s does not exist. Run 'table-backup authorize' first.", s.path))
		}
		return "", errors.NewConfigurationError("failed to read refresh token file", err).
			WithContext("path", s.path)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.NewConfigurationError("refresh token file is empty", nil).
			WithContext("path", s.path)
	}
	return token, nil
}

// Save writes the refresh secret to the store's file, readable only by the owner
func (s *RefreshStore) Save(token string) error {
	if s.path == "" {
		return fmt.Errorf("no refresh token file configured")
	}
	if token == "" {
		return fmt.Errorf("refusing to save an empty refresh token")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write refresh token: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace refresh token file: %w", err)
	}
	return nil
}
