// Package prefs persists the session token in the user's local preference
// storage. Exactly two scalar values are kept: the opaque token and its
// expiry as epoch seconds.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"talkeysclient/internal/clock"
	"talkeysclient/internal/domain"
)

// TokenTTL is the fixed lifetime applied on every Save.
const TokenTTL = 24 * time.Hour

const (
	appDirName = "talkeys"
	fileName   = "credentials.json"
)

// credentials is the on-disk layout: the token and its expiry in epoch seconds.
type credentials struct {
	Token     string `json:"auth_token"`
	ExpiresAt int64  `json:"auth_token_expiry"`
}

// FileStore is a domain.TokenStore backed by a JSON file under the user's
// config directory.
type FileStore struct {
	path  string
	clock clock.Clock
}

// NewFileStore returns a store writing to dir/talkeys/credentials.json.
// If dir is empty, os.UserConfigDir is used.
func NewFileStore(dir string, clk clock.Clock) (*FileStore, error) {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return nil, &domain.StorageError{Op: "init", Err: err}
		}
	}
	return &FileStore{
		path:  filepath.Join(dir, appDirName, fileName),
		clock: clk,
	}, nil
}

// Save stores the token and stamps its expiry at now + TokenTTL.
func (s *FileStore) Save(token string) error {
	creds := credentials{
		Token:     token,
		ExpiresAt: s.clock.Now().Add(TokenTTL).Unix(),
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	// Write via a temp file and rename so a crash never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	return nil
}

// Read returns the stored token, or domain.ErrNoToken if never set.
func (s *FileStore) Read() (string, error) {
	creds, err := s.load()
	if err != nil {
		return "", err
	}
	if creds == nil || creds.Token == "" {
		return "", domain.ErrNoToken
	}
	return creds.Token, nil
}

// Clear removes the token and expiry. Clearing an empty store is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StorageError{Op: "clear", Err: err}
	}
	return nil
}

// IsValid reports whether a non-empty, unexpired token is present. An expired
// entry is cleared as a side effect.
func (s *FileStore) IsValid() bool {
	creds, err := s.load()
	if err != nil || creds == nil || creds.Token == "" {
		return false
	}
	if creds.ExpiresAt > 0 && s.clock.Now().Unix() > creds.ExpiresAt {
		_ = s.Clear()
		return false
	}
	return true
}

func (s *FileStore) load() (*credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "read", Err: err}
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, &domain.StorageError{Op: "read", Err: fmt.Errorf("corrupt credentials file: %w", err)}
	}
	return &creds, nil
}
