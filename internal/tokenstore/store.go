// Package tokenstore persists the small amount of durable client state: the
// access/refresh token pair, the last-used login email and the per-user
// current-company selection for the invoicing app. It is the only writer of
// that file; the session store writes tokens through it on login, logout and
// refresh, and reads them once at bootstrap.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type fileData struct {
	AccessToken    string            `json:"access_token,omitempty"`
	RefreshToken   string            `json:"refresh_token,omitempty"`
	LastEmail      string            `json:"last_email,omitempty"`
	CurrentCompany map[string]string `json:"current_company,omitempty"`
}

// Store is a file-backed key store with atomic writes.
type Store struct {
	path string

	mu   sync.Mutex
	data fileData
}

// Open loads the store at path, creating parent directories as needed. A
// missing file yields an empty store; a corrupt file is discarded rather than
// failing bootstrap.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("tokenstore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: ensure directory: %w", err)
	}
	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("tokenstore: read: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		s.data = fileData{}
	}
	return s, nil
}

// Tokens returns the persisted token pair. Both empty means logged out.
func (s *Store) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AccessToken, s.data.RefreshToken
}

// SetTokens persists a new token pair.
func (s *Store) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AccessToken = access
	s.data.RefreshToken = refresh
	return s.save()
}

// ClearTokens removes the persisted pair. Clearing an already empty store is
// a no-op.
func (s *Store) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.AccessToken == "" && s.data.RefreshToken == "" {
		return nil
	}
	s.data.AccessToken = ""
	s.data.RefreshToken = ""
	return s.save()
}

// LastEmail returns the remembered login email, if any.
func (s *Store) LastEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LastEmail
}

// SetLastEmail remembers the email used for the last successful login.
func (s *Store) SetLastEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastEmail = strings.TrimSpace(email)
	return s.save()
}

// CurrentCompany returns the invoicing company selection for a user.
func (s *Store) CurrentCompany(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.CurrentCompany[userID]
}

// SetCurrentCompany caches the invoicing company selection, namespaced per
// user so switching accounts keeps selections apart.
func (s *Store) SetCurrentCompany(userID, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.CurrentCompany == nil {
		s.data.CurrentCompany = map[string]string{}
	}
	if companyID == "" {
		delete(s.data.CurrentCompany, userID)
	} else {
		s.data.CurrentCompany[userID] = companyID
	}
	return s.save()
}

// save writes via a temp file and rename so a crash never leaves a torn file.
// Callers hold s.mu.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	return nil
}
