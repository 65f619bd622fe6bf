// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"crypto/md5" // #nosec G501 - filename digest only, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RefreshBuffer is how long before expiry a token is refreshed proactively.
const RefreshBuffer = 5 * time.Minute

// Session is the persisted token set for one upstream URL. A nil ExpiresAt
// means the token does not expire.
type Session struct {
	URL          string     `json:"url"`
	AccessToken  string     `json:"accessToken"`
	TokenType    string     `json:"tokenType,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// IsExpired reports whether the access token's lifetime has passed.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt)
}

// NeedsRefresh reports whether the token is within the refresh buffer of its
// expiry. Tokens without an expiry never need refreshing.
func (s *Session) NeedsRefresh() bool {
	return s.ExpiresAt != nil && time.Now().After(s.ExpiresAt.Add(-RefreshBuffer))
}

// usable reports whether the session carries anything worth keeping: a
// session with neither an access nor a refresh token is treated as absent.
func (s *Session) usable() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

// ClientInfo is the cached dynamic-registration result for one upstream URL.
type ClientInfo struct {
	URL          string `json:"url"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// TokenStore persists sessions and client registrations under
// $HOME/.please/oauth/{tokens,clients}/<digest>.json with owner-only
// permissions.
type TokenStore struct {
	baseDir string
}

// NewTokenStore creates a store rooted under the user's home directory.
func NewTokenStore() (*TokenStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}
	return NewTokenStoreAt(filepath.Join(home, ".please", "oauth")), nil
}

// NewTokenStoreAt creates a store rooted at an explicit directory.
func NewTokenStoreAt(baseDir string) *TokenStore {
	return &TokenStore{baseDir: baseDir}
}

// urlDigest keys files by the first 12 hex characters of MD5(url).
// Uniqueness is sufficient here, not cryptographic strength.
func urlDigest(url string) string {
	sum := md5.Sum([]byte(url)) // #nosec G401 - filename digest only
	return hex.EncodeToString(sum[:])[:12]
}

func (t *TokenStore) sessionPath(url string) string {
	return filepath.Join(t.baseDir, "tokens", urlDigest(url)+".json")
}

func (t *TokenStore) clientPath(url string) string {
	return filepath.Join(t.baseDir, "clients", urlDigest(url)+".json")
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path derived from store root
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

// LoadSession returns the stored session for url, or nil. Expired sessions
// are returned only when includeExpired is set; sessions with no tokens at
// all are treated as absent.
func (t *TokenStore) LoadSession(url string, includeExpired bool) (*Session, error) {
	var sess Session
	found, err := readJSONFile(t.sessionPath(url), &sess)
	if err != nil || !found {
		return nil, err
	}
	if !sess.usable() {
		return nil, nil
	}
	if sess.IsExpired() && !includeExpired {
		return nil, nil
	}
	return &sess, nil
}

// SaveSession persists a session for url.
func (t *TokenStore) SaveSession(url string, sess *Session) error {
	sess.URL = url
	return writeJSONFile(t.sessionPath(url), sess)
}

// UpdateTokens replaces the token fields of a stored session after a
// refresh, keeping any fields the refresh response did not return.
func (t *TokenStore) UpdateTokens(url, accessToken, refreshToken string, expiresAt *time.Time) error {
	sess, err := t.LoadSession(url, true)
	if err != nil {
		return err
	}
	if sess == nil {
		sess = &Session{}
	}
	sess.AccessToken = accessToken
	if refreshToken != "" {
		sess.RefreshToken = refreshToken
	}
	sess.ExpiresAt = expiresAt
	return t.SaveSession(url, sess)
}

// ClearSession removes the stored session for url.
func (t *TokenStore) ClearSession(url string) error {
	err := os.Remove(t.sessionPath(url))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// HasValidSession reports whether a non-expired session is stored for url.
func (t *TokenStore) HasValidSession(url string) bool {
	sess, err := t.LoadSession(url, false)
	return err == nil && sess != nil
}

// HasSession reports whether any session is stored for url, including
// expired-but-refreshable ones.
func (t *TokenStore) HasSession(url string) bool {
	sess, err := t.LoadSession(url, true)
	return err == nil && sess != nil
}

// LoadClientInfo returns the cached client registration for url, or nil.
func (t *TokenStore) LoadClientInfo(url string) (*ClientInfo, error) {
	var info ClientInfo
	found, err := readJSONFile(t.clientPath(url), &info)
	if err != nil || !found {
		return nil, err
	}
	if info.ClientID == "" {
		return nil, nil
	}
	return &info, nil
}

// SaveClientInfo caches a client registration for url.
func (t *TokenStore) SaveClientInfo(url string, info *ClientInfo) error {
	info.URL = url
	return writeJSONFile(t.clientPath(url), info)
}
