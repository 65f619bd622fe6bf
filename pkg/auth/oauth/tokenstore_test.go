// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServerURL = "https://mcp.example.com/mcp"

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()
	return NewTokenStoreAt(filepath.Join(t.TempDir(), "oauth"))
}

func TestSaveAndLoadSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	future := time.Now().Add(time.Hour)

	sess := &Session{
		AccessToken:  "at-123",
		TokenType:    "Bearer",
		RefreshToken: "rt-456",
		Scope:        "read write",
		ExpiresAt:    &future,
	}
	require.NoError(t, store.SaveSession(testServerURL, sess))

	loaded, err := store.LoadSession(testServerURL, false)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "at-123", loaded.AccessToken)
	assert.Equal(t, "rt-456", loaded.RefreshToken)
	assert.Equal(t, testServerURL, loaded.URL)
}

func TestLoadSessionExpiredExcludedByDefault(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveSession(testServerURL, &Session{
		AccessToken: "at", RefreshToken: "rt", ExpiresAt: &past,
	}))

	loaded, err := store.LoadSession(testServerURL, false)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// includeExpired returns the session unconditionally.
	loaded, err = store.LoadSession(testServerURL, true)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "rt", loaded.RefreshToken)
}

func TestLoadSessionWithoutExpiryNeverExpires(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.SaveSession(testServerURL, &Session{AccessToken: "at"}))

	loaded, err := store.LoadSession(testServerURL, false)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.False(t, loaded.NeedsRefresh())
	assert.False(t, loaded.IsExpired())
}

func TestSessionWithNoTokensTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.SaveSession(testServerURL, &Session{}))

	loaded, err := store.LoadSession(testServerURL, true)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.False(t, store.HasSession(testServerURL))
}

func TestNeedsRefreshWithinBuffer(t *testing.T) {
	t.Parallel()

	soon := time.Now().Add(RefreshBuffer / 2)
	sess := &Session{AccessToken: "at", ExpiresAt: &soon}
	assert.True(t, sess.NeedsRefresh())
	assert.False(t, sess.IsExpired())

	later := time.Now().Add(RefreshBuffer * 2)
	sess = &Session{AccessToken: "at", ExpiresAt: &later}
	assert.False(t, sess.NeedsRefresh())
}

func TestHasValidAndHasSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	assert.False(t, store.HasValidSession(testServerURL))
	assert.False(t, store.HasSession(testServerURL))

	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.SaveSession(testServerURL, &Session{
		AccessToken: "at", RefreshToken: "rt", ExpiresAt: &past,
	}))

	assert.False(t, store.HasValidSession(testServerURL))
	assert.True(t, store.HasSession(testServerURL))
}

func TestClearSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.SaveSession(testServerURL, &Session{AccessToken: "at"}))
	require.NoError(t, store.ClearSession(testServerURL))
	assert.False(t, store.HasSession(testServerURL))

	// Clearing an absent session is not an error.
	require.NoError(t, store.ClearSession(testServerURL))
}

func TestUpdateTokens(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.SaveSession(testServerURL, &Session{
		AccessToken: "old-at", RefreshToken: "rt", Scope: "read",
	}))

	future := time.Now().Add(time.Hour)
	require.NoError(t, store.UpdateTokens(testServerURL, "new-at", "", &future))

	loaded, err := store.LoadSession(testServerURL, false)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "new-at", loaded.AccessToken)
	// Refresh responses without a new refresh token keep the old one.
	assert.Equal(t, "rt", loaded.RefreshToken)
	assert.Equal(t, "read", loaded.Scope)
}

func TestClientInfoRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	info, err := store.LoadClientInfo(testServerURL)
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, store.SaveClientInfo(testServerURL, &ClientInfo{ClientID: "cid", ClientSecret: "cs"}))

	info, err = store.LoadClientInfo(testServerURL)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "cid", info.ClientID)
}

func TestFilePermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	store := newTestStore(t)
	require.NoError(t, store.SaveSession(testServerURL, &Session{AccessToken: "at"}))

	fi, err := os.Stat(store.sessionPath(testServerURL))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	di, err := os.Stat(filepath.Dir(store.sessionPath(testServerURL)))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), di.Mode().Perm())
}

func TestURLDigestIsStableAndShort(t *testing.T) {
	t.Parallel()

	d1 := urlDigest(testServerURL)
	d2 := urlDigest(testServerURL)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 12)
	assert.NotEqual(t, d1, urlDigest("https://other.example.com"))
}
