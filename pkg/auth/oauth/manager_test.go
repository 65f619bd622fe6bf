// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedAccessTokenNoSession(t *testing.T) {
	t.Parallel()

	m := NewManager(newTestStore(t))
	_, err := m.CachedAccessToken(context.Background(), testServerURL, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCachedAccessTokenFreshSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	future := time.Now().Add(time.Hour)
	require.NoError(t, store.SaveSession(testServerURL, &Session{
		AccessToken: "fresh-token", ExpiresAt: &future,
	}))

	m := NewManager(store)
	token, err := m.CachedAccessToken(context.Background(), testServerURL, nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestCachedAccessTokenRefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	// The auth server: metadata plus a token endpoint accepting the
	// refresh_token grant.
	var refreshForm map[string][]string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case authServerMetadataPath:
			_ = json.NewEncoder(w).Encode(AuthServerMetadata{
				Issuer:                server.URL,
				AuthorizationEndpoint: server.URL + "/authorize",
				TokenEndpoint:         server.URL + "/token",
			})
		case "/token":
			require.NoError(t, r.ParseForm())
			refreshForm = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "refreshed-at",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	store := newTestStore(t)
	serverURL := server.URL + "/mcp"
	soon := time.Now().Add(time.Minute)
	require.NoError(t, store.SaveSession(serverURL, &Session{
		AccessToken: "stale-at", RefreshToken: "rt-1", ExpiresAt: &soon,
	}))
	require.NoError(t, store.SaveClientInfo(serverURL, &ClientInfo{ClientID: "cid"}))

	m := NewManager(store)
	m.client = server.Client()

	token, err := m.CachedAccessToken(context.Background(), serverURL, nil)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-at", token)
	assert.Equal(t, "refresh_token", refreshForm["grant_type"][0])
	assert.Equal(t, "rt-1", refreshForm["refresh_token"][0])

	// The refreshed token set is persisted.
	sess, err := store.LoadSession(serverURL, false)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "refreshed-at", sess.AccessToken)
	// The old refresh token is kept when the response omits a new one.
	assert.Equal(t, "rt-1", sess.RefreshToken)
}

func TestCachedAccessTokenExpiredWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveSession(testServerURL, &Session{
		AccessToken: "dead-at", ExpiresAt: &past,
	}))

	m := NewManager(store)
	_, err := m.CachedAccessToken(context.Background(), testServerURL, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRevokeClearsSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.SaveSession(testServerURL, &Session{AccessToken: "at"}))

	m := NewManager(store)
	require.NoError(t, m.Revoke(testServerURL))
	assert.False(t, store.HasSession(testServerURL))
}
