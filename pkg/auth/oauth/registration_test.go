// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterClient(t *testing.T) {
	t.Parallel()

	var received ClientRegistrationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ClientRegistrationResponse{
			ClientID: "generated-client-id",
		})
	}))
	t.Cleanup(server.Close)

	req := NewRegistrationRequest("github", "http://localhost:3334/callback", []string{"repo", "read:user"})
	resp, err := RegisterClient(context.Background(), server.Client(), server.URL+"/register", req)
	require.NoError(t, err)
	assert.Equal(t, "generated-client-id", resp.ClientID)

	// Public client registered for the code grant with refresh.
	assert.Contains(t, received.ClientName, "github")
	assert.Equal(t, []string{"http://localhost:3334/callback"}, received.RedirectURIs)
	assert.ElementsMatch(t, []string{"authorization_code", "refresh_token"}, received.GrantTypes)
	assert.Equal(t, []string{"code"}, received.ResponseTypes)
	assert.Equal(t, "none", received.TokenEndpointAuthMethod)
	assert.Equal(t, "repo read:user", received.Scope)
}

func TestRegisterClientRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_redirect_uri"}`, http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	_, err := RegisterClient(context.Background(), server.Client(), server.URL+"/register",
		NewRegistrationRequest("x", "http://localhost:3334/callback", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_redirect_uri")
}

func TestRegisterClientMissingClientID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	_, err := RegisterClient(context.Background(), server.Client(), server.URL+"/register",
		NewRegistrationRequest("x", "http://localhost:3334/callback", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id")
}
