// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/networking"
)

// Manager orchestrates endpoint discovery, client registration, the
// interactive flow and token refresh for upstream servers.
type Manager struct {
	store       *TokenStore
	client      *http.Client
	basePort    int
	skipBrowser bool
}

// NewManager creates a manager over the given token store.
func NewManager(store *TokenStore) *Manager {
	return &Manager{
		store:    store,
		client:   networking.NewHttpClient(0),
		basePort: networking.DefaultCallbackPort,
	}
}

// SetSkipBrowser makes Authorize print the URL instead of launching a
// browser. Used on headless hosts.
func (m *Manager) SetSkipBrowser(skip bool) {
	m.skipBrowser = skip
}

// Store exposes the underlying token store.
func (m *Manager) Store() *TokenStore {
	return m.store
}

func oauthScopes(opts *config.OAuthOptions) []string {
	if opts == nil {
		return nil
	}
	return opts.Scopes
}

func authServerOverride(opts *config.OAuthOptions) string {
	if opts == nil {
		return ""
	}
	return opts.AuthorizationServer
}

// Authorize runs the full interactive authorization-code flow for one
// upstream and persists the resulting session.
func (m *Manager) Authorize(ctx context.Context, serverName, serverURL string, opts *config.OAuthOptions) (*Session, error) {
	endpoints, err := DiscoverEndpoints(ctx, m.client, serverURL, authServerOverride(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to discover OAuth endpoints for %s: %w", serverURL, err)
	}

	port, err := networking.FindAvailableCallbackPort(m.basePort)
	if err != nil {
		return nil, fmt.Errorf("failed to select OAuth callback port: %w", err)
	}

	clientInfo, err := m.clientInfoFor(ctx, serverName, serverURL, endpoints, port, opts)
	if err != nil {
		return nil, err
	}

	flow, err := NewFlow(&FlowConfig{
		ClientID:     clientInfo.ClientID,
		ClientSecret: clientInfo.ClientSecret,
		AuthURL:      endpoints.AuthorizationEndpoint,
		TokenURL:     endpoints.TokenEndpoint,
		Scopes:       oauthScopes(opts),
		UsePKCE:      endpoints.SupportsS256(),
		CallbackPort: port,
		SkipBrowser:  m.skipBrowser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth flow: %w", err)
	}

	result, err := flow.Start(ctx)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		RefreshToken: result.RefreshToken,
		Scope:        result.Scope,
	}
	if !result.Expiry.IsZero() {
		expiry := result.Expiry
		sess.ExpiresAt = &expiry
	}
	if err := m.store.SaveSession(serverURL, sess); err != nil {
		return nil, fmt.Errorf("failed to persist OAuth session: %w", err)
	}
	return sess, nil
}

// clientInfoFor returns the cached client registration or performs dynamic
// registration against the discovered registration endpoint.
func (m *Manager) clientInfoFor(
	ctx context.Context,
	serverName, serverURL string,
	endpoints *AuthServerMetadata,
	port int,
	opts *config.OAuthOptions,
) (*ClientInfo, error) {
	cached, err := m.store.LoadClientInfo(serverURL)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	if endpoints.RegistrationEndpoint == "" {
		return nil, fmt.Errorf("no cached client registration for %s and the authorization server does not support dynamic registration", serverURL)
	}

	regResp, err := RegisterClient(ctx, m.client, endpoints.RegistrationEndpoint,
		NewRegistrationRequest(serverName, RedirectURI(port), oauthScopes(opts)))
	if err != nil {
		return nil, fmt.Errorf("dynamic client registration failed: %w", err)
	}

	info := &ClientInfo{ClientID: regResp.ClientID, ClientSecret: regResp.ClientSecret}
	if err := m.store.SaveClientInfo(serverURL, info); err != nil {
		return nil, fmt.Errorf("failed to cache client registration: %w", err)
	}
	return info, nil
}

// CachedAccessToken returns a usable access token without user interaction,
// refreshing proactively when the stored token is close to expiry. Returns
// ErrNoSession when nothing usable is stored.
func (m *Manager) CachedAccessToken(ctx context.Context, serverURL string, opts *config.OAuthOptions) (string, error) {
	sess, err := m.store.LoadSession(serverURL, true)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrNoSession
	}

	if !sess.NeedsRefresh() {
		return sess.AccessToken, nil
	}

	if sess.RefreshToken == "" {
		if !sess.IsExpired() {
			return sess.AccessToken, nil
		}
		return "", fmt.Errorf("%w: token expired and no refresh token stored", ErrNoSession)
	}

	token, err := m.refresh(ctx, serverURL, sess, opts)
	if err != nil {
		logger.Debugf("Token refresh for %s failed: %v", serverURL, err)
		return "", fmt.Errorf("%w: refresh failed: %v", ErrNoSession, err)
	}
	return token, nil
}

// GetAccessToken returns a usable access token, re-running the full
// interactive flow when refresh is impossible or fails.
func (m *Manager) GetAccessToken(ctx context.Context, serverName, serverURL string, opts *config.OAuthOptions) (string, error) {
	token, err := m.CachedAccessToken(ctx, serverURL, opts)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, ErrNoSession) {
		return "", err
	}

	sess, err := m.Authorize(ctx, serverName, serverURL, opts)
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}

// refresh exchanges the stored refresh token for a new token set and
// persists it.
func (m *Manager) refresh(ctx context.Context, serverURL string, sess *Session, opts *config.OAuthOptions) (string, error) {
	endpoints, err := DiscoverEndpoints(ctx, m.client, serverURL, authServerOverride(opts))
	if err != nil {
		return "", err
	}

	clientInfo, err := m.store.LoadClientInfo(serverURL)
	if err != nil {
		return "", err
	}
	if clientInfo == nil {
		return "", errors.New("no client registration cached for refresh")
	}

	cfg := &oauth2.Config{
		ClientID:     clientInfo.ClientID,
		ClientSecret: clientInfo.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: endpoints.TokenEndpoint},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: sess.RefreshToken}).Token()
	if err != nil {
		return "", err
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		expiresAt = &expiry
	}
	if err := m.store.UpdateTokens(serverURL, token.AccessToken, token.RefreshToken, expiresAt); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Revoke clears the stored session for an upstream.
func (m *Manager) Revoke(serverURL string) error {
	return m.store.ClearSession(serverURL)
}
