// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/pleasehq/please/pkg/logger"
)

const (
	protectedResourcePath   = "/.well-known/oauth-protected-resource"
	authServerMetadataPath  = "/.well-known/oauth-authorization-server"
	maxMetadataResponseSize = 1 << 20
)

// AuthServerMetadata is the subset of RFC 8414 authorization-server metadata
// the flow needs.
type AuthServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsS256 reports whether the server advertises the S256 PKCE method.
// PKCE is only engaged when the server declares support for it.
func (m *AuthServerMetadata) SupportsS256() bool {
	return slices.Contains(m.CodeChallengeMethodsSupported, "S256")
}

// ProtectedResourceMetadata is the subset of RFC 9728 metadata used to find
// the authorization server protecting an MCP endpoint.
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers,omitempty"`
	ScopesSupported      []string `json:"scopes_supported,omitempty"`
}

// origin reduces a URL to scheme://host.
func origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func fetchJSON(ctx context.Context, client *http.Client, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", rawURL, err)
	}
	return nil
}

// authServerMetadataURL computes the RFC 8414 well-known URL for an issuer,
// inserting the well-known segment before the issuer's path component.
func authServerMetadataURL(issuer string) (string, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("invalid issuer %q: %w", issuer, err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	u.Path = authServerMetadataPath + path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// fetchAuthServerMetadata retrieves RFC 8414 metadata for an issuer.
func fetchAuthServerMetadata(ctx context.Context, client *http.Client, issuer string) (*AuthServerMetadata, error) {
	metaURL, err := authServerMetadataURL(issuer)
	if err != nil {
		return nil, err
	}
	var meta AuthServerMetadata
	if err := fetchJSON(ctx, client, metaURL, &meta); err != nil {
		return nil, err
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return nil, fmt.Errorf("authorization server metadata at %s is missing endpoints", metaURL)
	}
	return &meta, nil
}

// fallbackMetadata derives the conventional endpoints from an origin when no
// well-known metadata is published.
func fallbackMetadata(serverOrigin string) *AuthServerMetadata {
	return &AuthServerMetadata{
		Issuer:                serverOrigin,
		AuthorizationEndpoint: serverOrigin + "/authorize",
		TokenEndpoint:         serverOrigin + "/token",
		RegistrationEndpoint:  serverOrigin + "/register",
	}
}

// DiscoverEndpoints finds the authorization server for an upstream MCP URL.
// Order: an explicit authorizationServer override from config, then RFC 9728
// protected-resource metadata, then RFC 8414 metadata at the server's own
// origin, then the conventional /authorize /token /register endpoints.
func DiscoverEndpoints(ctx context.Context, client *http.Client, serverURL, authServerOverride string) (*AuthServerMetadata, error) {
	if authServerOverride != "" {
		meta, err := fetchAuthServerMetadata(ctx, client, authServerOverride)
		if err == nil {
			return meta, nil
		}
		logger.Debugf("No metadata at configured authorization server %s: %v", authServerOverride, err)
		o, oerr := origin(authServerOverride)
		if oerr != nil {
			return nil, oerr
		}
		return fallbackMetadata(o), nil
	}

	o, err := origin(serverURL)
	if err != nil {
		return nil, err
	}

	var prm ProtectedResourceMetadata
	if err := fetchJSON(ctx, client, o+protectedResourcePath, &prm); err == nil && len(prm.AuthorizationServers) > 0 {
		meta, merr := fetchAuthServerMetadata(ctx, client, prm.AuthorizationServers[0])
		if merr == nil {
			return meta, nil
		}
		logger.Debugf("Protected resource names %s but its metadata is unreachable: %v",
			prm.AuthorizationServers[0], merr)
	} else if err != nil {
		logger.Debugf("No protected resource metadata at %s: %v", o, err)
	}

	meta, err := fetchAuthServerMetadata(ctx, client, o)
	if err == nil {
		return meta, nil
	}
	logger.Debugf("No authorization server metadata at %s, using conventional endpoints: %v", o, err)

	return fallbackMetadata(o), nil
}
