// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads, merges and fingerprints the upstream MCP server
// configuration files across the user, project and local scopes.
package config

import (
	"errors"
	"fmt"
)

// Scope identifies one of the three configuration files.
type Scope string

const (
	// ScopeUser is the cross-project file under the user's home directory.
	ScopeUser Scope = "user"
	// ScopeProject is the version-controlled file under the working directory.
	ScopeProject Scope = "project"
	// ScopeLocal is the per-checkout, gitignored file under the working directory.
	ScopeLocal Scope = "local"
)

// AuthType enumerates the supported upstream authorization modes.
type AuthType string

const (
	// AuthTypeNone means no credentials are sent.
	AuthTypeNone AuthType = "none"
	// AuthTypeBearer sends a static bearer token from the config file.
	AuthTypeBearer AuthType = "bearer"
	// AuthTypeOAuth runs the OAuth 2.1 authorization-code flow.
	AuthTypeOAuth AuthType = "oauth2"
)

// TransportType enumerates the supported MCP transports.
type TransportType string

const (
	// TransportStdio spawns the upstream as a subprocess.
	TransportStdio TransportType = "stdio"
	// TransportHTTP uses the streamable HTTP transport.
	TransportHTTP TransportType = "http"
	// TransportSSE uses the legacy server-sent-events transport.
	TransportSSE TransportType = "sse"
)

// ErrInvalidServerConfig is returned when a server entry is missing the
// fields its transport requires.
var ErrInvalidServerConfig = errors.New("invalid server configuration")

// OAuthOptions carries the optional oauth2 sub-configuration.
type OAuthOptions struct {
	Scopes              []string `json:"scopes,omitempty"`
	Resource            string   `json:"resource,omitempty"`
	AuthorizationServer string   `json:"authorizationServer,omitempty"`
}

// Authorization is the sum type attached to an upstream server entry.
type Authorization struct {
	Type  AuthType      `json:"type"`
	Token string        `json:"token,omitempty"`
	OAuth *OAuthOptions `json:"oauth,omitempty"`
}

// ServerConfig describes a single upstream MCP server. Exactly one of the
// stdio fields (command) or the network fields (url) must be set.
type ServerConfig struct {
	Command       string            `json:"command,omitempty"`
	Args          []string          `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	URL           string            `json:"url,omitempty"`
	Transport     TransportType     `json:"transport,omitempty"`
	Authorization *Authorization    `json:"authorization,omitempty"`
}

// MCPConfig is the schema shared by all three config files.
type MCPConfig struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// EffectiveTransport returns the transport for a server, inferring it when
// the config does not set one: a URL implies streamable HTTP, otherwise stdio.
func (s *ServerConfig) EffectiveTransport() TransportType {
	if s.Transport != "" {
		return s.Transport
	}
	if s.URL != "" {
		return TransportHTTP
	}
	return TransportStdio
}

// AuthorizationType returns the authorization mode, defaulting to none.
func (s *ServerConfig) AuthorizationType() AuthType {
	if s.Authorization == nil || s.Authorization.Type == "" {
		return AuthTypeNone
	}
	return s.Authorization.Type
}

// Validate checks that the entry carries the fields its transport requires.
func (s *ServerConfig) Validate(name string) error {
	switch s.EffectiveTransport() {
	case TransportStdio:
		if s.Command == "" {
			return fmt.Errorf("%w: server %q uses stdio but has no command", ErrInvalidServerConfig, name)
		}
	case TransportHTTP, TransportSSE:
		if s.URL == "" {
			return fmt.Errorf("%w: server %q uses %s but has no url", ErrInvalidServerConfig, name, s.EffectiveTransport())
		}
	default:
		return fmt.Errorf("%w: server %q has unknown transport %q", ErrInvalidServerConfig, name, s.Transport)
	}

	switch s.AuthorizationType() {
	case AuthTypeNone, AuthTypeOAuth:
	case AuthTypeBearer:
		if s.Authorization.Token == "" {
			return fmt.Errorf("%w: server %q uses bearer auth but has no token", ErrInvalidServerConfig, name)
		}
	default:
		return fmt.Errorf("%w: server %q has unknown authorization type %q", ErrInvalidServerConfig, name, s.Authorization.Type)
	}

	return nil
}
