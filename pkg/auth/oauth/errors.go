// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package oauth implements the OAuth 2.1 client side used to authenticate
// against upstream MCP servers: endpoint discovery, dynamic client
// registration, the authorization-code + PKCE flow and token persistence.
package oauth

import "errors"

var (
	// ErrNoSession indicates that no usable OAuth session is stored for an
	// upstream. The remedy is running the interactive flow.
	ErrNoSession = errors.New("no OAuth session")

	// ErrStateMismatch indicates a callback whose state parameter did not
	// match the one sent. Treated as a CSRF attempt.
	ErrStateMismatch = errors.New("invalid state parameter")

	// ErrMissingCode indicates a callback without an authorization code.
	ErrMissingCode = errors.New("missing authorization code")

	// ErrCallbackTimeout indicates the user did not complete the browser
	// flow within the callback wait window.
	ErrCallbackTimeout = errors.New("timed out waiting for OAuth callback")
)
