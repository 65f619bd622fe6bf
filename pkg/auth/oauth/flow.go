// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/pleasehq/please/pkg/logger"
)

// CallbackTimeout is the hard limit on waiting for the browser callback.
const CallbackTimeout = 5 * time.Minute

// FlowConfig contains configuration for one authorization-code flow.
type FlowConfig struct {
	// ClientID is the OAuth client ID.
	ClientID string

	// ClientSecret is the OAuth client secret (absent for public clients).
	ClientSecret string

	// AuthURL is the authorization endpoint URL.
	AuthURL string

	// TokenURL is the token endpoint URL.
	TokenURL string

	// Scopes are the OAuth scopes to request.
	Scopes []string

	// UsePKCE enables PKCE; set when the server advertises S256 support.
	UsePKCE bool

	// CallbackPort is the local port the callback server listens on.
	CallbackPort int

	// SkipBrowser prints the authorization URL instead of opening a browser.
	SkipBrowser bool
}

// Flow drives a single OAuth authorization-code exchange.
type Flow struct {
	config       *FlowConfig
	oauth2Config *oauth2.Config
	server       *http.Server

	codeVerifier  string
	codeChallenge string
	state         string
}

// TokenResult contains the result of a completed flow.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scope        string
	Claims       jwt.MapClaims
}

// NewFlow creates a new OAuth flow.
func NewFlow(config *FlowConfig) (*Flow, error) {
	if config == nil {
		return nil, errors.New("OAuth config cannot be nil")
	}
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.AuthURL == "" {
		return nil, errors.New("authorization URL is required")
	}
	if config.TokenURL == "" {
		return nil, errors.New("token URL is required")
	}
	if config.CallbackPort == 0 {
		return nil, errors.New("callback port is required")
	}

	flow := &Flow{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  RedirectURI(config.CallbackPort),
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
		},
	}

	if config.UsePKCE {
		if err := flow.generatePKCEParams(); err != nil {
			return nil, fmt.Errorf("failed to generate PKCE parameters: %w", err)
		}
	}

	if err := flow.generateState(); err != nil {
		return nil, fmt.Errorf("failed to generate state parameter: %w", err)
	}

	return flow, nil
}

// RedirectURI derives the callback redirect URI for a port.
func RedirectURI(port int) string {
	return fmt.Sprintf("http://localhost:%d/callback", port)
}

// generatePKCEParams generates PKCE code verifier and challenge
func (f *Flow) generatePKCEParams() error {
	// Code verifier of 43-128 characters per RFC 7636
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return fmt.Errorf("failed to generate code verifier: %w", err)
	}
	f.codeVerifier = base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(f.codeVerifier))
	f.codeChallenge = base64.RawURLEncoding.EncodeToString(hash[:])

	return nil
}

// generateState generates a random state parameter
func (f *Flow) generateState() error {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}
	f.state = base64.RawURLEncoding.EncodeToString(stateBytes)
	return nil
}

// Start runs the flow: serve the local callback endpoint, send the user's
// browser to the authorization URL and wait for the code to come back.
func (f *Flow) Start(ctx context.Context) (*TokenResult, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, CallbackTimeout, ErrCallbackTimeout)
	defer cancel()

	tokenChan := make(chan *oauth2.Token, 1)
	errorChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", f.handleCallback(tokenChan, errorChan))
	mux.HandleFunc("/", f.handleRoot())

	f.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", f.config.CallbackPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Debugf("Starting OAuth callback server on port %d", f.config.CallbackPort)
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChan <- fmt.Errorf("failed to start callback server: %w", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := f.server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Failed to shutdown OAuth callback server: %v", err)
		}
	}()

	authURL := f.buildAuthURL()

	if f.config.SkipBrowser {
		logger.Infof("Please open this URL in your browser: %s", authURL)
	} else {
		logger.Infof("Opening browser to: %s", authURL)
		if err := browser.OpenURL(authURL); err != nil {
			logger.Warnf("Failed to open browser: %v", err)
			logger.Infof("Please manually open this URL in your browser: %s", authURL)
		}
	}

	logger.Info("Waiting for OAuth callback...")

	select {
	case token := <-tokenChan:
		logger.Info("OAuth flow completed successfully")
		return f.processToken(token), nil
	case err := <-errorChan:
		return nil, fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("OAuth flow cancelled: %w", context.Cause(ctx))
	}
}

// buildAuthURL builds the authorization URL with appropriate parameters
func (f *Flow) buildAuthURL() string {
	opts := []oauth2.AuthCodeOption{
		// Force the consent screen so re-auth always yields a refresh token.
		oauth2.SetAuthURLParam("prompt", "consent"),
	}

	if f.config.UsePKCE {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", f.codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}

	return f.oauth2Config.AuthCodeURL(f.state, opts...)
}

// handleCallback handles the OAuth callback
func (f *Flow) handleCallback(tokenChan chan<- *oauth2.Token, errorChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errParam := query.Get("error"); errParam != "" {
			errDesc := query.Get("error_description")
			err := fmt.Errorf("OAuth error: %s - %s", errParam, errDesc)
			f.writeErrorPage(w, err)
			errorChan <- err
			return
		}

		// State mismatch means the callback was not triggered by our
		// authorization request.
		if query.Get("state") != f.state {
			f.writeErrorPage(w, ErrStateMismatch)
			errorChan <- ErrStateMismatch
			return
		}

		code := query.Get("code")
		if code == "" {
			f.writeErrorPage(w, ErrMissingCode)
			errorChan <- ErrMissingCode
			return
		}

		opts := []oauth2.AuthCodeOption{}
		if f.config.UsePKCE {
			opts = append(opts, oauth2.SetAuthURLParam("code_verifier", f.codeVerifier))
		}

		token, err := f.oauth2Config.Exchange(r.Context(), code, opts...)
		if err != nil {
			err = fmt.Errorf("failed to exchange code for token: %w", err)
			f.writeErrorPage(w, err)
			errorChan <- err
			return
		}

		f.writeSuccessPage(w)
		tokenChan <- token
	}
}

// setSecurityHeaders sets common security headers for all responses
func (*Flow) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'none'; object-src 'none';")
}

const pageStyle = `
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .info { background-color: #e7f3ff; border: 1px solid #b3d9ff; color: #0066cc; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }`

// handleRoot handles requests to the root path
func (f *Flow) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		f.setSecurityHeaders(w)
		htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>please OAuth</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>%s</style>
</head>
<body>
    <div class="container">
        <h1>please OAuth Authentication</h1>
        <div class="message info">
            <p>OAuth callback server is running. Please complete the authentication flow in your browser.</p>
        </div>
    </div>
</body>
</html>`, pageStyle)
		if _, err := w.Write([]byte(htmlContent)); err != nil {
			logger.Warnf("Failed to write HTML content: %v", err)
		}
	}
}

// writeSuccessPage writes a success page to the response
func (f *Flow) writeSuccessPage(w http.ResponseWriter) {
	f.setSecurityHeaders(w)
	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>Authentication Successful</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>%s</style>
</head>
<body>
    <div class="container">
        <h1>Authentication Successful!</h1>
        <div class="message success">
            <p>You have successfully authenticated. You can now close this window and return to the terminal.</p>
        </div>
    </div>
</body>
</html>`, pageStyle)
	if _, err := w.Write([]byte(htmlContent)); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}

// writeErrorPage writes an error page to the response
func (f *Flow) writeErrorPage(w http.ResponseWriter, err error) {
	f.setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)

	// HTML escape the error message to prevent XSS
	escapedError := html.EscapeString(err.Error())
	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>Authentication Failed</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>%s</style>
</head>
<body>
    <div class="container">
        <h1>Authentication Failed</h1>
        <div class="message error">
            <p>%s</p>
            <p>Please try again or contact support if the problem persists.</p>
        </div>
    </div>
</body>
</html>`, pageStyle, escapedError)
	if _, err := w.Write([]byte(htmlContent)); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}

// processToken converts the oauth2 token into a TokenResult, extracting JWT
// claims when the access token happens to be a JWT.
func (*Flow) processToken(token *oauth2.Token) *TokenResult {
	result := &TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}

	if scope, ok := token.Extra("scope").(string); ok {
		result.Scope = scope
	}

	if claims, err := extractJWTClaims(token.AccessToken); err == nil {
		result.Claims = claims
		logger.Debugf("Successfully extracted JWT claims from access token")
	} else {
		logger.Debugf("Could not extract JWT claims from access token (may be opaque token): %v", err)
	}

	return result
}

// extractJWTClaims attempts to extract claims from a JWT token without validation
func extractJWTClaims(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to extract claims")
	}

	return claims, nil
}
