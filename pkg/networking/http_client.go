// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// HttpTimeout is the default timeout for outgoing HTTP requests
const HttpTimeout = 30 * time.Second

// NewHttpClient returns an HTTP client with sane connection timeouts for
// talking to OAuth endpoints and remote embedding APIs.
func NewHttpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = HttpTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// IsLocalhost returns true if the URL's host resolves to a loopback address.
// Plain-HTTP OAuth endpoints are only acceptable on localhost.
func IsLocalhost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	hostname := u.Hostname()
	if hostname == "localhost" {
		return true
	}

	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}
