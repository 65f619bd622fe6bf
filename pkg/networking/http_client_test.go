// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewHttpClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewHttpClient(0)
	assert.Equal(t, HttpTimeout, c.Timeout)

	c = NewHttpClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestIsLocalhost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:3334/callback", true},
		{"http://127.0.0.1:8080", true},
		{"http://[::1]:8080", true},
		{"https://example.com", false},
		{"http://192.168.1.10", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLocalhost(tt.url), tt.url)
	}
}
