// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// occupyPort binds a TCP listener on the given port for the duration of the
// test. Returns false if the port was already taken by something else.
func occupyPort(t *testing.T, port int) bool {
	t.Helper()
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	t.Cleanup(func() { l.Close() })
	return true
}

func TestFindAvailableCallbackPort(t *testing.T) {
	t.Parallel()

	// High base to avoid colliding with anything on the test host.
	base := 42310

	port, err := FindAvailableCallbackPort(base)
	require.NoError(t, err)
	assert.Equal(t, base, port)
}

func TestFindAvailableCallbackPortSkipsBusyPort(t *testing.T) {
	t.Parallel()

	base := 42330
	if !occupyPort(t, base) {
		t.Skipf("port %d unavailable on test host", base)
	}

	port, err := FindAvailableCallbackPort(base)
	require.NoError(t, err)
	assert.Equal(t, base+1, port)
}

func TestFindAvailableCallbackPortExhaustion(t *testing.T) {
	t.Parallel()

	base := 42350
	for i := 0; i < MaxAttempts; i++ {
		if !occupyPort(t, base+i) {
			t.Skipf("port %d unavailable on test host", base+i)
		}
	}

	_, err := FindAvailableCallbackPort(base)
	require.Error(t, err)
	// The error names the full probed range.
	assert.Contains(t, err.Error(), fmt.Sprintf("%d-%d", base, base+MaxAttempts-1))
}

func TestIsAvailable(t *testing.T) {
	t.Parallel()

	port := 42370
	if !occupyPort(t, port) {
		t.Skipf("port %d unavailable on test host", port)
	}

	assert.False(t, IsAvailable(port))
}
