// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package networking provides small network helpers shared by the OAuth
// callback server and the HTTP-facing clients.
package networking

import (
	"fmt"
	"net"

	"github.com/pleasehq/please/pkg/logger"
)

const (
	// DefaultCallbackPort is the first port tried for the OAuth callback server.
	DefaultCallbackPort = 3334
	// MaxAttempts is the maximum number of consecutive ports to probe.
	MaxAttempts = 10
)

// IsAvailable checks if a port is available
func IsAvailable(port int) bool {
	// Check TCP
	tcpAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}

	tcpListener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return false
	}
	tcpListener.Close()

	// Check UDP
	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}

	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return false
	}
	udpConn.Close()

	return true
}

// FindAvailableCallbackPort probes basePort and up to MaxAttempts consecutive
// ports, returning the first one that can be bound. When basePort itself is
// busy a warning is logged so the user can tell why the redirect URI moved.
func FindAvailableCallbackPort(basePort int) (int, error) {
	for offset := 0; offset < MaxAttempts; offset++ {
		port := basePort + offset
		if IsAvailable(port) {
			if offset > 0 {
				logger.Warnf("Callback port %d is busy, using %d instead", basePort, port)
			}
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available callback port in range %d-%d", basePort, basePort+MaxAttempts-1)
}
