// SPDX-License-Identifier: MIT

package daemon

import "errors"

var (
	// ErrMissingHandler is returned when a daemon is created without an HTTP handler.
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrMissingListenAddr is returned when no listen address is configured.
	ErrMissingListenAddr = errors.New("listen address is required")

	// ErrServerStartFailed is returned when the listener cannot be opened.
	ErrServerStartFailed = errors.New("server failed to start")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("daemon already running")
)
