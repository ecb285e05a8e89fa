// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the listener settings of the daemon.
type Config struct {
	// ListenAddr is the HTTP server listen address
	ListenAddr string

	// ReadHeaderTimeout bounds slow clients sending headers
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout
	ShutdownTimeout time.Duration

	// TLSCert and TLSKey switch the listener to HTTPS when both are set
	TLSCert string
	TLSKey  string
}

// TLSEnabled reports whether the daemon serves HTTPS.
func (c Config) TLSEnabled() bool { return c.TLSCert != "" && c.TLSKey != "" }

// Task is a background subsystem that runs until its context is cancelled.
// A non-nil error from Run stops the daemon.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Deps contains the components the daemon runs.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Handler serves every HTTP route
	Handler http.Handler

	// Tasks run alongside the HTTP server
	Tasks []Task
}

// Validate checks that the required dependencies are set.
func (d Deps) Validate() error {
	if d.Handler == nil {
		return ErrMissingHandler
	}
	return nil
}
