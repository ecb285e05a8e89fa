// SPDX-License-Identifier: MIT

// Package daemon runs the filechain HTTP server and its background tasks and
// tears everything down in order on shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/filechain/internal/log"
)

const defaultShutdownTimeout = 15 * time.Second

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// Daemon owns the HTTP server lifecycle.
type Daemon struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
	server *http.Server

	mu      sync.Mutex
	hooks   []namedHook
	running bool
	addr    net.Addr
	ready   chan struct{}
}

// New creates a daemon with the given configuration and dependencies.
func New(cfg Config, deps Deps) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if cfg.ListenAddr == "" {
		return nil, ErrMissingListenAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Daemon{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str(log.FieldComponent, "daemon").Logger(),
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           deps.Handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		ready: make(chan struct{}),
	}, nil
}

// RegisterShutdownHook registers a cleanup function to be called after the
// server and all tasks have stopped.
func (d *Daemon) RegisterShutdownHook(name string, hook ShutdownHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, namedHook{name: name, hook: hook})
}

// Ready is closed once the listener is bound.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Addr returns the bound listen address, or nil before Ready.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Run serves HTTP and runs the tasks until ctx is cancelled or one of them
// fails, then shuts the server down and executes the shutdown hooks.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.mu.Unlock()

	ln, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		hookErr := d.runHooks()
		return errors.Join(fmt.Errorf("%w: %v", ErrServerStartFailed, err), hookErr)
	}
	d.mu.Lock()
	d.addr = ln.Addr()
	d.mu.Unlock()
	close(d.ready)

	d.logger.Info().
		Str(log.FieldEvent, "server.listening").
		Str("addr", ln.Addr().String()).
		Bool("tls", d.cfg.TLSEnabled()).
		Int("tasks", len(d.deps.Tasks)).
		Msg("HTTP server listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if d.cfg.TLSEnabled() {
			err = d.server.ServeTLS(ln, d.cfg.TLSCert, d.cfg.TLSKey)
		} else {
			err = d.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	for _, task := range d.deps.Tasks {
		g.Go(func() error {
			if err := task.Run(gctx); err != nil {
				d.logger.Error().Err(err).
					Str(log.FieldEvent, "task.failed").
					Str("task", task.Name).
					Msg("background task failed")
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		d.logger.Info().Str(log.FieldEvent, "server.shutdown").Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if hookErr := d.runHooks(); hookErr != nil {
		err = errors.Join(err, hookErr)
	}
	d.logger.Info().Str(log.FieldEvent, "server.stopped").Msg("daemon stopped")
	return err
}

func (d *Daemon) runHooks() error {
	d.mu.Lock()
	hooks := d.hooks
	d.hooks = nil
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			d.logger.Error().Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		d.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}
	return errors.Join(errs...)
}
