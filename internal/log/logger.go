// SPDX-License-Identifier: MIT

// Package log owns the process-wide zerolog logger and the request-scoped
// fields every component attaches to it.
package log

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config describes the global logger. Zero values fall back to info level,
// JSON on stdout and the service name "filechain".
type Config struct {
	Level   string
	Format  string
	Output  io.Writer
	Service string
	Version string
}

var global atomic.Pointer[zerolog.Logger]

// Configure replaces the global logger. filechaind calls it twice: with safe
// defaults at startup and again once the configuration is loaded.
func Configure(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: true}
	}
	if cfg.Service == "" {
		cfg.Service = "filechain"
	}

	b := zerolog.New(out).With().Timestamp().Str(FieldService, cfg.Service)
	if cfg.Version != "" {
		b = b.Str(FieldVersion, cfg.Version)
	}
	l := b.Logger()
	global.Store(&l)
}

func current() zerolog.Logger {
	if l := global.Load(); l != nil {
		return *l
	}
	Configure(Config{})
	return *global.Load()
}

// WithComponent returns the global logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return current().With().Str(FieldComponent, component).Logger()
}
