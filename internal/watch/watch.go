// SPDX-License-Identifier: MIT

// Package watch re-checks stored files against the chain whenever they change
// on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/filechain/internal/ledger"
	"github.com/ManuGH/filechain/internal/log"
)

// FileChecker verifies one stored file.
type FileChecker interface {
	CheckFile(ctx context.Context, name string) (ledger.FileStatus, error)
}

// Watcher feeds file system changes in one directory to a FileChecker.
// Bursts of events for the same name are coalesced into one check that runs
// once the name has been quiet for the debounce interval.
type Watcher struct {
	dir      string
	debounce time.Duration
	checker  FileChecker
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher for dir.
func New(dir string, debounce time.Duration, checker FileChecker) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		checker:  checker,
		logger:   log.WithComponent("watch").With().Str(log.FieldPath, dir).Logger(),
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation and an
// error if the watch cannot be established or the event stream fails.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = log.WithSurface(ctx, log.SurfaceWatch)
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info().Str(log.FieldEvent, "watch.started").Dur("debounce", w.debounce).Msg("watching upload directory")

	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str(log.FieldEvent, "watch.stopped").Msg("stopped watching upload directory")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			w.handle(ctx, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			w.logger.Warn().Err(err).Str(log.FieldEvent, "watch.error").Msg("file watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Base(event.Name)
	// Hidden names include in-flight atomic-write temp files.
	if strings.HasPrefix(name, ".") {
		return
	}
	w.schedule(ctx, name)
}

// schedule (re)arms the debounce timer for name.
func (w *Watcher) schedule(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[name]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[name] == t {
			delete(w.pending, name)
		}
		w.mu.Unlock()
		w.check(ctx, name)
	})
	w.pending[name] = t
}

func (w *Watcher) check(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	st, err := w.checker.CheckFile(ctx, name)
	if err != nil {
		w.logger.Error().Err(err).Str(log.FieldEvent, "watch.check_failed").Str(log.FieldFilename, name).Msg("file check failed")
		return
	}
	w.logger.Debug().Str(log.FieldEvent, "watch.checked").
		Str(log.FieldFilename, name).
		Str("status", st.Status).
		Msg("file checked")
}

// stop cancels pending checks and waits for running ones.
func (w *Watcher) stop() {
	w.mu.Lock()
	for name, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, name)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
