// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch reports changes made to the conversations directory,
// including edits by other processes sharing the same data directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/rigrun-chatstore/internal/storage"
	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// DefaultDebounce coalesces the burst of events one save produces.
const DefaultDebounce = 200 * time.Millisecond

// =============================================================================
// EVENTS
// =============================================================================

// Kind classifies a change.
type Kind int

const (
	// IndexChanged means index.json was rewritten or removed.
	IndexChanged Kind = iota + 1
	// ConversationWritten means a conversation file was created or replaced.
	ConversationWritten
	// ConversationRemoved means a conversation file no longer exists.
	ConversationRemoved
)

func (k Kind) String() string {
	switch k {
	case IndexChanged:
		return "index_changed"
	case ConversationWritten:
		return "written"
	case ConversationRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one debounced change.
type Event struct {
	Kind     Kind      `json:"kind"`
	Filename string    `json:"filename"`
	Time     time.Time `json:"time"`
}

// Handler receives events. It is always called from a single goroutine.
type Handler func(Event)

// =============================================================================
// WATCHER
// =============================================================================

// Watcher watches one conversations directory with fsnotify.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler
	logger   *log.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time // filename -> last raw event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithLogger routes watcher diagnostics to logger.
func WithLogger(logger *log.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for dir. A debounce <= 0 uses DefaultDebounce.
// Nothing is watched until Start.
func New(dir string, debounce time.Duration, handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: handler is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  handler,
		logger:   log.Default(),
		watcher:  fsw,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. Events are delivered until Close.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()

	w.logger.Printf("WATCH_START | dir=%s debounce=%s", w.dir, w.debounce)
	return nil
}

// Close stops watching and waits for the handler goroutine to exit.
// Changes still inside their debounce window are dropped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

// processEvents records raw fsnotify events as pending changes.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			name := filepath.Base(event.Name)
			if util.IsTempFile(name) {
				continue
			}
			w.mu.Lock()
			w.pending[name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("WATCH_ERROR | dir=%s error=%v", w.dir, err)
		}
	}
}

// processPending flushes changes that have been quiet for the debounce window.
func (w *Watcher) processPending() {
	defer w.wg.Done()

	ticker := time.NewTicker(tickInterval(w.debounce))
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case now := <-ticker.C:
			for _, name := range w.due(now) {
				if event, ok := w.classify(name, now); ok {
					w.handler(event)
				}
			}
		}
	}
}

// due removes and returns the pending names whose debounce has elapsed,
// oldest first.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for name, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, name)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := w.pending[ready[i]], w.pending[ready[j]]
		if a.Equal(b) {
			return ready[i] < ready[j]
		}
		return a.Before(b)
	})
	for _, name := range ready {
		delete(w.pending, name)
	}
	return ready
}

// classify turns a settled filename into an event by looking at what is on
// disk now. Directories are ignored.
func (w *Watcher) classify(name string, now time.Time) (Event, bool) {
	event := Event{Filename: name, Time: now}

	info, err := os.Stat(filepath.Join(w.dir, name))
	switch {
	case name == storage.IndexFileName:
		event.Kind = IndexChanged
	case err == nil && info.IsDir():
		return Event{}, false
	case err == nil:
		event.Kind = ConversationWritten
	default:
		event.Kind = ConversationRemoved
	}
	return event, true
}

func tickInterval(debounce time.Duration) time.Duration {
	tick := debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	if tick > 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	return tick
}
