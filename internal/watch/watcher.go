// Package watch monitors a directory for new WAV files and hands each one to
// a transcription callback. Used by `recap -watch DIR` to transcribe
// recordings dropped in by other tools.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tiroq/recap/internal/diaglog"
)

// Handler is invoked once per newly appeared WAV file.
type Handler func(path string)

// Watcher follows a directory for .wav creations.
type Watcher struct {
	dir     string
	handler Handler

	// settle is how long a file must sit unchanged before it is handed to
	// the handler. Writers rarely produce a WAV atomically.
	settle time.Duration

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// New creates a Watcher over dir.
func New(dir string, handler Handler) *Watcher {
	return &Watcher{
		dir:     dir,
		handler: handler,
		settle:  500 * time.Millisecond,
	}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (w *Watcher) SetLogger(l *diaglog.Logger) {
	w.loggerMu.Lock()
	w.logger = l
	w.loggerMu.Unlock()
}

func (w *Watcher) log(entry diaglog.LogEntry) {
	w.loggerMu.RLock()
	l := w.logger
	w.loggerMu.RUnlock()
	if l == nil {
		return
	}
	entry.Component = diaglog.ComponentWatcher
	l.Log(entry)
}

// Run watches until ctx is cancelled. Each new .wav file is passed to the
// handler after a short settle delay so half-written files are not picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	// pending maps path to the timer that fires once the file has settled.
	pending := make(map[string]*time.Timer)
	var mu sync.Mutex
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watch %s: event channel closed", w.dir)
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".wav") {
				continue
			}
			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				// Still being written, restart the settle timer.
				t.Reset(w.settle)
				mu.Unlock()
				continue
			}
			pending[path] = time.AfterFunc(w.settle, func() {
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				w.log(diaglog.LogEntry{
					Event:   diaglog.EventWatchFileDetected,
					Payload: map[string]interface{}{"path": path},
				})
				w.handler(path)
			})
			mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watch %s: error channel closed", w.dir)
			}
			return fmt.Errorf("watch %s: %w", w.dir, err)
		}
	}
}
