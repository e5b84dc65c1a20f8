// Package watcher triggers a callback when package files in a directory
// tree change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/huanfeng/pkgscope/pkg/utils"
)

// Handler receives the set of paths that changed since the last call.
type Handler func(ctx context.Context, changed []string) error

// Options configures a Watcher.
type Options struct {
	Recursive bool
	// Debounce is how long the tree must stay quiet before Handler runs.
	Debounce time.Duration
	// Match filters event paths. Nil accepts everything.
	Match func(path string) bool
}

// Watcher batches file events under a directory and hands them to a Handler.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	opts    Options
	handler Handler
	logger  utils.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	fire    chan struct{}
}

// New watches root, and its subdirectories when opts.Recursive is set.
func New(root string, opts Options, handler Handler, logger utils.Logger) (*Watcher, error) {
	if logger == nil {
		logger = utils.NopLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		watcher: fsw,
		root:    root,
		opts:    opts,
		handler: handler,
		logger:  logger,
		pending: make(map[string]struct{}),
		fire:    make(chan struct{}, 1),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	if !w.opts.Recursive {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			w.logger.Warn("cannot watch %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is done. Handler errors are logged and do
// not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.logger.Info("watching %s (debounce %s)", w.root, w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error: %v", err)

		case <-w.fire:
			changed := w.drain()
			if len(changed) == 0 {
				continue
			}
			if err := w.handler(ctx, changed); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("handling %d changed files: %v", len(changed), err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if event.Op&fsnotify.Create != 0 && w.opts.Recursive {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("%v", err)
			}
			// files moved in with the directory raise no events of their own
			w.queueTree(event.Name)
			return
		}
	}
	w.logger.Debug("%s %s", event.Op, event.Name)
	w.queue(event.Name)
}

func (w *Watcher) queueTree(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			w.queue(path)
		}
		return nil
	})
}

// queue adds a matching path to the pending batch and restarts the debounce.
func (w *Watcher) queue(path string) {
	if w.opts.Match != nil && !w.opts.Match(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.pending))
	for p := range w.pending {
		out = append(out, p)
	}
	w.pending = make(map[string]struct{})
	return out
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
