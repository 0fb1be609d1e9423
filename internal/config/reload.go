package config

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches a TOML config file and emits a fresh File whenever its
// contents change, grounded on ariadne's HotReloadSystem
// (engine/internal/runtime/runtime.go). Only the AutonomySection fields
// documented as safe to change live (metrics backend, tracing, retransmit
// interval) are meant to be applied by a caller; LayoutPath and the sim/
// teleop sections are identity-establishing and require a restart, matching
// §7's "Configuration errors — fatal at startup only; never fatal after
// the main loop begins" (hot reload never introduces a new fatal path).
type Reloader struct {
	path    string
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	watching   bool
	lastSHA256 string
}

// NewReloader constructs a Reloader for the config file at path.
func NewReloader(path string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	return &Reloader{path: path, watcher: watcher}, nil
}

// Watch starts watching the config file's directory (fsnotify cannot
// reliably watch a single file across editors that replace-on-save) and
// returns a channel of freshly decoded Files, one per detected change, and
// an error channel for read/parse failures. Both channels close when ctx
// is cancelled.
func (r *Reloader) Watch(ctx context.Context) (<-chan *File, <-chan error) {
	changes := make(chan *File, 4)
	errs := make(chan error, 4)

	r.mu.Lock()
	if r.watching {
		r.mu.Unlock()
		close(changes)
		close(errs)
		return changes, errs
	}
	dir := filepath.Dir(r.path)
	if err := r.watcher.Add(dir); err != nil {
		r.mu.Unlock()
		errs <- fmt.Errorf("config: watch dir %s: %w", dir, err)
		close(changes)
		close(errs)
		return changes, errs
	}
	r.watching = true
	r.mu.Unlock()

	go func() {
		defer close(changes)
		defer close(errs)
		defer func() { _ = r.watcher.Close() }()
		for {
			select {
			case ev, ok := <-r.watcher.Events:
				if !ok {
					return
				}
				if ev.Name != r.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				f, changed, err := r.loadIfChanged()
				if err != nil {
					errs <- err
					continue
				}
				if changed {
					changes <- f
				}
			case err, ok := <-r.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()
	return changes, errs
}

func (r *Reloader) loadIfChanged() (*File, bool, error) {
	f, err := Load(r.path)
	if err != nil {
		return nil, false, err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, false, fmt.Errorf("config: checksum: %w", err)
	}
	sum := fmt.Sprintf("%x", sha256.Sum256(data))

	r.mu.Lock()
	defer r.mu.Unlock()
	if sum == r.lastSHA256 {
		return f, false, nil
	}
	r.lastSHA256 = sum
	return f, true, nil
}

// Close stops watching.
func (r *Reloader) Close() error {
	return r.watcher.Close()
}
