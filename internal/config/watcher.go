package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"shellpilot/internal/logging"
)

// Watcher watches the config file for changes and hot-reloads the execution
// settings (auto_run / max_auto_risk) while a session is live. Only the
// execution settings are applied at runtime; everything else requires a
// restart.
type Watcher struct {
	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	path       string
	onChange   func(*Config)
	lastReload time.Time
	debounce   time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	running    bool
}

// NewWatcher creates a watcher for the config file at path. onChange is
// invoked with the freshly loaded config after every debounced write.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		path:     path,
		onChange: onChange,
		debounce: 500 * time.Millisecond, // editors fire multiple events per save
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watcher runs in a goroutine until
// Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the file: editors replace files on save and
	// a file watch dies with the old inode.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			recent := time.Since(w.lastReload) < w.debounce
			if !recent {
				w.lastReload = time.Now()
			}
			w.mu.Unlock()
			if recent {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				logging.Boot("config reload skipped: %v", err)
				continue
			}
			logging.Boot("config reloaded: auto_run=%v max_auto_risk=%s", cfg.Agent.AutoRun, cfg.Agent.MaxAutoRisk)
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Boot("config watcher error: %v", err)
		}
	}
}
