package scriptcore

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HotReloadWatcher watches WatcherConfig.Roots for filesystem changes and
// reports the set of changed module ids on each Poll call. Events are
// collected on an internal goroutine (the only thread-safe boundary here
// besides Poll/Close) and debounced so a save-triggered burst of writes
// collapses into one reported change per id per poll.
type HotReloadWatcher struct {
	cfg      WatcherConfig
	resolver *ModuleResolver
	log      *slog.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]time.Time // moduleId -> time of most recent event
	done    chan struct{}
}

// NewHotReloadWatcher constructs a watcher over cfg.Roots. If cfg.Enabled
// is false, the returned watcher's Poll always returns an empty set and no
// filesystem watch is installed.
func NewHotReloadWatcher(cfg WatcherConfig, resolver *ModuleResolver, log *slog.Logger) (*HotReloadWatcher, error) {
	if log == nil {
		log = NewLogger()
	}
	w := &HotReloadWatcher{cfg: cfg, resolver: resolver, log: log, pending: make(map[string]time.Time)}

	if !cfg.Enabled {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, root := range cfg.Roots {
		if err := fsw.Add(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	w.watcher = fsw
	w.done = make(chan struct{})
	go w.run()
	return w, nil
}

func (w *HotReloadWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *HotReloadWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	moduleID := w.pathToModuleID(event.Name)
	if moduleID == "" {
		return
	}

	w.mu.Lock()
	w.pending[moduleID] = time.Now()
	w.mu.Unlock()
}

// pathToModuleID converts a filesystem path reported by fsnotify into a
// module id relative to the first configured root that contains it.
func (w *HotReloadWatcher) pathToModuleID(path string) string {
	for _, root := range w.cfg.Roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		id, err := w.resolver.norm.Normalize(rel)
		if err != nil {
			continue
		}
		return id
	}
	return ""
}

// Poll returns the set of module ids changed since the last Poll call,
// collapsing repeated events for the same id. An id is only reported once
// its debounce window has elapsed without a further event, so a burst of
// saves yields exactly one change per id.
func (w *HotReloadWatcher) Poll() []string {
	if !w.cfg.Enabled {
		return nil
	}

	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for id, seenAt := range w.pending {
		if now.Sub(seenAt) >= w.cfg.DebounceWindow {
			ready = append(ready, id)
			delete(w.pending, id)
		}
	}
	return ready
}

// Close stops the underlying filesystem watch, if any.
func (w *HotReloadWatcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	return w.watcher.Close()
}
