package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"banter/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// PromptWatcher watches the configured prompt template files and reloads
// them after edits settle. Reloaded contents are delivered through the
// OnChange callback; callers decide how to swap templates in.
type PromptWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	cfg         *Config
	onChange    func(PromptFiles)
	files       map[string]bool // cleaned paths of interest
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats PromptWatcherStats
}

// PromptWatcherStats tracks watcher activity for debugging.
type PromptWatcherStats struct {
	Events        int
	Reloads       int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// NewPromptWatcher creates a watcher over cfg's prompt template files.
// onChange is invoked with freshly loaded contents after each settled edit.
func NewPromptWatcher(cfg *Config, onChange func(PromptFiles)) (*PromptWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool)
	if cfg.Prompts.SystemFile != "" {
		files[filepath.Clean(cfg.Prompts.SystemFile)] = true
	}
	if cfg.Prompts.ExamplesFile != "" {
		files[filepath.Clean(cfg.Prompts.ExamplesFile)] = true
	}

	pw := &PromptWatcher{
		watcher:     watcher,
		cfg:         cfg,
		onChange:    onChange,
		files:       files,
		debounceMap: make(map[string]time.Time),
		debounceDur: cfg.GetPromptDebounce(),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	return pw, nil
}

// Start begins watching. Editors commonly replace files by rename, so the
// parent directories are watched and events are filtered down to the
// configured files. Non-blocking; no-op when no files are configured.
func (pw *PromptWatcher) Start(ctx context.Context) error {
	pw.mu.Lock()
	if pw.running || len(pw.files) == 0 {
		pw.mu.Unlock()
		return nil
	}
	pw.running = true
	pw.mu.Unlock()

	dirs := make(map[string]bool)
	for path := range pw.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := pw.watcher.Add(dir); err != nil {
			logging.Get(logging.CategoryBoot).Warn("PromptWatcher: watch failed for %s: %v", dir, err)
		} else {
			logging.Boot("PromptWatcher: watching directory: %s", dir)
		}
	}

	go pw.run(ctx)

	return nil
}

// Stop stops the watcher and waits for cleanup.
func (pw *PromptWatcher) Stop() {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return
	}
	pw.running = false
	pw.mu.Unlock()

	close(pw.stopCh)
	<-pw.doneCh

	if err := pw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryBoot).Error("PromptWatcher: error closing watcher: %v", err)
	}
	logging.Boot("PromptWatcher: stopped")
}

// run is the main event loop for the watcher.
func (pw *PromptWatcher) run(ctx context.Context) {
	defer close(pw.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.BootDebug("PromptWatcher: context cancelled")
			return

		case <-pw.stopCh:
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Error("PromptWatcher error: %v", err)
			pw.mu.Lock()
			pw.stats.Errors++
			pw.mu.Unlock()

		case <-debounceTicker.C:
			pw.processDebouncedEvents()
		}
	}
}

// handleEvent records a single filesystem event for later processing.
func (pw *PromptWatcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.files[path] {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	logging.BootDebug("PromptWatcher: %s changed", path)
	pw.stats.Events++
	pw.stats.LastEventPath = path
	pw.stats.LastEventTime = time.Now()
	pw.debounceMap[path] = time.Now()
}

// processDebouncedEvents reloads templates once edits have settled.
func (pw *PromptWatcher) processDebouncedEvents() {
	pw.mu.Lock()
	now := time.Now()
	settled := 0
	for path, eventTime := range pw.debounceMap {
		if now.Sub(eventTime) >= pw.debounceDur {
			delete(pw.debounceMap, path)
			settled++
		}
	}
	pw.mu.Unlock()

	if settled == 0 {
		return
	}

	// One reload covers all settled files; templates are read as a set.
	pf, err := pw.cfg.LoadPrompts()
	if err != nil {
		logging.Get(logging.CategoryBoot).Error("PromptWatcher: reload failed: %v", err)
		pw.mu.Lock()
		pw.stats.Errors++
		pw.mu.Unlock()
		return
	}

	pw.mu.Lock()
	pw.stats.Reloads++
	pw.mu.Unlock()

	logging.Boot("PromptWatcher: prompt templates reloaded")
	if pw.onChange != nil {
		pw.onChange(pf)
	}
}

// GetStats returns the current watcher statistics.
func (pw *PromptWatcher) GetStats() PromptWatcherStats {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.stats
}

// IsWatching returns true if the watcher is currently running.
func (pw *PromptWatcher) IsWatching() bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.running
}
