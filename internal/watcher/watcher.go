// Package watcher reports changes to a fixed set of files, debounced so
// that an editor's burst of writes triggers a single callback.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"resumefit/internal/errors"
)

// DefaultDebounceDelay is used when no delay is configured
const DefaultDebounceDelay = time.Second

// Watcher watches files for changes and invokes a callback with the files
// that actually changed.
type Watcher struct {
	mu sync.RWMutex

	files       []string
	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	changeChan chan struct{}

	onChange func(changed []string)
	logger   *errors.Logger

	running bool
}

// New creates a watcher over files. Paths are made absolute so events
// from the directory watch can be matched against them.
func New(files []string, debounceDelay time.Duration, onChange func(changed []string), logger *errors.Logger) (*Watcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounceDelay
	}

	abs := make([]string, 0, len(files))
	for _, file := range files {
		if file == "" {
			continue
		}
		path, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		if !slices.Contains(abs, path) {
			abs = append(abs, path)
		}
	}

	return &Watcher{
		files:         abs,
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		changeChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}, nil
}

// Start begins watching the files
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("file watcher is already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsWatcher = fsWatcher

	if err := w.updateModTimes(); err != nil {
		w.closeWatcher()
		return fmt.Errorf("failed to get initial file modification times: %w", err)
	}

	for _, file := range w.files {
		if err := w.addFileToWatcher(file); err != nil {
			w.logger.Warn("Failed to watch file", "file", file, "error", err)
		}
	}

	w.running = true
	go w.watchLoop()

	w.logger.Info("File watcher started",
		"files", w.files,
		"debounce_delay", w.debounceDelay)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.running = false

	if err := w.fsWatcher.Close(); err != nil {
		w.logger.LogError(err, "Failed to close file system watcher")
		return err
	}

	w.logger.Info("File watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is currently running
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Files returns the absolute paths being watched
func (w *Watcher) Files() []string {
	return slices.Clone(w.files)
}

func (w *Watcher) closeWatcher() {
	if err := w.fsWatcher.Close(); err != nil {
		w.logger.LogError(err, "Failed to close file watcher during cleanup")
	}
}

// addFileToWatcher watches the directory of file, which also catches
// editors that save by writing a temporary file and renaming it.
func (w *Watcher) addFileToWatcher(file string) error {
	dir := filepath.Dir(file)
	if slices.Contains(w.fsWatcher.WatchList(), dir) {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

// updateModTimes records the current modification time of every file
func (w *Watcher) updateModTimes() error {
	for _, file := range w.files {
		if stat, err := os.Stat(file); err == nil {
			w.lastModTime[file] = stat.ModTime()
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat file %s: %w", file, err)
		}
	}
	return nil
}

// hasFileChanged checks if a file has been modified since last check
func (w *Watcher) hasFileChanged(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			if _, exists := w.lastModTime[file]; exists {
				delete(w.lastModTime, file)
				return true
			}
		}
		return false
	}

	lastMod, exists := w.lastModTime[file]
	if !exists || !stat.ModTime().Equal(lastMod) {
		w.lastModTime[file] = stat.ModTime()
		return true
	}
	return false
}

// watchLoop is the main event loop for file watching
func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.scheduleChange()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "File watcher error")

		case <-w.changeChan:
			var changed []string
			for _, file := range w.files {
				if w.hasFileChanged(file) {
					changed = append(changed, file)
				}
			}
			if len(changed) > 0 {
				w.logger.Debug("Watched files changed", "files", changed)
				w.onChange(changed)
			}

		case <-w.stopChan:
			return
		}
	}
}

// shouldProcessEvent reports whether event touches a watched file
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || !slices.Contains(w.files, name) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// scheduleChange schedules a debounced change check
func (w *Watcher) scheduleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.changeChan <- struct{}{}:
		default:
			// a check is already pending
		}
	})
}
