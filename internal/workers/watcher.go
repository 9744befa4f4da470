package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher observes collection directories and calls OnChange with the key
// of a directory once its events have been quiet for the debounce period.
// Hidden files (temp files, locks) are ignored.
type Watcher struct {
	debounce time.Duration
	onChange func(key string)

	dirs map[string][]string

	mu     sync.Mutex
	timers map[string]*time.Timer

	logger *logger.Logger
}

// NewWatcher returns a watcher that reports changes through onChange.
func NewWatcher(debounce time.Duration, onChange func(key string), log *logger.Logger) *Watcher {
	return &Watcher{
		debounce: debounce,
		onChange: onChange,
		dirs:     make(map[string][]string),
		timers:   make(map[string]*time.Timer),
		logger:   log,
	}
}

// Add registers dir under key. Several keys may share a directory. Add must
// be called before Run.
func (w *Watcher) Add(dir, key string) {
	dir = filepath.Clean(dir)
	for _, k := range w.dirs[dir] {
		if k == key {
			return
		}
	}
	w.dirs[dir] = append(w.dirs[dir], key)
}

// Len returns the number of watched directories.
func (w *Watcher) Len() int {
	return len(w.dirs)
}

// Run implements [Worker]. It watches the registered directories until ctx
// is cancelled. Pending debounced callbacks are dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
		w.stopTimers()
	}()

	for dir := range w.dirs {
		if err = fw.Add(dir); err != nil {
			w.logger.Err(err).Str("func", "*Watcher.Run").Str("dir", dir).Msg("error watching directory")
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Err(err).Str("func", "*Watcher.Run").Msg("watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	for _, key := range w.dirs[filepath.Dir(event.Name)] {
		w.schedule(key)
	}
}

func (w *Watcher) schedule(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[key]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()
		w.onChange(key)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, t := range w.timers {
		t.Stop()
		delete(w.timers, key)
	}
}
