package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum spacing between change notifications.
const DefaultMinInterval = 500 * time.Millisecond

// Watcher watches one configuration file for changes.
//
// Editors often produce several events per save (truncate, write, rename).
// Events arriving faster than the minimum interval are coalesced into one
// trailing notification.
type Watcher struct {
	watcher   *fsnotify.Watcher
	callbacks []func(string)
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger

	limiter *rate.Limiter
	target  string

	pendingMu sync.Mutex
	pending   *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithMinInterval sets the minimum spacing between notifications.
func WithMinInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewWatcher creates a new configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		done:    make(chan struct{}),
		logger:  slog.Default(),
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts watching path. Only events for that file are reported.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// Watch the directory, not the file, to catch rename-on-save.
	dir := filepath.Dir(abs)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}

	w.mu.Lock()
	w.target = abs
	w.mu.Unlock()

	w.logger.Debug("watching configuration file", "path", abs)
	return nil
}

// OnChange registers a callback run with the file path after each change.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("configuration watcher started")

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			w.logger.Debug("configuration file changed", "file", event.Name, "op", event.Op.String())
			w.schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.pendingMu.Lock()
		if w.pending != nil {
			w.pending.Stop()
			w.pending = nil
		}
		w.pendingMu.Unlock()

		if err = w.watcher.Close(); err != nil {
			w.logger.Error("failed to close watcher", "error", err)
			return
		}
		w.logger.Info("configuration watcher stopped")
	})
	return err
}

func (w *Watcher) matches(name string) bool {
	w.mu.RLock()
	target := w.target
	w.mu.RUnlock()

	if target == "" {
		return true
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == target
}

// schedule notifies now if the limiter allows, otherwise arranges a single
// trailing notification.
func (w *Watcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if w.pending != nil {
		return
	}

	r := w.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		go w.notifyCallbacks(path)
		return
	}

	w.pending = time.AfterFunc(delay, func() {
		w.pendingMu.Lock()
		w.pending = nil
		w.pendingMu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.notifyCallbacks(path)
	})
}

func (w *Watcher) notifyCallbacks(path string) {
	w.mu.RLock()
	callbacks := append([]func(string){}, w.callbacks...)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(path)
	}
}
