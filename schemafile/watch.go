package schemafile

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the reload delay after the last descriptor event.
// Editors write files in bursts; one reload per burst is enough.
const DefaultDebounce = 250 * time.Millisecond

// A Watcher reloads a descriptor directory on change and hands the
// parsed models to a callback. A directory that fails to load keeps
// the previously applied models.
type Watcher struct {
	dir      string
	logger   zerolog.Logger
	apply    func([]Model) error
	debounce time.Duration

	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithLogger sets the watcher's logger.
func WithLogger(logger zerolog.Logger) WatchOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets the reload delay.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// Watch loads dir once, applies it, and starts watching for changes.
func Watch(dir string, apply func([]Model) error, opts ...WatchOption) (*Watcher, error) {
	w := &Watcher{
		dir:      dir,
		logger:   zerolog.Nop(),
		apply:    apply,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.reload(); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("schemafile: create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("schemafile: watch %s: %w", dir, err)
	}
	w.watcher = fw
	go w.loop()
	w.logger.Info().Str("dir", dir).Msg("watching schema descriptors")
	return w, nil
}

// Close stops watching. Pending debounced reloads are dropped.
func (w *Watcher) Close() error {
	close(w.stopCh)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !descriptorFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("descriptor changed")
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("descriptor watcher error")
		case <-w.stopCh:
			return
		}
	}
}

// schedule arms the debounce timer, pushing it out on every new event.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		if err := w.reload(); err != nil {
			w.logger.Error().Err(err).Msg("descriptor reload failed, keeping previous models")
		}
	})
}

func (w *Watcher) reload() error {
	models, err := LoadDir(w.dir)
	if err != nil {
		return err
	}
	if err := w.apply(models); err != nil {
		return err
	}
	w.logger.Info().Int("models", len(models)).Msg("schema descriptors loaded")
	return nil
}

func descriptorFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yml", ".yaml":
		return true
	}
	return false
}
