package daemon

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/qnotify/internal/config"
	"github.com/jmylchreest/qnotify/internal/layout"
)

// DefaultDebounce is how long a file must stay quiet before its change
// handler runs. Editors typically produce several events per save.
const DefaultDebounce = 200 * time.Millisecond

// FileWatcher calls a handler when one of the watched files changes.
// Parent directories are watched so that atomic rename-on-save is seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	handlers map[string]func()
	timers   map[string]*time.Timer
	dirs     map[string]bool
	done     chan struct{}
	running  bool
}

// NewFileWatcher creates a FileWatcher.
func NewFileWatcher(logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FileWatcher{
		watcher:  watcher,
		logger:   logger,
		debounce: DefaultDebounce,
		handlers: make(map[string]func()),
		timers:   make(map[string]*time.Timer),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce sets the quiet period before a handler runs.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.debounce = d
}

// Watch registers onChange for path. The file does not need to exist yet
// but its directory does.
func (fw *FileWatcher) Watch(path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	dir := filepath.Dir(abs)
	if !fw.dirs[dir] {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		fw.dirs[dir] = true
	}
	fw.handlers[abs] = onChange

	fw.logger.Debug("watching file", "path", abs)
	return nil
}

// Start begins delivering change events.
func (fw *FileWatcher) Start() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return
	}
	fw.running = true
	go fw.watch()
}

func (fw *FileWatcher) watch() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fw.schedule(filepath.Clean(event.Name))
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

// schedule (re)starts the debounce timer for path if it has a handler.
func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	handler, ok := fw.handlers[path]
	if !ok || !fw.running {
		return
	}
	if t, ok := fw.timers[path]; ok {
		t.Stop()
	}
	fw.timers[path] = time.AfterFunc(fw.debounce, func() {
		fw.logger.Debug("file changed", "path", path)
		handler()
	})
}

// Stop stops the watcher. Pending handlers are cancelled.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return fw.watcher.Close()
	}
	fw.running = false
	for path, t := range fw.timers {
		t.Stop()
		delete(fw.timers, path)
	}
	close(fw.done)
	return fw.watcher.Close()
}

// Reloader reloads the daemon configuration and checks the display template
// when their files change. Results are reported through the notifier.
type Reloader struct {
	mu     sync.RWMutex
	logger *slog.Logger

	configPath string
	current    *config.DaemonConfig
	notifier   *InternalNotifier

	onReload       func(*config.DaemonConfig)
	onLayout       LayoutCallback
	layoutOverride string
	watcher        *FileWatcher
}

// LayoutCallback receives the outcome of every display template load.
type LayoutCallback func(ref string, tmpl *layout.LayoutConfig, err error)

// NewReloader creates a Reloader for the config file at configPath, starting
// from initial.
func NewReloader(configPath string, initial *config.DaemonConfig, notifier *InternalNotifier, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		logger:     logger,
		configPath: configPath,
		current:    initial,
		notifier:   notifier,
	}
}

// SetReloadCallback sets the callback invoked with each valid new config.
func (r *Reloader) SetReloadCallback(callback func(*config.DaemonConfig)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = callback
}

// SetLayoutCallback sets the callback invoked after each template load.
func (r *Reloader) SetLayoutCallback(callback LayoutCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLayout = callback
}

// SetLayoutOverride makes ref the display template regardless of the
// configuration file.
func (r *Reloader) SetLayoutOverride(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layoutOverride = ref
}

// LayoutRef returns the display template in effect.
func (r *Reloader) LayoutRef() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.layoutOverride != "" {
		return r.layoutOverride
	}
	return r.current.Layout.Template
}

// Current returns the last valid configuration.
func (r *Reloader) Current() *config.DaemonConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// ReloadConfig reads the config file again. An invalid file keeps the
// current configuration and is reported as an error notification. When the
// template in effect changes it is loaded and, if it is a file, watched.
func (r *Reloader) ReloadConfig() error {
	cfg, err := config.LoadDaemonConfig(r.configPath)
	if err != nil {
		r.logger.Warn("config file changed but validation failed", "error", err)
		if r.notifier != nil {
			r.notifier.NotifyConfigError(err)
		}
		return err
	}

	before := r.LayoutRef()
	r.mu.Lock()
	r.current = cfg
	callback := r.onReload
	r.mu.Unlock()

	r.logger.Info("config reloaded successfully")
	if callback != nil {
		callback(cfg)
	}
	if ref := r.LayoutRef(); ref != before {
		_ = r.CheckLayout()
		r.watchLayout(ref)
	}
	if r.notifier != nil {
		r.notifier.NotifyConfigReloaded()
	}
	return nil
}

// CheckLayout loads the display template in effect, hands the result to the
// layout callback and reports a failure.
func (r *Reloader) CheckLayout() error {
	ref := r.LayoutRef()
	tmpl, err := layout.Load(ref)

	r.mu.RLock()
	callback := r.onLayout
	r.mu.RUnlock()
	if callback != nil {
		callback(ref, tmpl, err)
	}

	if err != nil {
		r.logger.Warn("display template failed to load", "template", ref, "error", err)
		if r.notifier != nil {
			r.notifier.NotifyLayoutError(err)
		}
		return err
	}
	r.logger.Debug("display template loaded", "template", ref)
	return nil
}

// WatchFiles registers the config file and, when the template is a file, the
// template with fw.
func (r *Reloader) WatchFiles(fw *FileWatcher) error {
	if err := fw.Watch(r.configPath, func() { _ = r.ReloadConfig() }); err != nil {
		return err
	}

	r.mu.Lock()
	r.watcher = fw
	r.mu.Unlock()

	if ref := r.LayoutRef(); layout.IsPath(ref) {
		if err := fw.Watch(ref, func() { _ = r.CheckLayout() }); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reloader) watchLayout(ref string) {
	r.mu.RLock()
	fw := r.watcher
	r.mu.RUnlock()
	if fw == nil || !layout.IsPath(ref) {
		return
	}
	if err := fw.Watch(ref, func() { _ = r.CheckLayout() }); err != nil {
		r.logger.Warn("failed to watch display template", "template", ref, "error", err)
	}
}
