package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called with the freshly reloaded config whenever the
// watched file changes. The orchestrator registers one handler that picks
// out SchedulerConfig.TickInterval and one that picks out
// WorkerConfig.PoolSize — every other field requires a restart, since
// swapping Database/Retry settings under a running Scheduler/Worker pool
// is not safe.
type ChangeHandler func(cfg *Config)

// Watcher watches the orchestrator's YAML config file for changes and
// reloads it, pushing the result to every registered ChangeHandler.
// Changes are debounced (300ms) to avoid rapid reloads from editors that
// write a file in several small writes.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handlers []ChangeHandler
	debounce time.Duration
	stopChan chan struct{}
	mu       sync.Mutex
}

// NewWatcher creates a config file watcher.
func NewWatcher(configPath string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     configPath,
		watcher:  w,
		debounce: 300 * time.Millisecond,
	}, nil
}

// OnChange registers a handler to be called when config changes.
func (cw *Watcher) OnChange(handler ChangeHandler) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handlers = append(cw.handlers, handler)
}

// Start begins watching the config file for changes.
func (cw *Watcher) Start() error {
	if err := cw.watcher.Add(cw.path); err != nil {
		return err
	}

	cw.stopChan = make(chan struct{})
	go cw.watchLoop()

	slog.Info("config watcher started", "path", cw.path)
	return nil
}

// Stop halts the file watcher.
func (cw *Watcher) Stop() {
	if cw.stopChan != nil {
		close(cw.stopChan)
	}
	cw.watcher.Close()
	slog.Info("config watcher stopped")
}

func (cw *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-cw.stopChan:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			// Debounce: reset timer on each change
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(cw.debounce, func() {
				cw.reload()
			})

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (cw *Watcher) reload() {
	slog.Info("config file changed, reloading", "path", cw.path)

	cfg, err := Load(cw.path)
	if err != nil {
		slog.Error("config reload failed", "error", err)
		return
	}

	cw.mu.Lock()
	handlers := make([]ChangeHandler, len(cw.handlers))
	copy(handlers, cw.handlers)
	cw.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}

	slog.Info("config reloaded successfully")
}
