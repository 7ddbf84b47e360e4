package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	domainconfig "mindboard/domain/config"
)

// Watcher hot-reloads the engine section of the YAML config file. Only
// engine tunables are reloaded; everything else needs a restart.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *domainconfig.DomainConfig
	mu       sync.RWMutex
	onChange []func(*domainconfig.DomainConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	debounce time.Duration
}

// NewWatcher creates a watcher for path seeded with the engine
// configuration already loaded from it
func NewWatcher(path string, initial *domainconfig.DomainConfig, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initial == nil {
		initial = domainconfig.DefaultDomainConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic saves (write temp + rename) are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:     path,
		watcher:  watcher,
		current:  initial,
		logger:   logger,
		stopCh:   make(chan struct{}),
		debounce: 100 * time.Millisecond,
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler func(*domainconfig.DomainConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the engine configuration in effect
func (w *Watcher) Current() *domainconfig.DomainConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// watchLoop is the main loop that watches for file changes
func (w *Watcher) watchLoop() {
	// Debounce timer to avoid multiple reloads per save
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the engine section; an invalid file keeps the current
// configuration
func (w *Watcher) reload() {
	next, err := readEngine(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration", zap.Error(err))
		return
	}
	if err := next.Validate(); err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	previous := w.current
	w.current = next
	handlers := append([]func(*domainconfig.DomainConfig){}, w.onChange...)
	w.mu.Unlock()

	if *previous == *next {
		return
	}
	w.logger.Info("Engine configuration reloaded",
		zap.Int("historyLimit", next.HistoryLimit),
		zap.Duration("syncDebounce", next.SyncDebounce),
		zap.Duration("autosaveDebounce", next.AutosaveDebounce),
	)
	for _, handler := range handlers {
		handler(next)
	}
}

func readEngine(path string) (*domainconfig.DomainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	doc := struct {
		Environment string                     `yaml:"environment"`
		Engine      *domainconfig.DomainConfig `yaml:"engine"`
	}{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	engine := domainconfig.LoadDomainConfig(doc.Environment)
	if doc.Engine != nil {
		// Decode again over the defaults so missing keys keep them
		wrapper := struct {
			Engine *domainconfig.DomainConfig `yaml:"engine"`
		}{Engine: engine}
		if err := yaml.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse engine section: %w", err)
		}
	}
	return engine, nil
}
