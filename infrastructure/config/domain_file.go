package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	domainconfig "bobbin-backend/domain/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadDomainConfig returns the business rules for the environment, with the
// keys present in path layered on top. An empty path yields the defaults.
func LoadDomainConfig(path, environment string) (*domainconfig.DomainConfig, error) {
	cfg := domainconfig.LoadDomainConfig(environment)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read domain config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse domain config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain config %s: %w", path, err)
	}
	return cfg, nil
}

// DomainConfigWatcher reloads the domain config file when it changes and
// hands every valid version to apply. Invalid edits are logged and ignored,
// so the last good configuration stays in effect.
type DomainConfigWatcher struct {
	path        string
	environment string
	apply       func(*domainconfig.DomainConfig)
	logger      *zap.Logger
}

// NewDomainConfigWatcher creates a watcher for path
func NewDomainConfigWatcher(path, environment string, apply func(*domainconfig.DomainConfig), logger *zap.Logger) *DomainConfigWatcher {
	return &DomainConfigWatcher{
		path:        filepath.Clean(path),
		environment: environment,
		apply:       apply,
		logger:      logger,
	}
}

// Run blocks until ctx is done. The parent directory is watched because
// editors usually replace the file instead of writing it in place.
func (w *DomainConfigWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.logger.Info("watching domain config", zap.String("path", w.path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("domain config watcher error", zap.Error(err))
		}
	}
}

func (w *DomainConfigWatcher) reload() {
	cfg, err := LoadDomainConfig(w.path, w.environment)
	if err != nil {
		w.logger.Warn("ignoring domain config change", zap.Error(err))
		return
	}
	w.apply(cfg)
	w.logger.Info("domain config reloaded",
		zap.String("path", w.path),
		zap.String("duplicate_connection_policy", string(cfg.DuplicateConnectionPolicy)),
	)
}
