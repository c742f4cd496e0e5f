// Package seed loads the template dataset that newly seen tenants start
// from.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/devrev/docstore/internal/document"
)

// Loader reads the seed template from disk and caches the parsed dataset.
// Load hands out deep copies, so tenants never share records with the
// template or with each other.
type Loader struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	cached document.Dataset
}

// NewLoader creates a loader for the template file at path. The codec is
// picked by extension: .yaml and .yml parse as YAML, everything else as
// JSON.
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger,
	}
}

// Load returns a deep copy of the template dataset, reading and parsing
// the file on first use.
func (l *Loader) Load() (document.Dataset, error) {
	l.mu.RLock()
	cached := l.cached
	l.mu.RUnlock()

	if cached != nil {
		return cached.Clone(), nil
	}

	ds, err := l.read()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cached = ds
	l.mu.Unlock()

	return ds.Clone(), nil
}

func (l *Loader) read() (document.Dataset, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed template: %w", err)
	}

	var v interface{}
	switch filepath.Ext(l.path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to parse seed template %s: %w", l.path, err)
		}
	default:
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to parse seed template %s: %w", l.path, err)
		}
	}

	ds, err := document.FromValue(v)
	if err != nil {
		return nil, fmt.Errorf("invalid seed template %s: %w", l.path, err)
	}
	return ds, nil
}

// Watch monitors the template file and reloads it each time it is
// written, blocking until ctx is cancelled. A reload that fails to parse
// is logged and the previous template stays active.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.path); err != nil {
		return fmt.Errorf("failed to watch seed template: %w", err)
	}

	l.logger.Info("watching seed template for changes", zap.String("path", l.path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which shows up as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			ds, err := l.read()
			if err != nil {
				l.logger.Error("seed template reload failed, keeping previous version",
					zap.String("path", l.path),
					zap.Error(err),
				)
				continue
			}

			l.mu.Lock()
			l.cached = ds
			l.mu.Unlock()
			l.logger.Info("seed template reloaded", zap.String("path", l.path))

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(l.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("seed template watcher error", zap.Error(err))
		}
	}
}
