package jsonstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wewew312/todomemes/internal/model"
)

// Watch emits the file contents each time they change on disk. The parent
// directory is watched because writes land through a rename.
func (s *Store) Watch(ctx context.Context) (<-chan []model.Item, error) {
	// Snapshot before watching starts so a write racing the goroutine
	// start still counts as a change.
	last, err := s.LoadAll(ctx)
	if err != nil {
		s.log.Warn("initial load for watch failed", zap.Error(err))
		last = nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan []model.Item, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
					!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
					continue
				}
				items, err := s.LoadAll(ctx)
				if err != nil {
					s.log.Warn("reload after change failed", zap.Error(err))
					continue
				}
				// One atomic write fires several events.
				if last != nil && reflect.DeepEqual(items, last) {
					continue
				}
				last = items
				select {
				case out <- items:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("watch error", zap.Error(err))
			}
		}
	}()
	return out, nil
}
