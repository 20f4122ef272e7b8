package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/store"
)

// JSON-backed storage. Single file, human-readable, portable.
// Every operation re-reads the file under the mutex, so edits made by
// another process between two calls are not lost. Missing uids are filled
// in and written back on the first read.

const DefaultFileName = "todo_memes.json"

type Store struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Watcher = (*Store)(nil)
)

// Open returns a store backed by path. The file is created on first write.
func Open(path string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("jsonstore: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("jsonstore")
	log.Info("json store opened", zap.String("path", abs))
	return &Store{path: abs, log: log}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) LoadAll(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return nil, err
	}
	s.log.Debug("loaded items", zap.Int("count", len(items)))
	return items, nil
}

func (s *Store) Get(ctx context.Context, uid string) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return model.Item{}, err
	}
	if i := model.IndexOf(items, uid); i >= 0 {
		return items[i], nil
	}
	return model.Item{}, store.ErrNotFound
}

func (s *Store) Save(ctx context.Context, item model.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return err
	}
	if i := model.IndexOf(items, item.UID); i >= 0 {
		items[i] = item
		s.log.Info("updated item", zap.String("uid", item.UID))
	} else {
		items = append(items, item)
		s.log.Info("added item", zap.String("uid", item.UID))
	}
	return s.write(items)
}

func (s *Store) SaveAll(ctx context.Context, items []model.Item) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("item %q: %w", it.UID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(items); err != nil {
		return err
	}
	s.log.Info("saved items", zap.Int("count", len(items)))
	return nil
}

func (s *Store) Delete(ctx context.Context, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return false, err
	}
	i := model.IndexOf(items, uid)
	if i < 0 {
		s.log.Warn("item not found", zap.String("uid", uid))
		return false, nil
	}
	items = append(items[:i], items[i+1:]...)
	if err := s.write(items); err != nil {
		return false, err
	}
	s.log.Info("deleted item", zap.String("uid", uid))
	return true, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	s.log.Info("cache cleared")
	return nil
}

func (s *Store) Close() error { return nil }

// read must be called with mu held.
func (s *Store) read() ([]model.Item, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Item{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	items, repaired, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	// Generated uids must survive the next read.
	if repaired {
		if err := s.write(items); err != nil {
			return nil, fmt.Errorf("persist repaired uids: %w", err)
		}
		s.log.Info("assigned missing uids", zap.String("path", s.path))
	}
	return items, nil
}

// write must be called with mu held. The temp file + rename keeps readers
// from ever seeing a half-written list.
func (s *Store) write(items []model.Item) error {
	b, err := encode(items)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	s.log.Debug("persisted items", zap.Int("count", len(items)))
	return nil
}

// ---------------------------------------------------
// File format
// ---------------------------------------------------

type fileItem struct {
	UID        string `json:"uid"`
	Text       string `json:"text"`
	IsDone     bool   `json:"isDone"`
	Importance string `json:"importance,omitempty"`
	Color      *int64 `json:"color,omitempty"`
	Deadline   *int64 `json:"deadline,omitempty"`
	CreatedAt  *int64 `json:"createdAt,omitempty"`
	ChangedAt  *int64 `json:"changedAt,omitempty"`
}

func toFile(it model.Item) fileItem {
	fi := fileItem{UID: it.UID, Text: it.Text, IsDone: it.Done}
	if it.Importance != model.Normal {
		fi.Importance = it.Importance.RuName()
	}
	if it.Color != model.White {
		v := int64(it.Color.Int32())
		fi.Color = &v
	}
	if it.Deadline != nil {
		v := it.Deadline.UnixMilli()
		fi.Deadline = &v
	}
	if !it.CreatedAt.IsZero() {
		v := it.CreatedAt.UnixMilli()
		fi.CreatedAt = &v
	}
	if !it.ChangedAt.IsZero() {
		v := it.ChangedAt.UnixMilli()
		fi.ChangedAt = &v
	}
	return fi
}

// fromFile returns false for entries that carry no text. A blank uid is
// left blank for decode to fill.
func fromFile(fi fileItem) (model.Item, bool) {
	text := strings.TrimSpace(fi.Text)
	if text == "" {
		return model.Item{}, false
	}
	it := model.Item{
		UID:        strings.TrimSpace(fi.UID),
		Text:       text,
		Importance: model.ImportanceFromRuName(fi.Importance),
		Color:      model.White,
		Done:       fi.IsDone,
	}
	if fi.Color != nil {
		it.Color = model.Color(uint32(int32(*fi.Color)))
	}
	if fi.Deadline != nil {
		d := model.MillisTime(*fi.Deadline)
		it.Deadline = &d
	}
	if fi.CreatedAt != nil {
		it.CreatedAt = model.MillisTime(*fi.CreatedAt)
	}
	if fi.ChangedAt != nil {
		it.ChangedAt = model.MillisTime(*fi.ChangedAt)
	}
	return it, true
}

func encode(items []model.Item) ([]byte, error) {
	out := make([]fileItem, 0, len(items))
	for _, it := range items {
		out = append(out, toFile(it))
	}
	return json.MarshalIndent(out, "", "  ")
}

// decode accepts a bare array or {"items": [...]} and skips bad entries.
// repaired reports that some entry had no uid and got a fresh one.
func decode(b []byte) (items []model.Item, repaired bool, err error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return []model.Item{}, false, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		var wrapped struct {
			Items []json.RawMessage `json:"items"`
		}
		if err2 := json.Unmarshal(b, &wrapped); err2 != nil {
			return nil, false, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
		}
		raw = wrapped.Items
	}
	items = make([]model.Item, 0, len(raw))
	for _, r := range raw {
		var fi fileItem
		if err := json.Unmarshal(r, &fi); err != nil {
			continue
		}
		it, ok := fromFile(fi)
		if !ok {
			continue
		}
		if it.UID == "" {
			it.UID = model.NewUID()
			repaired = true
		}
		items = append(items, it)
	}
	return items, repaired, nil
}
