// Package store defines the local data source contract shared by the
// JSON file and SQL backends.
package store

import (
	"context"
	"errors"

	"github.com/wewew312/todomemes/internal/model"
)

var (
	ErrNotFound = errors.New("item not found")
	ErrCorrupt  = errors.New("unreadable data")
)

// Store is a local data source. Items keep insertion order.
type Store interface {
	LoadAll(ctx context.Context) ([]model.Item, error)
	Get(ctx context.Context, uid string) (model.Item, error)
	// Save inserts a new uid at the end or replaces an existing one in place.
	Save(ctx context.Context, item model.Item) error
	// SaveAll replaces the whole list.
	SaveAll(ctx context.Context, items []model.Item) error
	Delete(ctx context.Context, uid string) (bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// Watcher is implemented by stores that can report changes made outside
// this process. The channel closes when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan []model.Item, error)
}
