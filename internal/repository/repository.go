// Package repository coordinates the local store and the remote backend:
// reads try the remote and fall back to the cache, writes land locally
// first and are queued for the remote.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/store"
)

// Remote is what the repository needs from a backend. *remote.Client and
// *remote.Stub both satisfy it.
type Remote interface {
	FetchAll(ctx context.Context) ([]model.Item, error)
	FetchByID(ctx context.Context, uid string) (model.Item, bool, error)
	Create(ctx context.Context, item model.Item) error
	Update(ctx context.Context, item model.Item) error
	Delete(ctx context.Context, uid string) error
	SyncAll(ctx context.Context, items []model.Item) ([]model.Item, error)
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

type Repository struct {
	local  store.Store
	remote Remote
	log    *zap.Logger

	mu   sync.Mutex
	subs map[chan []model.Item]struct{}
}

func New(local store.Store, remote Remote, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{
		local:  local,
		remote: remote,
		log:    log.Named("repository"),
		subs:   make(map[chan []model.Item]struct{}),
	}
}

// Load returns the remote list when it is reachable and non-empty, caching
// it; otherwise the cached list.
func (r *Repository) Load(ctx context.Context) ([]model.Item, error) {
	cached, err := r.local.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}

	items, err := r.remote.FetchAll(ctx)
	if err != nil {
		r.log.Warn("remote unavailable, using cache", zap.Int("cached", len(cached)), zap.Error(err))
		return cached, nil
	}
	if len(items) == 0 {
		r.log.Debug("remote list empty, keeping cache", zap.Int("cached", len(cached)))
		return cached, nil
	}
	if err := r.local.SaveAll(ctx, items); err != nil {
		return nil, fmt.Errorf("cache remote list: %w", err)
	}
	r.log.Info("cache refreshed from remote", zap.Int("count", len(items)))
	r.publish(ctx)
	return items, nil
}

// Cached returns the local list without contacting the remote.
func (r *Repository) Cached(ctx context.Context) ([]model.Item, error) {
	return r.local.LoadAll(ctx)
}

// Get reads from the cache only.
func (r *Repository) Get(ctx context.Context, uid string) (model.Item, error) {
	return r.local.Get(ctx, uid)
}

// Save upserts locally and queues the matching remote mutation. Remote
// failures are logged, not returned.
func (r *Repository) Save(ctx context.Context, item model.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	_, err := r.local.Get(ctx, item.UID)
	isNew := errors.Is(err, store.ErrNotFound)
	if err != nil && !isNew {
		return fmt.Errorf("lookup %s: %w", item.UID, err)
	}

	if err := r.local.Save(ctx, item); err != nil {
		return fmt.Errorf("save %s: %w", item.UID, err)
	}
	r.log.Debug("saved locally", zap.String("uid", item.UID), zap.Bool("new", isNew))
	r.publish(ctx)

	if isNew {
		err = r.remote.Create(ctx, item)
	} else {
		err = r.remote.Update(ctx, item)
	}
	if err != nil {
		r.log.Warn("remote save not queued", zap.String("uid", item.UID), zap.Error(err))
	}
	return nil
}

// Delete removes uid locally; the remote is only told when something was
// actually there.
func (r *Repository) Delete(ctx context.Context, uid string) (bool, error) {
	deleted, err := r.local.Delete(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", uid, err)
	}
	if !deleted {
		return false, nil
	}
	r.publish(ctx)
	if err := r.remote.Delete(ctx, uid); err != nil {
		r.log.Warn("remote delete not queued", zap.String("uid", uid), zap.Error(err))
	}
	return true, nil
}

// ToggleDone saves item with Done flipped and returns the saved copy.
func (r *Repository) ToggleDone(ctx context.Context, item model.Item) (model.Item, error) {
	t := item.Toggled()
	if err := r.Save(ctx, t); err != nil {
		return item, err
	}
	return t, nil
}

// Sync pushes the cache as the full list and adopts the server's answer.
func (r *Repository) Sync(ctx context.Context) ([]model.Item, error) {
	items, err := r.local.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	// Queued single-item mutations must land before the full list replaces them.
	if err := r.remote.Flush(ctx); err != nil {
		r.log.Warn("flush before sync", zap.Error(err))
	}
	merged, err := r.remote.SyncAll(ctx, items)
	if err != nil {
		r.log.Error("sync failed", zap.Error(err))
		return nil, fmt.Errorf("sync: %w", err)
	}
	if err := r.local.SaveAll(ctx, merged); err != nil {
		return nil, fmt.Errorf("cache synced list: %w", err)
	}
	r.log.Info("synced", zap.Int("count", len(merged)))
	r.publish(ctx)
	return merged, nil
}

func (r *Repository) ClearCache(ctx context.Context) error {
	if err := r.local.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	r.publish(ctx)
	return nil
}

// Close drains queued remote work (bounded by ctx), then closes the store.
func (r *Repository) Close(ctx context.Context) error {
	rerr := r.remote.Close(ctx)
	if rerr != nil {
		rerr = fmt.Errorf("close remote: %w", rerr)
	}
	return errors.Join(rerr, r.local.Close())
}

// Subscribe returns a channel that receives the cached list after every
// local change. Slow readers only see the latest snapshot. The channel is
// closed when ctx ends.
func (r *Repository) Subscribe(ctx context.Context) <-chan []model.Item {
	ch := make(chan []model.Item, 1)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, ch)
		close(ch)
		r.mu.Unlock()
	}()
	return ch
}

func (r *Repository) publish(ctx context.Context) {
	r.mu.Lock()
	n := len(r.subs)
	r.mu.Unlock()
	if n == 0 {
		return
	}

	items, err := r.local.LoadAll(ctx)
	if err != nil {
		r.log.Warn("snapshot for subscribers", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- items
	}
}
