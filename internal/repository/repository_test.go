package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/store"
	"github.com/wewew312/todomemes/internal/store/jsonstore"
)

// fakeRemote records mutations and serves a canned list.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	list    []model.Item
	err     error
	syncErr error
	closed  bool
}

func (f *fakeRemote) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) FetchAll(ctx context.Context) ([]model.Item, error) {
	f.record("fetch")
	return f.list, f.err
}

func (f *fakeRemote) FetchByID(ctx context.Context, uid string) (model.Item, bool, error) {
	return model.Item{}, false, f.err
}

func (f *fakeRemote) Create(ctx context.Context, it model.Item) error {
	f.record("create " + it.UID)
	return nil
}

func (f *fakeRemote) Update(ctx context.Context, it model.Item) error {
	f.record("update " + it.UID)
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, uid string) error {
	f.record("delete " + uid)
	return nil
}

func (f *fakeRemote) SyncAll(ctx context.Context, items []model.Item) ([]model.Item, error) {
	f.record("sync")
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return append(items, f.list...), nil
}

func (f *fakeRemote) Flush(ctx context.Context) error {
	f.record("flush")
	return nil
}

func (f *fakeRemote) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func setup(t *testing.T) (*Repository, *jsonstore.Store, *fakeRemote) {
	t.Helper()
	local, err := jsonstore.Open(filepath.Join(t.TempDir(), jsonstore.DefaultFileName), nil)
	require.NoError(t, err)
	rem := &fakeRemote{}
	return New(local, rem, nil), local, rem
}

func item(uid, text string) model.Item {
	it := model.New(text)
	it.UID = uid
	return it
}

func TestSaveRoutesNewAndExisting(t *testing.T) {
	ctx := context.Background()
	repo, local, rem := setup(t)

	require.NoError(t, repo.Save(ctx, item("a", "one")))
	require.NoError(t, repo.Save(ctx, item("a", "one, edited")))

	assert.Equal(t, []string{"create a", "update a"}, rem.Calls())
	got, err := local.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one, edited", got.Text)
}

func TestSaveRejectsInvalid(t *testing.T) {
	repo, _, rem := setup(t)
	err := repo.Save(context.Background(), item("a", "   "))
	assert.ErrorIs(t, err, model.ErrEmptyText)
	assert.Empty(t, rem.Calls())
}

func TestDeleteOnlyTellsRemoteWhenPresent(t *testing.T) {
	ctx := context.Background()
	repo, _, rem := setup(t)
	require.NoError(t, repo.Save(ctx, item("a", "one")))

	ok, err := repo.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"create a", "delete a"}, rem.Calls())

	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleDone(t *testing.T) {
	ctx := context.Background()
	repo, _, rem := setup(t)
	it := item("a", "one")
	require.NoError(t, repo.Save(ctx, it))

	toggled, err := repo.ToggleDone(ctx, it)
	require.NoError(t, err)
	assert.True(t, toggled.Done)
	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.Equal(t, "update a", rem.Calls()[1])
}

func TestLoadPrefersRemote(t *testing.T) {
	ctx := context.Background()
	repo, local, rem := setup(t)
	require.NoError(t, local.Save(ctx, item("old", "cached")))
	rem.list = []model.Item{item("r1", "remote one"), item("r2", "remote two")}

	items, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	cached, err := local.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "r1", cached[0].UID)
}

func TestLoadFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	repo, local, rem := setup(t)
	require.NoError(t, local.Save(ctx, item("c", "cached")))

	rem.err = errors.New("connection refused")
	items, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "cached", items[0].Text)

	// An empty remote list does not wipe the cache.
	rem.err = nil
	items, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSyncReplacesCache(t *testing.T) {
	ctx := context.Background()
	repo, local, rem := setup(t)
	require.NoError(t, repo.Save(ctx, item("a", "mine")))
	rem.list = []model.Item{item("b", "theirs")}

	merged, err := repo.Sync(ctx)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
	assert.Equal(t, []string{"create a", "flush", "sync"}, rem.Calls())

	cached, err := local.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestSyncFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	repo, local, rem := setup(t)
	require.NoError(t, repo.Save(ctx, item("a", "mine")))
	rem.syncErr = errors.New("giving up")

	_, err := repo.Sync(ctx)
	require.Error(t, err)
	cached, err := local.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo, _, _ := setup(t)
	ch := repo.Subscribe(ctx)

	require.NoError(t, repo.Save(ctx, item("a", "one")))
	require.NoError(t, repo.Save(ctx, item("b", "two")))

	// Only the latest snapshot is kept for a slow reader.
	select {
	case items := <-ch:
		assert.Len(t, items, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestClearAndClose(t *testing.T) {
	ctx := context.Background()
	repo, local, rem := setup(t)
	require.NoError(t, repo.Save(ctx, item("a", "one")))
	require.NoError(t, repo.ClearCache(ctx))

	items, err := local.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, repo.Close(ctx))
	assert.True(t, rem.closed)
}

func TestCachedSkipsRemote(t *testing.T) {
	ctx := context.Background()
	repo, local, rem := setup(t)
	require.NoError(t, local.Save(ctx, item("a", "one")))

	items, err := repo.Cached(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Empty(t, rem.Calls())
}
