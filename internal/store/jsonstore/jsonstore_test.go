package jsonstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultFileName), nil)
	require.NoError(t, err)
	return s
}

func TestMissingFileIsEmpty(t *testing.T) {
	s := newStore(t)
	items, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveUpsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a, b := model.New("first"), model.New("second")
	require.NoError(t, s.Save(ctx, a))
	require.NoError(t, s.Save(ctx, b))

	a.Text = "first, edited"
	a.Done = true
	require.NoError(t, s.Save(ctx, a))

	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first, edited", items[0].Text)
	assert.True(t, items[0].Done)
	assert.Equal(t, b.UID, items[1].UID)
}

func TestSaveRejectsBlankText(t *testing.T) {
	s := newStore(t)
	err := s.Save(context.Background(), model.Item{UID: "x", Text: "  "})
	assert.ErrorIs(t, err, model.ErrEmptyText)
}

func TestRoundTripMetadata(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	deadline := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	it := model.New("pay rent")
	it.Importance = model.High
	it.Color = 0xFFFF0000
	it.Deadline = &deadline
	require.NoError(t, s.Save(ctx, it))

	got, err := s.Get(ctx, it.UID)
	require.NoError(t, err)
	assert.Equal(t, model.High, got.Importance)
	assert.Equal(t, model.Color(0xFFFF0000), got.Color)
	require.NotNil(t, got.Deadline)
	assert.True(t, deadline.Equal(*got.Deadline))
	assert.True(t, it.CreatedAt.Equal(got.CreatedAt))
}

func TestFileOmitsDefaults(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Save(ctx, model.Item{UID: "u1", Text: "plain", Importance: model.Normal, Color: model.White}))

	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "u1", raw[0]["uid"])
	assert.Equal(t, false, raw[0]["isDone"])
	assert.NotContains(t, raw[0], "importance")
	assert.NotContains(t, raw[0], "color")
	assert.NotContains(t, raw[0], "deadline")
}

func TestLenientLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	content := `{"items": [
		{"uid": "a", "text": "keep", "importance": "важная", "color": -16776961, "deadline": 1700000000000},
		{"uid": "b", "text": "   "},
		42,
		{"text": "no uid", "isDone": true}
	]}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].UID)
	assert.Equal(t, model.High, items[0].Importance)
	assert.Equal(t, model.Color(0xFF0000FF), items[0].Color)
	require.NotNil(t, items[0].Deadline)
	assert.Equal(t, int64(1700000000000), items[0].Deadline.UnixMilli())
	assert.NotEmpty(t, items[1].UID)
	assert.True(t, items[1].Done)

	reread, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, reread, 2)
	assert.Equal(t, items[1].UID, reread[1].UID)
}

func TestGeneratedUIDIsStable(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`[{"text": "legacy"}]`), 0o644))

	first, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	uid := first[0].UID
	require.NotEmpty(t, uid)

	again, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uid, again[0].UID)

	// A second handle on the same file sees the written-back uid.
	other, err := Open(s.Path(), nil)
	require.NoError(t, err)
	got, err := other.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.Text)

	require.NoError(t, s.Save(ctx, got.Toggled()))
	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1, "save replaces instead of appending")
	assert.True(t, items[0].Done)

	ok, err := s.Delete(ctx, uid)
	require.NoError(t, err)
	assert.True(t, ok)
	items, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))
	_, err := s.LoadAll(context.Background())
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestBlankFileIsEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("  \n"), 0o644))
	items, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteSaveAllClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a, b := model.New("a"), model.New("b")
	require.NoError(t, s.SaveAll(ctx, []model.Item{a, b}))

	ok, err := s.Delete(ctx, a.UID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, a.UID)
	require.NoError(t, err)
	assert.False(t, ok)

	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.UID, items[0].UID)

	require.NoError(t, s.SaveAll(ctx, []model.Item{a}))
	items, err = s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.UID, items[0].UID)

	require.NoError(t, s.Clear(ctx))
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Clear(ctx))
}

func TestWatchSeesExternalWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newStore(t)

	ch, err := s.Watch(ctx)
	require.NoError(t, err)

	other, err := Open(s.Path(), nil)
	require.NoError(t, err)
	require.NoError(t, other.Save(ctx, model.New("from elsewhere")))

	select {
	case items := <-ch:
		require.Len(t, items, 1)
		assert.Equal(t, "from elsewhere", items[0].Text)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event")
	}
}

func TestWatchSeesBackToBackWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newStore(t)
	require.NoError(t, s.Save(ctx, model.New("one")))

	ch, err := s.Watch(ctx)
	require.NoError(t, err)

	other, err := Open(s.Path(), nil)
	require.NoError(t, err)
	require.NoError(t, other.Save(ctx, model.New("two")))
	require.NoError(t, other.Save(ctx, model.New("three")))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case items := <-ch:
			if len(items) == 3 {
				assert.Equal(t, "three", items[2].Text)
				return
			}
		case <-deadline:
			t.Fatal("last write never observed")
		}
	}
}
