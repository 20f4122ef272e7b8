package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/remote"
	"github.com/wewew312/todomemes/internal/server"
)

const token = "secret"

var fast = remote.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond}

func newBackend(t *testing.T, opts ...server.Option) (*server.Server, string) {
	t.Helper()
	s := server.New(append([]server.Option{server.WithToken(token)}, opts...)...)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return s, hs.URL
}

func newClient(t *testing.T, url string, opts ...remote.Option) (*remote.Client, *remote.API) {
	t.Helper()
	api, err := remote.NewAPI(url, token, 2*time.Second)
	require.NoError(t, err)
	c := remote.NewClient(api, append([]remote.Option{remote.WithBackoff(fast)}, opts...)...)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, api
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func item(uid, text string) model.Item {
	it := model.New(text)
	it.UID = uid
	return it
}

func texts(items []model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Text)
	}
	return out
}

func TestMutationsRunInOrder(t *testing.T) {
	backend, url := newBackend(t)
	c, _ := newClient(t, url)

	require.NoError(t, c.Create(ctx(t), item("a", "first")))
	require.NoError(t, c.Update(ctx(t), item("a", "first, edited")))
	require.NoError(t, c.Create(ctx(t), item("b", "second")))
	require.NoError(t, c.Delete(ctx(t), "a"))
	require.NoError(t, c.Flush(ctx(t)))

	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 4, backend.Revision())
	assert.Equal(t, 4, c.Revision())

	items, err := c.FetchAll(ctx(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, texts(items))
}

func TestStaleRevisionIsRefreshed(t *testing.T) {
	backend, url := newBackend(t)
	a, _ := newClient(t, url, remote.WithDeviceID("a"))
	b, _ := newClient(t, url, remote.WithDeviceID("b"))

	require.NoError(t, a.Create(ctx(t), item("1", "from a")))
	require.NoError(t, a.Flush(ctx(t)))

	// b still believes revision 0.
	require.Equal(t, 0, b.Revision())
	require.NoError(t, b.Create(ctx(t), item("2", "from b")))
	require.NoError(t, b.Flush(ctx(t)))

	assert.Equal(t, 2, backend.Revision())
	items, err := a.FetchAll(ctx(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"from a", "from b"}, texts(items))
}

func TestUpdateFallsBackToCreate(t *testing.T) {
	_, url := newBackend(t)
	c, _ := newClient(t, url)

	require.NoError(t, c.Update(ctx(t), item("ghost", "appears")))
	require.NoError(t, c.Flush(ctx(t)))

	got, ok, err := c.FetchByID(ctx(t), "ghost")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "appears", got.Text)
}

func TestDeleteMissingIsIgnored(t *testing.T) {
	backend, url := newBackend(t)
	c, _ := newClient(t, url)

	require.NoError(t, c.Delete(ctx(t), "nope"))
	require.NoError(t, c.Flush(ctx(t)))
	assert.Equal(t, 0, backend.Revision())

	_, ok, err := c.FetchByID(ctx(t), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncAllRecoversFromConflict(t *testing.T) {
	backend, url := newBackend(t)
	other, _ := newClient(t, url)
	require.NoError(t, other.Create(ctx(t), item("x", "elsewhere")))
	require.NoError(t, other.Flush(ctx(t)))

	c, _ := newClient(t, url)
	merged, err := c.SyncAll(ctx(t), []model.Item{item("a", "one"), item("b", "two")})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, texts(merged))
	assert.Equal(t, 2, backend.Revision())
	assert.Equal(t, 2, c.Revision())
}

func TestFetchAllRetriesInjectedFailures(t *testing.T) {
	var rolls atomic.Int32
	_, url := newBackend(t, server.WithRoll(func() int {
		if rolls.Add(1) <= 2 {
			return 0
		}
		return 99
	}))
	c, api := newClient(t, url)
	api.GenerateFails = 50

	_, err := c.FetchAll(ctx(t))
	require.NoError(t, err)
	assert.Equal(t, int32(3), rolls.Load())
}

// failing answers every request with status and counts them.
func failing(t *testing.T, status int) (*atomic.Int32, string) {
	t.Helper()
	var calls atomic.Int32
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(hs.Close)
	return &calls, hs.URL
}

func TestSyncAllGivesUp(t *testing.T) {
	calls, url := failing(t, http.StatusInternalServerError)
	b := fast
	b.MaxAttempts = 3
	c, _ := newClient(t, url, remote.WithBackoff(b))

	_, err := c.SyncAll(ctx(t), []model.Item{item("a", "one")})
	require.Error(t, err)
	assert.Equal(t, 500, remote.StatusCode(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSyncAllSkipsFaultInjection(t *testing.T) {
	_, url := newBackend(t, server.WithRoll(func() int { return 0 }))
	c, api := newClient(t, url)
	api.GenerateFails = 100

	merged, err := c.SyncAll(ctx(t), []model.Item{item("a", "one")})
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, texts(merged))
}

func TestFetchAllHonoursReadAttempts(t *testing.T) {
	calls, url := failing(t, http.StatusServiceUnavailable)
	b := fast
	b.MaxAttempts = 0
	b.ReadAttempts = 2
	c, _ := newClient(t, url, remote.WithBackoff(b))

	_, err := c.FetchAll(ctx(t))
	require.Error(t, err)
	assert.Equal(t, 503, remote.StatusCode(err))
	assert.Equal(t, int32(2), calls.Load(), "reads stop early even when mutations retry forever")
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	_, url := newBackend(t)
	api, err := remote.NewAPI(url, "wrong", time.Second)
	require.NoError(t, err)
	c := remote.NewClient(api, remote.WithBackoff(fast))
	defer c.Close(context.Background())

	_, err = c.FetchAll(ctx(t))
	require.Error(t, err)
	assert.Equal(t, 401, remote.StatusCode(err))
}

func TestEnqueueAfterClose(t *testing.T) {
	_, url := newBackend(t)
	c, _ := newClient(t, url)
	require.NoError(t, c.Close(ctx(t)))
	assert.ErrorIs(t, c.Create(ctx(t), item("a", "late")), remote.ErrClosed)
	// Close is idempotent.
	require.NoError(t, c.Close(ctx(t)))
}

func TestCloseStopsWorker(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)

	s := server.New(server.WithToken(token))
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	api, err := remote.NewAPI(hs.URL, token, time.Second)
	require.NoError(t, err)
	c := remote.NewClient(api, remote.WithBackoff(fast))
	require.NoError(t, c.Create(ctx(t), item("a", "one")))
	require.NoError(t, c.Close(ctx(t)))
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 1, s.Revision())
}
