package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wewew312/todomemes/internal/model"
)

var ErrClosed = errors.New("remote client closed")

// Client syncs against the backend. Reads run inline; mutations go through
// a FIFO queue drained by one worker, so at most one mutation is in flight
// and each one carries the revision left by the previous.
type Client struct {
	api      *API
	log      *zap.Logger
	backoff  Backoff
	deviceID string
	now      func() time.Time

	revMu    sync.Mutex
	revision int
	refresh  singleflight.Group

	mu      sync.Mutex
	queue   []operation
	pending int // queued + in flight
	waiters []chan struct{}
	closed  bool
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type operation struct {
	name string
	uid  string
	run  func(ctx context.Context) error
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func WithBackoff(b Backoff) Option { return func(c *Client) { c.backoff = b } }

func WithDeviceID(id string) Option { return func(c *Client) { c.deviceID = id } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// NewClient starts the mutation worker. Call Close to stop it.
func NewClient(api *API, opts ...Option) *Client {
	c := &Client{
		api:      api,
		log:      zap.NewNop(),
		backoff:  DefaultBackoff(),
		deviceID: "go_cli",
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("remote")
	c.backoff = c.backoff.normalized()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.worker()
	return c
}

// Revision is the last revision seen from the server.
func (c *Client) Revision() int {
	c.revMu.Lock()
	defer c.revMu.Unlock()
	return c.revision
}

func (c *Client) setRevision(r int) {
	c.revMu.Lock()
	c.revision = r
	c.revMu.Unlock()
}

func (c *Client) dto(it model.Item) TodoItemDto {
	return FromDomain(it, c.deviceID, c.now())
}

// ---------------------------------------------------
// Reads
// ---------------------------------------------------

func (c *Client) FetchAll(ctx context.Context) ([]model.Item, error) {
	c.log.Info("fetching all todos")
	var resp *ListResponse
	err := c.retry(ctx, c.backoff.forReads(), "fetch all", shouldRetry, func(ctx context.Context) error {
		var err error
		resp, err = c.api.FetchList(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}
	c.setRevision(resp.Revision)
	items := toDomainList(resp.List)
	c.log.Info("received todos", zap.Int("count", len(items)), zap.Int("revision", resp.Revision))
	return items, nil
}

// FetchByID makes a single attempt. A 404 maps to (zero, false, nil).
func (c *Client) FetchByID(ctx context.Context, uid string) (model.Item, bool, error) {
	c.log.Info("fetching todo", zap.String("uid", uid))
	resp, err := c.api.FetchItem(ctx, uid)
	if StatusCode(err) == http.StatusNotFound {
		return model.Item{}, false, nil
	}
	if err != nil {
		return model.Item{}, false, fmt.Errorf("fetch %s: %w", uid, err)
	}
	c.setRevision(resp.Revision)
	return resp.Element.ToDomain(), true, nil
}

// SyncAll pushes items as the full list and returns the server's result.
// A revision conflict refreshes the revision and retries right away;
// transient failures back off.
func (c *Client) SyncAll(ctx context.Context, items []model.Item) ([]model.Item, error) {
	c.log.Info("syncing todos", zap.Int("count", len(items)))
	body := make([]TodoItemDto, 0, len(items))
	for _, it := range items {
		body = append(body, c.dto(it))
	}

	delay := c.backoff.Initial
	for attempt := 1; ; attempt++ {
		resp, err := c.api.PatchList(ctx, c.Revision(), body)
		if err == nil {
			c.setRevision(resp.Revision)
			c.log.Info("sync completed", zap.Int("revision", resp.Revision))
			return toDomainList(resp.List), nil
		}
		if c.backoff.exhausted(attempt) {
			return nil, fmt.Errorf("sync: giving up after %d attempts: %w", attempt, err)
		}
		if StatusCode(err) == http.StatusBadRequest {
			c.log.Warn("revision mismatch, refreshing", zap.Int("revision", c.Revision()))
			if rerr := c.refreshRevision(ctx); rerr != nil && !shouldRetry(rerr) {
				return nil, fmt.Errorf("sync: refresh revision: %w", rerr)
			}
			continue
		}
		if !shouldRetry(err) {
			return nil, fmt.Errorf("sync: %w", err)
		}
		c.log.Info("sync failed, retrying", zap.Duration("delay", delay), zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("sync: %w", err)
		}
		delay = c.backoff.next(delay)
	}
}

// refreshRevision collapses concurrent refreshes into one GET.
func (c *Client) refreshRevision(ctx context.Context) error {
	_, err, _ := c.refresh.Do("revision", func() (any, error) {
		resp, err := c.api.FetchList(ctx)
		if err != nil {
			return nil, err
		}
		c.setRevision(resp.Revision)
		c.log.Info("revision refreshed", zap.Int("revision", resp.Revision))
		return nil, nil
	})
	return err
}

// retry runs fn until it succeeds, fails with an error retryable rejects,
// attempts run out, or ctx ends.
func (c *Client) retry(ctx context.Context, b Backoff, what string, retryable func(error) bool, fn func(context.Context) error) error {
	delay := b.Initial
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || b.exhausted(attempt) {
			return err
		}
		c.log.Warn("request failed, retrying", zap.String("op", what), zap.Int("attempt", attempt),
			zap.Duration("delay", delay), zap.Error(err))
		if serr := sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
		delay = b.next(delay)
	}
}

// ---------------------------------------------------
// Mutations (queued)
// ---------------------------------------------------

func (c *Client) Create(ctx context.Context, item model.Item) error {
	c.log.Info("queue create", zap.String("uid", item.UID))
	return c.enqueue(operation{name: "create", uid: item.UID, run: func(ctx context.Context) error {
		return c.createNetwork(ctx, item)
	}})
}

func (c *Client) Update(ctx context.Context, item model.Item) error {
	c.log.Info("queue update", zap.String("uid", item.UID))
	return c.enqueue(operation{name: "update", uid: item.UID, run: func(ctx context.Context) error {
		return c.updateNetwork(ctx, item)
	}})
}

func (c *Client) Delete(ctx context.Context, uid string) error {
	c.log.Info("queue delete", zap.String("uid", uid))
	return c.enqueue(operation{name: "delete", uid: uid, run: func(ctx context.Context) error {
		return c.deleteNetwork(ctx, uid)
	}})
}

func (c *Client) createNetwork(ctx context.Context, item model.Item) error {
	resp, err := c.api.AddItem(ctx, c.Revision(), c.dto(item))
	if err != nil {
		return c.conflict(ctx, err)
	}
	c.setRevision(resp.Revision)
	c.log.Info("created on backend", zap.String("uid", item.UID), zap.Int("revision", resp.Revision))
	return nil
}

func (c *Client) updateNetwork(ctx context.Context, item model.Item) error {
	resp, err := c.api.UpdateItem(ctx, c.Revision(), item.UID, c.dto(item))
	if StatusCode(err) == http.StatusNotFound {
		c.log.Info("item not on backend, creating", zap.String("uid", item.UID))
		return c.createNetwork(ctx, item)
	}
	if err != nil {
		return c.conflict(ctx, err)
	}
	c.setRevision(resp.Revision)
	c.log.Info("updated on backend", zap.String("uid", item.UID), zap.Int("revision", resp.Revision))
	return nil
}

func (c *Client) deleteNetwork(ctx context.Context, uid string) error {
	resp, err := c.api.DeleteItem(ctx, c.Revision(), uid)
	if StatusCode(err) == http.StatusNotFound {
		c.log.Warn("item not found on backend, ignoring", zap.String("uid", uid))
		return nil
	}
	if err != nil {
		return c.conflict(ctx, err)
	}
	c.setRevision(resp.Revision)
	c.log.Info("deleted on backend", zap.String("uid", uid), zap.Int("revision", resp.Revision))
	return nil
}

// conflict refreshes the revision on a 400 and hands err back so the
// worker retries the operation with the new revision.
func (c *Client) conflict(ctx context.Context, err error) error {
	if StatusCode(err) == http.StatusBadRequest {
		if rerr := c.refreshRevision(ctx); rerr != nil {
			c.log.Warn("revision refresh failed", zap.Error(rerr))
		}
	}
	return err
}

func (c *Client) enqueue(op operation) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, op)
	c.pending++
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending is the number of queued or in-flight mutations.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Flush blocks until every queued mutation has completed or been dropped.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue (bounded by ctx) and stops the worker. Operations
// still queued when ctx ends are dropped.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Flush(ctx)
	c.cancel()
	<-c.done
	if n := c.Pending(); n > 0 {
		c.log.Warn("dropping unsent mutations", zap.Int("count", n))
	}
	return err
}

func (c *Client) next() (operation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return operation{}, false
	}
	op := c.queue[0]
	c.queue = c.queue[1:]
	return op, true
}

func (c *Client) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 {
		for _, w := range c.waiters {
			close(w)
		}
		c.waiters = nil
	}
}

func (c *Client) worker() {
	defer close(c.done)
	for {
		op, ok := c.next()
		if !ok {
			select {
			case <-c.wake:
				continue
			case <-c.ctx.Done():
				return
			}
		}
		c.runWithRetry(op)
		c.finish()
		if c.ctx.Err() != nil {
			return
		}
	}
}

func (c *Client) runWithRetry(op operation) {
	err := c.retry(c.ctx, c.backoff, op.name, shouldRetryModification, op.run)
	switch {
	case err == nil:
	case c.ctx.Err() != nil:
		c.log.Warn("operation interrupted", zap.String("op", op.name), zap.String("uid", op.uid), zap.Error(err))
	default:
		c.log.Error("operation failed permanently", zap.String("op", op.name), zap.String("uid", op.uid), zap.Error(err))
	}
}
