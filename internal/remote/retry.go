package remote

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// Backoff doubles the delay after every failed attempt up to Max.
// MaxAttempts 0 means retry forever (until the context ends). ReadAttempts
// bounds FetchAll separately so a dead backend cannot stall a read that has
// a cache to fall back on; 0 uses MaxAttempts.
type Backoff struct {
	Initial      time.Duration
	Max          time.Duration
	MaxAttempts  int
	ReadAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: DefaultInitialDelay, Max: DefaultMaxDelay}
}

func (b Backoff) normalized() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultInitialDelay
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	return b
}

func (b Backoff) next(d time.Duration) time.Duration {
	d *= 2
	if d > b.Max {
		d = b.Max
	}
	return d
}

func (b Backoff) forReads() Backoff {
	if b.ReadAttempts > 0 {
		b.MaxAttempts = b.ReadAttempts
	}
	return b
}

// exhausted reports whether attempt (1-based) was the last allowed one.
func (b Backoff) exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt >= b.MaxAttempts
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// shouldRetry: transport failures, timeouts, 5xx and 429.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 500 && he.StatusCode <= 599 || he.StatusCode == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// shouldRetryModification also retries revision conflicts (400): the
// failed attempt has already refreshed the revision.
func shouldRetryModification(err error) bool {
	return shouldRetry(err) || StatusCode(err) == http.StatusBadRequest
}
