package goSession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

const refreshKey = "refresh"

// errTornDown is returned to refresh waiters released by a logout and to an
// attempt whose session changed underneath it.
var errTornDown = fmt.Errorf("%w: session torn down", ErrRefreshDenied)

// refreshCoordinator runs at most one refresh exchange at a time. Callers that
// need a fresh token while an exchange is running join it and share its result.
type refreshCoordinator struct {
	store   *session.TokenStore
	timeout time.Duration
	metrics *Metrics
	logger  hclog.Logger
	group   singleflight.Group

	exchange  func(ctx context.Context) flows.RefreshResult
	onSuccess func(ctx context.Context, attemptID string, tok token.Token)
	onFailure func(ctx context.Context, attemptID string, cause error, cleared bool)

	mu       sync.Mutex
	released chan struct{}

	// loggedOut is set by release and cleared by resume. While set, an empty
	// store means the session ended, not that it was never loaded.
	loggedOut atomic.Bool
}

func newRefreshCoordinator(store *session.TokenStore, timeout time.Duration, metrics *Metrics, logger hclog.Logger) *refreshCoordinator {
	return &refreshCoordinator{
		store:    store,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
		released: make(chan struct{}),
	}
}

// refresh returns a token different from stale. When another caller's exchange
// already replaced stale, the held token is returned without a new exchange.
// When stale was held but the session has since been torn down, or the store
// is empty after a logout, no exchange is started.
//
// A cancelled ctx abandons only this caller's wait; the exchange keeps running
// and its result lands in the store.
func (c *refreshCoordinator) refresh(ctx context.Context, stale string) (token.Token, error) {
	if cur, held := c.store.Get(); held && cur.Raw != stale {
		return cur, nil
	} else if !held && (stale != "" || c.loggedOut.Load()) {
		return token.Token{}, errTornDown
	}

	c.mu.Lock()
	released := c.released
	c.mu.Unlock()

	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.run(ctx, stale)
	})

	select {
	case res := <-ch:
		return c.result(res)
	case <-released:
		select {
		case res := <-ch:
			return c.result(res)
		default:
		}
		return token.Token{}, errTornDown
	case <-ctx.Done():
		return token.Token{}, ctx.Err()
	}
}

func (c *refreshCoordinator) result(res singleflight.Result) (token.Token, error) {
	if res.Shared {
		c.metrics.Inc(MetricRefreshShared)
	}
	if res.Err != nil {
		return token.Token{}, res.Err
	}
	return res.Val.(token.Token), nil
}

// run performs one exchange. It executes on a context detached from the caller
// that started it, bounded by the refresh timeout.
func (c *refreshCoordinator) run(callerCtx context.Context, stale string) (token.Token, error) {
	cur, held, epoch := c.store.Snapshot()
	if held && cur.Raw != stale {
		return cur, nil
	} else if !held && (stale != "" || c.loggedOut.Load()) {
		return token.Token{}, errTornDown
	}

	attemptID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(callerCtx), c.timeout)
	defer cancel()

	c.metrics.Inc(MetricRefreshStarted)
	c.logger.Debug("refresh exchange started", "attempt", attemptID)

	start := time.Now()
	res := c.exchange(ctx)
	c.metrics.Observe(MetricRefreshLatency, time.Since(start))

	if res.Failure != flows.RefreshFailureNone {
		cause := mapRefreshFailure(res)
		cleared := c.store.CompareAndClear(epoch)
		c.logger.Warn("refresh exchange failed", "attempt", attemptID, "status", res.StatusCode, "error", cause)
		if c.onFailure != nil {
			c.onFailure(ctx, attemptID, cause, cleared)
		}
		return token.Token{}, cause
	}

	tok, err := token.Parse(res.AccessToken)
	if err != nil {
		// Kept with an unknown expiry; a later 401 still triggers a refresh.
		c.metrics.Inc(MetricMalformedToken)
		c.logger.Warn("refreshed token has no readable expiry", "attempt", attemptID, "error", err)
	}

	if !c.store.CompareAndSet(epoch, tok) {
		c.metrics.Inc(MetricRefreshDiscarded)
		c.logger.Info("refreshed token discarded after session change", "attempt", attemptID)
		return token.Token{}, errTornDown
	}

	c.logger.Debug("refresh exchange succeeded", "attempt", attemptID, "duration", time.Since(start))
	if c.onSuccess != nil {
		c.onSuccess(ctx, attemptID, tok)
	}
	return tok, nil
}

// release clears the store and fails every caller currently waiting on an
// exchange. An exchange still running afterwards cannot write the store.
func (c *refreshCoordinator) release() {
	c.loggedOut.Store(true)
	c.store.Clear()

	c.mu.Lock()
	close(c.released)
	c.released = make(chan struct{})
	c.mu.Unlock()

	c.group.Forget(refreshKey)
}

// resume lets an empty store be refreshed again from the refresh cookie.
func (c *refreshCoordinator) resume() {
	c.loggedOut.Store(false)
}

func mapRefreshFailure(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureDenied:
		return fmt.Errorf("%w: status %d", ErrRefreshDenied, res.StatusCode)
	case flows.RefreshFailureServer:
		return fmt.Errorf("%w: status %d", ErrRefreshTransport, res.StatusCode)
	default:
		if res.Err == nil {
			return ErrRefreshTransport
		}
		return fmt.Errorf("%w: %v", ErrRefreshTransport, res.Err)
	}
}

func isRefreshDenied(err error) bool {
	return errors.Is(err, ErrRefreshDenied)
}
