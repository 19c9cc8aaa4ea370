package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/redirect"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

// Client attaches the held bearer token to API calls, refreshes it when the API
// answers 401, and ends the session when no refresh is possible.
//
// A Client is safe for concurrent use. Build one with [New].
type Client struct {
	config      Config
	store       *session.TokenStore
	httpClient  *http.Client
	flows       flows.Service
	coordinator *refreshCoordinator
	policy      redirect.Policy
	navigator   redirect.Navigator
	listeners   []TeardownListener
	logger      hclog.Logger
	metrics     *Metrics
	audit       *auditDispatcher

	// redirected holds epoch+1 of the last session the navigator was sent
	// away from, so concurrent failures navigate once.
	redirected atomic.Uint64
	syncWG     sync.WaitGroup
}

func (c *Client) ready() bool {
	return c != nil && c.flows.Initialized()
}

// BeginSession stores the access token obtained from a login. A token whose
// expiry cannot be read is kept; expiry is then detected from 401 responses.
func (c *Client) BeginSession(ctx context.Context, raw string) (token.Token, error) {
	if !c.ready() {
		return token.Token{}, ErrClientNotReady
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return token.Token{}, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	tok, err := token.Parse(raw)
	if err != nil {
		c.metrics.Inc(MetricMalformedToken)
		c.logger.Warn("session token has no readable expiry", "error", err)
	}
	c.coordinator.resume()
	c.store.Set(tok)

	c.metrics.Inc(MetricSessionBegin)
	c.emitAudit(ctx, AuditSessionBegin, "", true, nil, nil)
	c.logger.Debug("session started", "expires_at", tok.ExpiresAt)

	if c.config.SyncSessionOnRefresh {
		c.syncAsync(tok)
	}
	return tok, nil
}

// Token returns the held bearer token.
func (c *Client) Token() (token.Token, bool) {
	if !c.ready() {
		return token.Token{}, false
	}
	return c.store.Get()
}

// Refresh exchanges the refresh cookie for a new access token, joining an
// exchange already in flight. Errors wrap [ErrRefreshDenied] or
// [ErrRefreshTransport]; on either the session has been torn down.
func (c *Client) Refresh(ctx context.Context) (token.Token, error) {
	if !c.ready() {
		return token.Token{}, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cur, _ := c.store.Get()
	return c.coordinator.refresh(ctx, cur.Raw)
}

// Logout ends the session. Callers waiting on a refresh fail with
// [ErrRefreshDenied], and so does every later refresh until [Client.BeginSession]
// starts a new session, even though the refresh cookie may still be valid. With SyncSessionOnRefresh the bridged token is deleted on a
// best-effort basis.
func (c *Client) Logout(ctx context.Context) error {
	if !c.ready() {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, held := c.store.Get()
	c.coordinator.release()

	c.metrics.Inc(MetricLogout)
	c.emitAudit(ctx, AuditLogout, "", true, nil, nil)
	c.notifyTeardown(nil)

	if held && c.config.SyncSessionOnRefresh {
		if err := c.flows.SessionUnsync(ctx); err != nil {
			c.logger.Warn("session unsync failed", "error", err)
		}
	}
	return nil
}

// SyncSession posts the held token to the session bridge endpoint so that
// server-rendered requests can use it.
func (c *Client) SyncSession(ctx context.Context) error {
	if !c.ready() {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tok, ok := c.store.Get()
	if !ok {
		return ErrNoSession
	}
	return c.syncToken(ctx, tok)
}

func (c *Client) syncToken(ctx context.Context, tok token.Token) error {
	if err := c.flows.SessionSync(ctx, tok.Raw); err != nil {
		c.metrics.Inc(MetricSessionSyncFailure)
		c.emitAudit(ctx, AuditSessionSync, "", false, err, nil)
		return fmt.Errorf("%w: %v", ErrSessionSync, err)
	}
	c.metrics.Inc(MetricSessionSync)
	c.emitAudit(ctx, AuditSessionSync, "", true, nil, nil)
	return nil
}

func (c *Client) syncAsync(tok token.Token) {
	c.syncWG.Add(1)
	go func() {
		defer c.syncWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.RefreshTimeout)
		defer cancel()
		if err := c.syncToken(ctx, tok); err != nil {
			c.logger.Warn("session sync failed", "error", err)
		}
	}()
}

// LoginDestination returns the login route carrying current as the return
// target.
func (c *Client) LoginDestination(current string) string {
	if c == nil {
		return redirect.Policy{}.LoginDestination(current)
	}
	return c.policy.LoginDestination(current)
}

// RedirectToLogin navigates to the login route, returning to the location
// attached to ctx with [WithLocation].
func (c *Client) RedirectToLogin(ctx context.Context, nav redirect.Navigator) error {
	if !c.ready() {
		return ErrClientNotReady
	}
	if nav == nil {
		return errors.New("navigator required")
	}
	location, _ := LocationFromContext(ctx)
	return c.navigate(ctx, nav, c.policy.LoginDestination(location), location)
}

func (c *Client) navigate(ctx context.Context, nav redirect.Navigator, dest, location string) error {
	c.metrics.Inc(MetricRedirect)
	err := nav.Navigate(ctx, dest)
	c.emitAudit(ctx, AuditRedirect, "", err == nil, err, map[string]string{"location": location})
	if err != nil {
		c.logger.Warn("login redirect failed", "error", err)
	}
	return err
}

// Close waits for background session syncs and flushes queued audit events.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.syncWG.Wait()
	c.audit.Close()
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{}
	}
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped because the buffer
// was full.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

/*
====================================
REFRESH HOOKS
====================================
*/

func (c *Client) currentRaw() (string, bool) {
	tok, ok := c.store.Get()
	return tok.Raw, ok
}

func (c *Client) refreshRaw(ctx context.Context, stale string) (string, error) {
	tok, err := c.coordinator.refresh(ctx, stale)
	if err != nil {
		return "", err
	}
	return tok.Raw, nil
}

func (c *Client) refreshed(ctx context.Context, attemptID string, tok token.Token) {
	c.metrics.Inc(MetricRefreshSuccess)
	c.emitAudit(ctx, AuditRefreshSuccess, attemptID, true, nil, nil)
	if c.config.SyncSessionOnRefresh {
		c.syncAsync(tok)
	}
}

func (c *Client) refreshFailed(ctx context.Context, attemptID string, cause error, cleared bool) {
	if isRefreshDenied(cause) {
		c.metrics.Inc(MetricRefreshDenied)
	} else {
		c.metrics.Inc(MetricRefreshTransportFailure)
	}
	c.emitAudit(ctx, AuditRefreshFailure, attemptID, false, cause, nil)
	if !cleared {
		return
	}

	c.metrics.Inc(MetricSessionTeardown)
	c.emitAudit(ctx, AuditSessionTeardown, attemptID, true, cause, nil)
	c.logger.Info("session torn down", "attempt", attemptID, "error", cause)
	c.notifyTeardown(cause)
}

func (c *Client) notifyTeardown(cause error) {
	for _, fn := range c.listeners {
		fn(cause)
	}
}

func (c *Client) emitAudit(ctx context.Context, eventType, attemptID string, success bool, err error, metadata map[string]string) {
	if c.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AttemptID: attemptID,
		Success:   success,
		Metadata:  metadata,
	}
	if location, ok := LocationFromContext(ctx); ok {
		event.Location = location
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.audit.Emit(ctx, event)
}
