package goSession

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Send issues req with the held bearer token.
//
// Non-401 responses and transport errors are returned unchanged. On a 401 the
// token is refreshed and req is sent once more with the new token; whatever
// that retry returns is the result. When the refresh fails the session is torn
// down and Send returns an [*UnauthorizedError] naming the login destination.
func (c *Client) Send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	if req == nil {
		return nil, errors.New("nil request")
	}
	if ctx == nil {
		ctx = req.Context()
	}
	return c.send(ctx, req, nil)
}

// Do is Send using the request's context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	return c.Send(req.Context(), req)
}

func (c *Client) send(ctx context.Context, req *http.Request, doer flows.HTTPDoer) (*http.Response, error) {
	c.metrics.Inc(MetricRequest)

	if err := c.refreshAhead(ctx); err != nil {
		return nil, err
	}

	var res flows.DispatchResult
	if doer == nil {
		res = c.flows.Dispatch(ctx, req)
	} else {
		res = c.flows.DispatchWith(ctx, req, doer)
	}

	if res.Unauthorized {
		c.metrics.Inc(MetricRequestUnauthorized)
	}
	if res.Retried {
		c.metrics.Inc(MetricRetry)
		if res.Response != nil && res.Response.StatusCode == http.StatusUnauthorized {
			c.metrics.Inc(MetricRetryUnauthorized)
		}
	}

	switch {
	case res.Err != nil:
		return nil, res.Err
	case res.RefreshErr != nil:
		return nil, c.unauthorized(ctx, res.RefreshErr)
	}
	return res.Response, nil
}

// refreshAhead refreshes a token known to expire within the leeway before it is
// sent. A token of unknown expiry is sent as is.
func (c *Client) refreshAhead(ctx context.Context) error {
	if !c.config.ProactiveRefresh {
		return nil
	}
	tok, ok := c.store.Get()
	if !ok || !tok.ExpiresWithin(time.Now(), c.config.RefreshLeeway) {
		return nil
	}

	c.metrics.Inc(MetricProactiveRefresh)
	if _, err := c.coordinator.refresh(ctx, tok.Raw); err != nil {
		return c.unauthorized(ctx, err)
	}
	return nil
}

// unauthorized converts a failed refresh into the caller-facing error. A caller
// that gave up waiting gets its own context error.
func (c *Client) unauthorized(ctx context.Context, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(cause, ctxErr) {
		return cause
	}

	location, hasLocation := LocationFromContext(ctx)
	dest := c.policy.LoginDestination(location)

	if hasLocation && c.navigator != nil {
		mark := c.store.Epoch() + 1
		if c.redirected.Swap(mark) != mark {
			_ = c.navigate(ctx, c.navigator, dest, location)
		}
	}

	return &UnauthorizedError{LoginURL: dest, Cause: cause}
}

// Transport returns a RoundTripper that gives any *http.Client the behavior
// of [Client.Send]. Requests go through the transport of the Client's HTTP
// client.
func (c *Client) Transport() http.RoundTripper {
	return &sessionTransport{client: c}
}

// HTTPClient returns an *http.Client built on [Client.Transport] sharing the
// Client's cookie jar.
func (c *Client) HTTPClient() *http.Client {
	if !c.ready() {
		return &http.Client{Transport: c.Transport()}
	}
	return &http.Client{
		Transport:     c.Transport(),
		Jar:           c.httpClient.Jar,
		CheckRedirect: c.httpClient.CheckRedirect,
		Timeout:       c.httpClient.Timeout,
	}
}

type sessionTransport struct {
	client *Client
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return c.send(req.Context(), req, flows.DoerFunc(base.RoundTrip))
}
