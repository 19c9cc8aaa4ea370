// Package goSession manages the bearer-token session of an API client: it
// attaches the held access token to outgoing calls, refreshes it through a
// cookie-borne refresh credential when the API answers 401, and ends the
// session with a redirect to login when no refresh is possible.
//
// [Client] methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Client], [Builder], [Config], and
// value types (MetricsSnapshot, AuditEvent, UnauthorizedError). The refresh
// exchange, the retry-once dispatch sequence and the session bridge calls live
// under internal/flows and are never exported. Token parsing lives in token,
// token storage in session, and login redirects in redirect.
//
// # Refresh contract
//
// At most one refresh exchange is in flight per Client. Every request that sees
// a 401 while it runs waits for it and is retried at most once with the token
// it produced. When the exchange fails, all of those requests fail with the same
// [ErrUnauthorized] and the held token is dropped.
package goSession
