// Package session holds client session state: the in-memory [TokenStore] that owns
// the current bearer token, and the Redis-backed [BridgeStore] that lets a
// server-rendered context observe a token obtained by a client-rendered one.
//
// # Epochs
//
// Every [TokenStore.Set] and [TokenStore.Clear] starts a new epoch. A refresh that
// began in one epoch writes its result with [TokenStore.CompareAndSet] and is
// discarded if a login or logout happened meanwhile.
//
// # What this package must NOT do
//
//   - Import goSession (no upward imports).
//   - Read or write the refresh credential; it lives in the HTTP cookie jar.
//   - Log token values.
package session
