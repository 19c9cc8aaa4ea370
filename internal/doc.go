// Package internal holds helpers that are private to goSession.
//
// # Sub-packages
//
//   - fakeapi: in-process API server speaking the refresh and session bridge protocol
//   - flows: refresh, dispatch and session sync orchestrators used by Client
//   - rate: Redis-backed fixed-window counters
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
