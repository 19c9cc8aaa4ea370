// Package token models short-lived bearer tokens held by a client and reads the
// expiry they carry.
//
// # Expiry
//
// [ExpiryOf] decodes the claims segment of a JWT without verifying its signature.
// Verification belongs to the server; the client only reads exp to decide when a
// proactive refresh is worthwhile. The result is advisory: a 401 from the API is the
// authoritative expiry signal.
//
// # Issuing
//
// [Issuer] signs and verifies access tokens. The client never issues tokens itself;
// Issuer backs test servers and the load-test command that stand in for the API.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import goSession or session (no upward imports).
//   - Treat a locally computed expiry as proof that a token is valid.
package token
