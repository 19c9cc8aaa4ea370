// Package flows contains pure-function orchestrators for every Client operation.
//
// Each flow function (RunRefresh, RunDispatch, RunSessionSync) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. This keeps the Client type thin and lets the retry state machine
// be tested against scripted transports.
//
// # Architecture boundaries
//
// Flow functions coordinate HTTP exchanges. They do NOT own the token store, the
// refresh single-flight group, metrics or audit. The Client owns those.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Interpret business-level responses; only 401 has meaning here.
package flows
