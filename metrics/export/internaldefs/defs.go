package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricRequest, Name: "gosession_request_total", Help: "Requests sent through the session client."},
	{ID: goSession.MetricRequestUnauthorized, Name: "gosession_request_unauthorized_total", Help: "First attempts answered with 401."},
	{ID: goSession.MetricRetry, Name: "gosession_retry_total", Help: "Requests re-sent after a successful refresh."},
	{ID: goSession.MetricRetryUnauthorized, Name: "gosession_retry_unauthorized_total", Help: "Retries answered with 401 again."},
	{ID: goSession.MetricRefreshStarted, Name: "gosession_refresh_started_total", Help: "Refresh exchanges sent to the server."},
	{ID: goSession.MetricRefreshShared, Name: "gosession_refresh_shared_total", Help: "Refresh results shared between concurrent callers."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Refresh exchanges that produced a new token."},
	{ID: goSession.MetricRefreshDenied, Name: "gosession_refresh_denied_total", Help: "Refresh exchanges rejected by the server."},
	{ID: goSession.MetricRefreshTransportFailure, Name: "gosession_refresh_transport_failure_total", Help: "Refresh exchanges failed on the network or with a server error."},
	{ID: goSession.MetricRefreshDiscarded, Name: "gosession_refresh_discarded_total", Help: "Refresh results discarded after a session change."},
	{ID: goSession.MetricProactiveRefresh, Name: "gosession_proactive_refresh_total", Help: "Refreshes triggered by a nearing expiry."},
	{ID: goSession.MetricMalformedToken, Name: "gosession_malformed_token_total", Help: "Tokens without a readable expiry."},
	{ID: goSession.MetricSessionBegin, Name: "gosession_session_begin_total", Help: "Sessions started."},
	{ID: goSession.MetricSessionTeardown, Name: "gosession_session_teardown_total", Help: "Sessions ended by a failed refresh."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Explicit logouts."},
	{ID: goSession.MetricRedirect, Name: "gosession_redirect_total", Help: "Navigations to the login destination."},
	{ID: goSession.MetricSessionSync, Name: "gosession_session_sync_total", Help: "Successful session bridge syncs."},
	{ID: goSession.MetricSessionSyncFailure, Name: "gosession_session_sync_failure_total", Help: "Failed session bridge syncs."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Refresh exchange latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the core
// histogram.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals exporters
// report for "le" buckets.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
