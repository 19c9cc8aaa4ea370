package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram kept by [Metrics].
type MetricID uint16

const (
	// MetricRequest counts requests sent through the dispatcher.
	MetricRequest MetricID = iota
	// MetricRequestUnauthorized counts first attempts answered with 401.
	MetricRequestUnauthorized
	// MetricRetry counts requests re-sent after a successful refresh.
	MetricRetry
	// MetricRetryUnauthorized counts retries that were answered with 401 again.
	MetricRetryUnauthorized
	// MetricRefreshStarted counts refresh exchanges actually sent to the server.
	MetricRefreshStarted
	// MetricRefreshShared counts refresh callers that shared an exchange with others.
	MetricRefreshShared
	// MetricRefreshSuccess counts exchanges that produced a new token.
	MetricRefreshSuccess
	// MetricRefreshDenied counts exchanges rejected by the server.
	MetricRefreshDenied
	// MetricRefreshTransportFailure counts exchanges that failed on the network or with a server error.
	MetricRefreshTransportFailure
	// MetricRefreshDiscarded counts exchange results dropped because the session changed meanwhile.
	MetricRefreshDiscarded
	// MetricProactiveRefresh counts refreshes triggered by a nearing expiry rather than a 401.
	MetricProactiveRefresh
	// MetricMalformedToken counts tokens whose expiry could not be read.
	MetricMalformedToken
	// MetricSessionBegin counts sessions started with BeginSession.
	MetricSessionBegin
	// MetricSessionTeardown counts sessions ended by an irrecoverable refresh failure.
	MetricSessionTeardown
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricRedirect counts navigations to the login destination.
	MetricRedirect
	// MetricSessionSync counts successful session bridge syncs.
	MetricSessionSync
	// MetricSessionSyncFailure counts failed session bridge syncs.
	MetricSessionSyncFailure
	// MetricRefreshLatency observes refresh exchange latency.
	MetricRefreshLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics keeps lock-free session lifecycle counters and the refresh latency
// histogram. A nil or disabled Metrics ignores all updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricRefreshLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRefreshLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRefreshLatency].buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
	}

	return s
}

// bucketIndex maps d to the histogram bucket upper bounds
// 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s and +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 25:
		return 1
	case ms <= 50:
		return 2
	case ms <= 100:
		return 3
	case ms <= 250:
		return 4
	case ms <= 500:
		return 5
	case ms <= 1000:
		return 6
	default:
		return 7
	}
}
