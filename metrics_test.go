package goSession

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRefreshStarted)

	if got := m.Value(MetricRefreshStarted); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot should be empty, got %d counters", len(snap.Counters))
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRequest)
	m.Observe(MetricRefreshLatency, time.Millisecond)
	if m.Value(MetricRequest) != 0 || m.Enabled() {
		t.Fatal("nil metrics should read as zero and disabled")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRequest)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRequest); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		20 * time.Millisecond,
		50 * time.Millisecond,
		90 * time.Millisecond,
		250 * time.Millisecond,
		400 * time.Millisecond,
		time.Second,
		3 * time.Second,
	}

	for _, d := range observations {
		m.Observe(MetricRefreshLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricRefreshLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricRequest, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricRequest]; ok {
		t.Fatal("counters have no histogram")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRefreshStarted)
	m.Inc(MetricRefreshShared)
	m.Inc(MetricRefreshShared)
	m.Observe(MetricRefreshLatency, 2*time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricRefreshStarted] != 1 {
		t.Fatalf("expected MetricRefreshStarted=1 got %d", snap.Counters[MetricRefreshStarted])
	}
	if snap.Counters[MetricRefreshShared] != 2 {
		t.Fatalf("expected MetricRefreshShared=2 got %d", snap.Counters[MetricRefreshShared])
	}
	if _, ok := snap.Histograms[MetricRefreshLatency]; ok {
		t.Fatal("histogram should be absent when latency is disabled")
	}
}
