// Package prometheus serves a goSession client's metrics to a Prometheus
// scraper.
//
// Mount [PrometheusExporter.Handler] on the application's /metrics route.
// Counters appear as gosession_*_total and refresh latency as the
// gosession_refresh_latency_seconds histogram. No global registry is touched.
package prometheus
