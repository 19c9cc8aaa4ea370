// Package internaldefs holds the metric names, help strings and latency
// bucket bounds used by every goSession exporter, so a counter reads the same
// in Prometheus text and in OTel.
//
// It depends only on the root package and performs no I/O.
package internaldefs
