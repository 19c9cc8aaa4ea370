// Package otel binds goSession client metrics to OpenTelemetry observable
// instruments.
//
// Counters map one to one. The refresh latency histogram is reported as a
// cumulative gauge keyed by the "le" attribute plus a _count gauge. When the
// source is a [goSession.Client] the exporter also reports whether a session is
// held and the seconds left on its token. Callers own the MeterProvider.
package otel
