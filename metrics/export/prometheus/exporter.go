package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

const (
	contentType = "text/plain; version=0.0.4; charset=utf-8"

	auditDroppedName = "gosession_audit_dropped_total"
	auditDroppedHelp = "Audit events discarded because the sink queue was full."
)

// SnapshotSource is what the exporter scrapes. *goSession.Client implements it.
type SnapshotSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter turns a client's counters and refresh latency buckets
// into a scrape body. It keeps no state of its own; every scrape reads a fresh
// snapshot.
type PrometheusExporter struct {
	source SnapshotSource
}

// NewPrometheusExporter scrapes client.
func NewPrometheusExporter(client *goSession.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource scrapes source. Tests and wrappers that
// aggregate several clients use it.
func NewPrometheusExporterFromSource(source SnapshotSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler is the /metrics endpoint.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns one scrape body. A client built without metrics has nothing
// to report, so the body is empty.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w textWriter
	w.b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		w.counter(def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		w.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw)))
	}
	w.counter(auditDroppedName, auditDroppedHelp, dropped)

	return w.b.String()
}

// textWriter emits metric families in the text exposition format.
type textWriter struct {
	b strings.Builder
}

func (w *textWriter) family(name, help, kind string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *textWriter) sample(name, labels string, value uint64) {
	w.b.WriteString(name)
	w.b.WriteString(labels)
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(value, 10))
	w.b.WriteByte('\n')
}

func (w *textWriter) counter(name, help string, value uint64) {
	w.family(name, help, "counter")
	w.sample(name, "", value)
}

func (w *textWriter) histogram(name, help string, cumulative [8]uint64) {
	w.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", `{le="`+le+`"}`, cumulative[i])
	}
	w.sample(name+"_count", "", cumulative[len(cumulative)-1])
	// Latencies are bucketed without a running total.
	w.sample(name+"_sum", "", 0)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
