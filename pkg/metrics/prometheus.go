package metrics

import (
	"fmt"
	"io"
)

// PrometheusExporter writes collector counters in Prometheus text
// exposition format.
// Format: https://prometheus.io/docs/instrumenting/exposition_formats/
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates an exporter over the collector.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		namespace: "strata",
	}
}

// SetNamespace sets the metric name prefix.
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes all metrics to w.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	s := pe.collector.Snapshot()

	if err := pe.writeGauge(w, "uptime_seconds", "Engine uptime in seconds", s.Uptime.Seconds()); err != nil {
		return err
	}

	counters := []struct {
		name  string
		help  string
		value uint64
	}{
		{"puts_total", "Total put operations", s.Puts},
		{"deletes_total", "Total delete operations", s.Deletes},
		{"gets_total", "Total get operations", s.Gets},
		{"get_misses_total", "Gets that found no live value", s.GetMisses},
		{"bloom_rejections_total", "Table lookups skipped by the bloom filter", s.BloomRejections},
		{"flushes_total", "Memtable flushes", s.Flushes},
		{"flushed_bytes_total", "Bytes written by flushes", s.FlushedBytes},
		{"compactions_total", "Compactions", s.Compactions},
		{"compacted_bytes_total", "Bytes written by compactions", s.CompactedBytes},
		{"wal_bytes_total", "Bytes appended to the WAL", s.WALBytes},
	}
	for _, c := range counters {
		if err := pe.writeCounter(w, c.name, c.help, c.value); err != nil {
			return err
		}
	}
	return nil
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	full := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", full, help, full, full, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	full := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", full, help, full, full, value)
	return err
}
