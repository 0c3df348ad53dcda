package telemetry

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// otelCollector exposes the sums and gauges recorded through the OTel meter
// provider on the Prometheus registry. It is an unchecked collector: the set
// of series is only known at scrape time.
type otelCollector struct {
	reader *sdkmetric.ManualReader
}

func (c *otelCollector) Describe(chan<- *prometheus.Desc) {}

func (c *otelCollector) Collect(ch chan<- prometheus.Metric) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(context.Background(), &rm); err != nil {
		ch <- prometheus.NewInvalidMetric(prometheus.NewDesc("otel_collect_error", "OTel collection failed", nil, nil), err)
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			name := promName(m.Name)
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				kind := prometheus.GaugeValue
				if data.IsMonotonic {
					kind, name = prometheus.CounterValue, name+"_total"
				}
				for _, dp := range data.DataPoints {
					emit(ch, name, m.Description, kind, float64(dp.Value), dp.Attributes.ToSlice())
				}
			case metricdata.Sum[float64]:
				kind := prometheus.GaugeValue
				if data.IsMonotonic {
					kind, name = prometheus.CounterValue, name+"_total"
				}
				for _, dp := range data.DataPoints {
					emit(ch, name, m.Description, kind, dp.Value, dp.Attributes.ToSlice())
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					emit(ch, name, m.Description, prometheus.GaugeValue, float64(dp.Value), dp.Attributes.ToSlice())
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					emit(ch, name, m.Description, prometheus.GaugeValue, dp.Value, dp.Attributes.ToSlice())
				}
			}
		}
	}
}

func emit(ch chan<- prometheus.Metric, name, help string, kind prometheus.ValueType, value float64, attrs []attribute.KeyValue) {
	labels := make([]string, 0, len(attrs))
	values := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		labels = append(labels, promName(string(kv.Key)))
		values = append(values, kv.Value.Emit())
	}
	if help == "" {
		help = name
	}
	desc := prometheus.NewDesc(name, help, labels, nil)
	m, err := prometheus.NewConstMetric(desc, kind, value, values...)
	if err != nil {
		m = prometheus.NewInvalidMetric(desc, err)
	}
	ch <- m
}

func promName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, s)
}
