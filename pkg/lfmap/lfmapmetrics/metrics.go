// pkg/lfmap/lfmapmetrics/metrics.go
package lfmapmetrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"lfmap/pkg/lfmap"
)

// Collector exports a Map's size, bucket capacity, and pending-retire
// count as Prometheus gauges, plus a monotone resize counter. It
// implements prometheus.Collector directly rather than registering
// individual metric objects, since every value it reports is read
// fresh from the map on each scrape rather than pushed as updates
// occur.
type Collector struct {
	m           *lfmap.Map
	namespace   string
	resizes     uint64 // atomic, bumped by ObserveResize
	countDesc   *prometheus.Desc
	capDesc     *prometheus.Desc
	resizeDesc  *prometheus.Desc
	pendingDesc *prometheus.Desc
}

// NewCollector creates a Collector for m. namespace prefixes every
// exported metric name (e.g. "lfmap" yields lfmap_entries).
func NewCollector(m *lfmap.Map, namespace string) *Collector {
	return &Collector{
		m:         m,
		namespace: namespace,
		countDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "entries"),
			"Current number of live entries in the map.",
			nil, nil,
		),
		capDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bucket_capacity"),
			"Current size of the bucket index.",
			nil, nil,
		),
		resizeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "resizes_total"),
			"Total number of bucket-array doublings observed.",
			nil, nil,
		),
		pendingDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pending_retirements"),
			"Number of retired objects not yet safe to free.",
			nil, nil,
		),
	}
}

// ObserveResize records that the caller observed a capacity doubling.
// lfmap.Map does not call back into this package itself (the core stays
// free of any dependency beyond the standard library); callers that
// want this counter populated should call it themselves after a Put
// whose Capacity() grew.
func (c *Collector) ObserveResize() {
	atomic.AddUint64(&c.resizes, 1)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.capDesc
	ch <- c.resizeDesc
	ch <- c.pendingDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.m.Stats()
	ch <- prometheus.MustNewConstMetric(c.countDesc, prometheus.GaugeValue, float64(stats.Count))
	ch <- prometheus.MustNewConstMetric(c.capDesc, prometheus.GaugeValue, float64(stats.Capacity))
	ch <- prometheus.MustNewConstMetric(c.resizeDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.resizes)))
	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(stats.PendingRetirements))
}
