package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsSource reports the live state of a store.
type StatsSource interface {
	Size() int64
	MaxSize() int64
	Len() int
}

// Collector exports store gauges computed at scrape time.
type Collector struct {
	src StatsSource

	size    *prometheus.Desc
	maxSize *prometheus.Desc
	entries *prometheus.Desc
}

// NewCollector creates a collector reading from src.
func NewCollector(src StatsSource) *Collector {
	return &Collector{
		src:     src,
		size:    prometheus.NewDesc(Namespace+"_size_bytes", "Bytes of committed slot data on disk.", nil, nil),
		maxSize: prometheus.NewDesc(Namespace+"_max_size_bytes", "Configured size ceiling.", nil, nil),
		entries: prometheus.NewDesc(Namespace+"_entries", "Committed entries in the cache.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.maxSize
	ch <- c.entries
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(c.src.Size()))
	ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(c.src.MaxSize()))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(c.src.Len()))
}
