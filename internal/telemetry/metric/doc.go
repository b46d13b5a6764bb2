// Package metric provides Prometheus metrics for the disk cache.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, recording helpers and HTTP handler
//   - collector.go: Scrape-time gauges read from a live store
//
// Metrics include:
//
//   - Hit/miss and operation counters
//   - Commit latency histogram
//   - Eviction, compaction and transform failure counters
//   - Size, ceiling and entry count gauges
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
