package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "diskcache"

// Operation results used as label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Registry holds all application metrics.
//
// A nil *Registry is valid; its recording methods do nothing.
type Registry struct {
	registry *prometheus.Registry

	// Read metrics
	Hits   Counter
	Misses Counter

	// Write metrics
	Commits        Counter
	Aborts         Counter
	CommitDuration Histogram

	// Maintenance metrics
	Evictions         Counter
	Compactions       Counter
	TransformFailures Counter

	// Accessor metrics
	OperationsTotal CounterVec
}

// Counter is a cumulative metric that only increases.
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Sub(float64)
}

// Histogram samples observations and counts them in buckets.
type Histogram interface {
	Observe(float64)
}

type counterVec struct {
	vec *prometheus.CounterVec
}

func (c counterVec) WithLabelValues(lvs ...string) Counter {
	return c.vec.WithLabelValues(lvs...)
}

// NewRegistry creates a registry with all cache metrics plus the Go runtime
// and process collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	newCounter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help})
		reg.MustRegister(c)
		return c
	}

	commitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "commit_duration_seconds",
		Help:      "Time spent installing committed slot files and journaling the commit.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "operations_total",
		Help:      "Cache operations by name and result.",
	}, []string{"op", "result"})

	reg.MustRegister(
		commitDuration,
		operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		registry:          reg,
		Hits:              newCounter("hits_total", "Reads that found a committed entry."),
		Misses:            newCounter("misses_total", "Reads of absent entries."),
		Commits:           newCounter("commits_total", "Successful editor commits."),
		Aborts:            newCounter("aborts_total", "Editor aborts, explicit or implicit."),
		CommitDuration:    commitDuration,
		Evictions:         newCounter("evictions_total", "Entries evicted to honor the size ceiling."),
		Compactions:       newCounter("journal_compactions_total", "Journal rewrites."),
		TransformFailures: newCounter("transform_failures_total", "Slot streams that failed to encrypt or decrypt."),
		OperationsTotal:   counterVec{vec: operations},
	}
}

// Register adds an extra collector, such as one built by NewCollector.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordGet counts a read as a hit or a miss.
func (r *Registry) RecordGet(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.Hits.Inc()
	} else {
		r.Misses.Inc()
	}
}

// RecordCommit counts a commit and observes its latency.
func (r *Registry) RecordCommit(d time.Duration) {
	if r == nil {
		return
	}
	r.Commits.Inc()
	r.CommitDuration.Observe(d.Seconds())
}

// RecordAbort counts an aborted edit.
func (r *Registry) RecordAbort() {
	if r == nil {
		return
	}
	r.Aborts.Inc()
}

// RecordEvictions counts n evicted entries.
func (r *Registry) RecordEvictions(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.Evictions.Add(float64(n))
}

// RecordCompaction counts a journal rewrite.
func (r *Registry) RecordCompaction() {
	if r == nil {
		return
	}
	r.Compactions.Inc()
}

// RecordTransformFailure counts a failed slot transform.
func (r *Registry) RecordTransformFailure() {
	if r == nil {
		return
	}
	r.TransformFailures.Inc()
}

// RecordOperation counts an accessor operation by its outcome.
func (r *Registry) RecordOperation(op string, err error) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.OperationsTotal.WithLabelValues(op, result).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(r *Registry) http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
